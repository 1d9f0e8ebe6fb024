// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"fmt"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// stringParam extracts a required string parameter.
func stringParam(params map[string]any, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", fmt.Errorf("%w: %q is required", ErrBadParams, name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrBadParams, name)
	}
	return s, nil
}

// optStringParam extracts an optional string parameter.
func optStringParam(params map[string]any, name, def string) (string, error) {
	v, ok := params[name]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrBadParams, name)
	}
	return s, nil
}

// intParam extracts an optional integer parameter. JSON decoding hands
// numbers over as float64.
func intParam(params map[string]any, name string, def int) (int, error) {
	v, ok := params[name]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %q must be an integer", ErrBadParams, name)
	}
}

// boolParam extracts an optional boolean parameter.
func boolParam(params map[string]any, name string, def bool) (bool, error) {
	v, ok := params[name]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q must be a boolean", ErrBadParams, name)
	}
	return b, nil
}

// stringSliceParam extracts a required array-of-strings parameter.
func stringSliceParam(params map[string]any, name string) ([]string, error) {
	v, ok := params[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is required", ErrBadParams, name)
	}
	switch arr := v.(type) {
	case []string:
		if len(arr) == 0 {
			return nil, fmt.Errorf("%w: %q must not be empty", ErrBadParams, name)
		}
		return arr, nil
	case []any:
		if len(arr) == 0 {
			return nil, fmt.Errorf("%w: %q must not be empty", ErrBadParams, name)
		}
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q must contain only strings", ErrBadParams, name)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q must be an array of strings", ErrBadParams, name)
	}
}

// stringMapParam extracts a required object-of-strings parameter.
func stringMapParam(params map[string]any, name string) (map[string]string, error) {
	v, ok := params[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q is required", ErrBadParams, name)
	}
	switch m := v.(type) {
	case map[string]string:
		if len(m) == 0 {
			return nil, fmt.Errorf("%w: %q must not be empty", ErrBadParams, name)
		}
		return m, nil
	case map[string]any:
		if len(m) == 0 {
			return nil, fmt.Errorf("%w: %q must not be empty", ErrBadParams, name)
		}
		out := make(map[string]string, len(m))
		for k, e := range m {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q must map strings to strings", ErrBadParams, name)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q must be an object of strings", ErrBadParams, name)
	}
}

// resolveTable picks the table a tool operates on. The "table"
// parameter is optional when the collection holds exactly one table.
func resolveTable(tc *tabular.Collection, params map[string]any) (string, *tabular.Table, error) {
	name, err := optStringParam(params, "table", "")
	if err != nil {
		return "", nil, err
	}
	if name == "" {
		names := tc.Names()
		if len(names) != 1 {
			return "", nil, fmt.Errorf("%w: %q is required when the session has %d tables",
				ErrBadParams, "table", len(names))
		}
		name = names[0]
	}
	t := tc.Table(name)
	if t == nil {
		return "", nil, fmt.Errorf("%w: table %q does not exist", ErrBadParams, name)
	}
	return name, t, nil
}

// replaceTable builds a new collection with one table swapped out.
// Untouched tables are shared; they are never mutated in place.
func replaceTable(tc *tabular.Collection, name string, t *tabular.Table) *tabular.Collection {
	out := tabular.NewCollection()
	for _, n := range tc.Names() {
		if n == name {
			out.Put(n, t)
		} else {
			out.Put(n, tc.Table(n))
		}
	}
	return out
}

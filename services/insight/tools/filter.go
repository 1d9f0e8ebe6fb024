// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// FilterRows keeps the rows of a table where a column satisfies a
// predicate. Null cells never match.
type FilterRows struct{}

func (FilterRows) Name() string { return "filter_rows" }

func (FilterRows) Definition() Definition {
	return Definition{
		Name:        "filter_rows",
		Description: "Keep only the rows where a column matches a condition.",
		Mutating:    true,
		Parameters: map[string]ParamDef{
			"table":  {Type: ParamTypeString, Description: "Table to filter; optional with a single table."},
			"column": {Type: ParamTypeString, Description: "Column the condition applies to.", Required: true},
			"op": {Type: ParamTypeString, Description: "Comparison operator.", Required: true,
				Enum: []string{"==", "!=", ">", ">=", "<", "<=", "contains"}},
			"value": {Type: ParamTypeString, Description: "Value to compare against.", Required: true},
		},
	}
}

func (f FilterRows) Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error) {
	name, t, err := resolveTable(tc, params)
	if err != nil {
		return nil, err
	}
	colName, err := stringParam(params, "column")
	if err != nil {
		return nil, err
	}
	op, err := stringParam(params, "op")
	if err != nil {
		return nil, err
	}
	value, ok := params["value"]
	if !ok {
		return nil, fmt.Errorf("%w: %q is required", ErrBadParams, "value")
	}
	col := t.Column(colName)
	if col == nil {
		return nil, fmt.Errorf("%w: column %q does not exist", ErrBadParams, colName)
	}

	match, err := predicate(col, op, value)
	if err != nil {
		return nil, err
	}
	var keep []int
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			continue
		}
		if match(i) {
			keep = append(keep, i)
		}
	}

	filtered := t.Select(keep)
	return &Result{
		Tool:       f.Name(),
		Label:      fmt.Sprintf("Filter %s %s %v", colName, op, value),
		Table:      name,
		RowsBefore: t.NumRows(),
		RowsAfter:  filtered.NumRows(),
		Tables:     replaceTable(tc, name, filtered),
	}, nil
}

// predicate compiles the (op, value) pair into a per-row check for the
// column's type.
func predicate(col *tabular.Column, op string, value any) (func(int) bool, error) {
	if op == "contains" {
		if col.Type != tabular.TypeString {
			return nil, fmt.Errorf("%w: contains requires a string column", ErrBadParams)
		}
		needle, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: contains requires a string value", ErrBadParams)
		}
		return func(i int) bool {
			return strings.Contains(strings.ToLower(col.Strings[i]), strings.ToLower(needle))
		}, nil
	}

	switch col.Type {
	case tabular.TypeInt, tabular.TypeFloat:
		want, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		return func(i int) bool {
			got, ok := col.Float(i)
			return ok && compareOp(op, got, want)
		}, nil
	case tabular.TypeBool:
		want, err := toBool(value)
		if err != nil {
			return nil, err
		}
		if op != "==" && op != "!=" {
			return nil, fmt.Errorf("%w: operator %q not supported for boolean columns", ErrBadParams, op)
		}
		return func(i int) bool {
			return (col.Bools[i] == want) == (op == "==")
		}, nil
	case tabular.TypeString:
		want := fmt.Sprintf("%v", value)
		return func(i int) bool {
			return compareOp(op, col.Strings[i], want)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported column type", ErrBadParams)
	}
}

func compareOp[T float64 | string](op string, got, want T) bool {
	switch op {
	case "==":
		return got == want
	case "!=":
		return got != want
	case ">":
		return got > want
	case ">=":
		return got >= want
	case "<":
		return got < want
	case "<=":
		return got <= want
	default:
		return false
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not numeric", ErrBadParams, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: value must be numeric", ErrBadParams)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrBadParams, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%w: value must be a boolean", ErrBadParams)
	}
}

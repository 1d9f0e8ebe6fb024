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
	"strings"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// DropRows removes duplicate rows from a table, keeping the first
// occurrence. Rows are compared across every column; null cells
// compare equal to each other.
type DropRows struct{}

func (DropRows) Name() string { return "drop_rows" }

func (DropRows) Definition() Definition {
	return Definition{
		Name:        "drop_rows",
		Description: "Remove duplicate rows, keeping the first occurrence.",
		Mutating:    true,
		Parameters: map[string]ParamDef{
			"table": {Type: ParamTypeString, Description: "Table to deduplicate; optional with a single table."},
		},
	}
}

func (d DropRows) Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error) {
	name, t, err := resolveTable(tc, params)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, t.NumRows())
	var keep []int
	var sb strings.Builder
	for i := 0; i < t.NumRows(); i++ {
		sb.Reset()
		for _, c := range t.Columns {
			if c.IsNull(i) {
				sb.WriteString("\x00null")
			} else {
				sb.WriteString(c.Format(i))
			}
			sb.WriteByte('\x1f') // cell separator, cannot appear in formatted values
		}
		key := sb.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, i)
	}

	deduped := t.Select(keep)
	return &Result{
		Tool:       d.Name(),
		Label:      fmt.Sprintf("Drop %d duplicate rows", t.NumRows()-deduped.NumRows()),
		Table:      name,
		RowsBefore: t.NumRows(),
		RowsAfter:  deduped.NumRows(),
		Tables:     replaceTable(tc, name, deduped),
	}, nil
}

// Head previews the first rows of a table without changing it.
type Head struct{}

func (Head) Name() string { return "head" }

func (Head) Definition() Definition {
	return Definition{
		Name:        "head",
		Description: "Preview the first rows of a table.",
		Parameters: map[string]ParamDef{
			"table": {Type: ParamTypeString, Description: "Table to preview; optional with a single table."},
			"n":     {Type: ParamTypeInt, Description: "Number of rows.", Default: 10},
		},
	}
}

func (h Head) Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error) {
	name, t, err := resolveTable(tc, params)
	if err != nil {
		return nil, err
	}
	n, err := intParam(params, "n", 10)
	if err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: %q must be positive", ErrBadParams, "n")
	}

	head := t.Head(n)
	return &Result{
		Tool:       h.Name(),
		Label:      fmt.Sprintf("First %d rows of %s", head.NumRows(), name),
		Table:      name,
		RowsBefore: t.NumRows(),
		RowsAfter:  t.NumRows(),
		Preview:    head.Rows(0, head.NumRows()),
	}, nil
}

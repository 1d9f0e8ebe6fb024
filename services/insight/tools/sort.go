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

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// SortTable orders the rows of a table by one column. The sort is
// stable; nulls sort first.
type SortTable struct{}

func (SortTable) Name() string { return "sort_table" }

func (SortTable) Definition() Definition {
	return Definition{
		Name:        "sort_table",
		Description: "Sort the rows of a table by a column.",
		Mutating:    true,
		Parameters: map[string]ParamDef{
			"table":      {Type: ParamTypeString, Description: "Table to sort; optional with a single table."},
			"column":     {Type: ParamTypeString, Description: "Column to sort by.", Required: true},
			"descending": {Type: ParamTypeBool, Description: "Sort largest first.", Default: false},
		},
	}
}

func (s SortTable) Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error) {
	name, t, err := resolveTable(tc, params)
	if err != nil {
		return nil, err
	}
	colName, err := stringParam(params, "column")
	if err != nil {
		return nil, err
	}
	descending, err := boolParam(params, "descending", false)
	if err != nil {
		return nil, err
	}

	sorted, err := t.SortedBy(colName, descending)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadParams, err)
	}

	direction := "ascending"
	if descending {
		direction = "descending"
	}
	return &Result{
		Tool:       s.Name(),
		Label:      fmt.Sprintf("Sort by %s (%s)", colName, direction),
		Table:      name,
		RowsBefore: t.NumRows(),
		RowsAfter:  sorted.NumRows(),
		Tables:     replaceTable(tc, name, sorted),
	}, nil
}

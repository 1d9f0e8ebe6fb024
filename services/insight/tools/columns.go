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
	"sort"
	"strings"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// RenameColumns renames columns of a table.
type RenameColumns struct{}

func (RenameColumns) Name() string { return "rename_columns" }

func (RenameColumns) Definition() Definition {
	return Definition{
		Name:        "rename_columns",
		Description: "Rename one or more columns of a table.",
		Mutating:    true,
		Parameters: map[string]ParamDef{
			"table":   {Type: ParamTypeString, Description: "Table to modify; optional with a single table."},
			"mapping": {Type: ParamTypeObject, Description: "Old name to new name.", Required: true},
		},
	}
}

func (r RenameColumns) Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error) {
	name, t, err := resolveTable(tc, params)
	if err != nil {
		return nil, err
	}
	mapping, err := stringMapParam(params, "mapping")
	if err != nil {
		return nil, err
	}

	renamed, err := t.RenameColumns(mapping)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadParams, err)
	}

	pairs := make([]string, 0, len(mapping))
	for from, to := range mapping {
		pairs = append(pairs, from+"->"+to)
	}
	sort.Strings(pairs)
	return &Result{
		Tool:       r.Name(),
		Label:      "Rename " + strings.Join(pairs, ", "),
		Table:      name,
		RowsBefore: t.NumRows(),
		RowsAfter:  renamed.NumRows(),
		Tables:     replaceTable(tc, name, renamed),
	}, nil
}

// DropColumns removes columns from a table.
type DropColumns struct{}

func (DropColumns) Name() string { return "drop_columns" }

func (DropColumns) Definition() Definition {
	return Definition{
		Name:        "drop_columns",
		Description: "Remove one or more columns from a table.",
		Mutating:    true,
		Parameters: map[string]ParamDef{
			"table":   {Type: ParamTypeString, Description: "Table to modify; optional with a single table."},
			"columns": {Type: ParamTypeArray, Description: "Columns to remove.", Required: true},
		},
	}
}

func (d DropColumns) Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error) {
	name, t, err := resolveTable(tc, params)
	if err != nil {
		return nil, err
	}
	cols, err := stringSliceParam(params, "columns")
	if err != nil {
		return nil, err
	}

	dropped, err := t.DropColumns(cols)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadParams, err)
	}
	if dropped.NumCols() == 0 {
		return nil, fmt.Errorf("%w: cannot drop every column", ErrBadParams)
	}

	return &Result{
		Tool:       d.Name(),
		Label:      "Drop columns " + strings.Join(cols, ", "),
		Table:      name,
		RowsBefore: t.NumRows(),
		RowsAfter:  dropped.NumRows(),
		Tables:     replaceTable(tc, name, dropped),
	}, nil
}

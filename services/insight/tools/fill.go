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

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// FillMissing replaces the null cells of a column with a value or the
// column mean.
type FillMissing struct{}

func (FillMissing) Name() string { return "fill_missing" }

func (FillMissing) Definition() Definition {
	return Definition{
		Name:        "fill_missing",
		Description: "Fill the missing values of a column with a constant or the column mean.",
		Mutating:    true,
		Parameters: map[string]ParamDef{
			"table":  {Type: ParamTypeString, Description: "Table to modify; optional with a single table."},
			"column": {Type: ParamTypeString, Description: "Column to fill.", Required: true},
			"strategy": {Type: ParamTypeString, Description: "How to fill.", Default: "value",
				Enum: []string{"value", "mean"}},
			"value": {Type: ParamTypeString, Description: "Fill value; required for the value strategy."},
		},
	}
}

func (f FillMissing) Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error) {
	name, t, err := resolveTable(tc, params)
	if err != nil {
		return nil, err
	}
	colName, err := stringParam(params, "column")
	if err != nil {
		return nil, err
	}
	strategy, err := optStringParam(params, "strategy", "value")
	if err != nil {
		return nil, err
	}
	col := t.Column(colName)
	if col == nil {
		return nil, fmt.Errorf("%w: column %q does not exist", ErrBadParams, colName)
	}

	var fill any
	switch strategy {
	case "mean":
		if !col.Type.Numeric() {
			return nil, fmt.Errorf("%w: mean strategy requires a numeric column", ErrBadParams)
		}
		fill = columnMean(col)
	case "value":
		raw, ok := params["value"]
		if !ok {
			return nil, fmt.Errorf("%w: %q is required for the value strategy", ErrBadParams, "value")
		}
		fill, err = coerce(col.Type, raw)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrBadParams, strategy)
	}

	filled, n := fillColumn(col, fill)
	out := &tabular.Table{Columns: make([]tabular.Column, len(t.Columns))}
	for i, c := range t.Columns {
		if c.Name == colName {
			out.Columns[i] = filled
		} else {
			out.Columns[i] = c
		}
	}

	return &Result{
		Tool:       f.Name(),
		Label:      fmt.Sprintf("Fill %d missing values in %s", n, colName),
		Table:      name,
		RowsBefore: t.NumRows(),
		RowsAfter:  t.NumRows(),
		Tables:     replaceTable(tc, name, out),
	}, nil
}

// columnMean averages the non-null cells. A fully-null column fills
// with zero.
func columnMean(col *tabular.Column) any {
	var sum float64
	var n int
	for i := 0; i < col.Len(); i++ {
		if v, ok := col.Float(i); ok {
			sum += v
			n++
		}
	}
	var mean float64
	if n > 0 {
		mean = sum / float64(n)
	}
	if col.Type == tabular.TypeInt {
		return int64(mean)
	}
	return mean
}

// coerce converts a raw parameter into the column's value type.
func coerce(t tabular.ColumnType, raw any) (any, error) {
	switch t {
	case tabular.TypeInt:
		switch v := raw.(type) {
		case float64:
			return int64(v), nil
		case int:
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an integer", ErrBadParams, v)
			}
			return n, nil
		}
	case tabular.TypeFloat:
		return toFloat(raw)
	case tabular.TypeBool:
		return toBool(raw)
	case tabular.TypeString:
		return fmt.Sprintf("%v", raw), nil
	}
	return nil, fmt.Errorf("%w: value has the wrong type for the column", ErrBadParams)
}

// fillColumn returns a copy of col with nulls replaced by fill, and
// the number of cells changed. The input column is left untouched.
func fillColumn(col *tabular.Column, fill any) (tabular.Column, int) {
	out := tabular.Column{Name: col.Name, Type: col.Type}
	out.Ints = append([]int64(nil), col.Ints...)
	out.Floats = append([]float64(nil), col.Floats...)
	out.Bools = append([]bool(nil), col.Bools...)
	out.Strings = append([]string(nil), col.Strings...)

	var n int
	for i := 0; i < col.Len(); i++ {
		if !col.IsNull(i) {
			continue
		}
		switch out.Type {
		case tabular.TypeInt:
			out.Ints[i] = fill.(int64)
		case tabular.TypeFloat:
			out.Floats[i] = fill.(float64)
		case tabular.TypeBool:
			out.Bools[i] = fill.(bool)
		case tabular.TypeString:
			out.Strings[i] = fill.(string)
		}
		n++
	}
	return out, n
}

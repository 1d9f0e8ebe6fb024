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
	"math"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// GroupAggregate groups a table by one column and aggregates another.
// The result replaces the table: one row per group, in first-seen
// order. Null cells in the aggregated column are ignored; null group
// keys form their own group.
type GroupAggregate struct{}

func (GroupAggregate) Name() string { return "group_aggregate" }

func (GroupAggregate) Definition() Definition {
	return Definition{
		Name:        "group_aggregate",
		Description: "Group rows by a column and aggregate another column per group.",
		Mutating:    true,
		Parameters: map[string]ParamDef{
			"table":    {Type: ParamTypeString, Description: "Table to aggregate; optional with a single table."},
			"group_by": {Type: ParamTypeString, Description: "Column to group by.", Required: true},
			"column":   {Type: ParamTypeString, Description: "Column to aggregate; unused for count."},
			"fn": {Type: ParamTypeString, Description: "Aggregate function.", Required: true,
				Enum: []string{"count", "sum", "mean", "min", "max"}},
		},
	}
}

func (g GroupAggregate) Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error) {
	name, t, err := resolveTable(tc, params)
	if err != nil {
		return nil, err
	}
	groupBy, err := stringParam(params, "group_by")
	if err != nil {
		return nil, err
	}
	fn, err := stringParam(params, "fn")
	if err != nil {
		return nil, err
	}
	switch fn {
	case "count", "sum", "mean", "min", "max":
	default:
		return nil, fmt.Errorf("%w: unknown aggregate %q", ErrBadParams, fn)
	}
	keyCol := t.Column(groupBy)
	if keyCol == nil {
		return nil, fmt.Errorf("%w: column %q does not exist", ErrBadParams, groupBy)
	}

	var valCol *tabular.Column
	var valName string
	if fn != "count" {
		valName, err = stringParam(params, "column")
		if err != nil {
			return nil, err
		}
		valCol = t.Column(valName)
		if valCol == nil {
			return nil, fmt.Errorf("%w: column %q does not exist", ErrBadParams, valName)
		}
		if !valCol.Type.Numeric() {
			return nil, fmt.Errorf("%w: %s requires a numeric column", ErrBadParams, fn)
		}
	}

	// Bucket rows by formatted group key, first-seen order, with one
	// representative row index per group to rebuild the key column.
	order := make([]string, 0)
	repr := make(map[string]int)
	buckets := make(map[string][]int)
	for i := 0; i < keyCol.Len(); i++ {
		key := "\x00null"
		if !keyCol.IsNull(i) {
			key = keyCol.Format(i)
		}
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
			repr[key] = i
		}
		buckets[key] = append(buckets[key], i)
	}

	outKey := tabular.Column{Name: groupBy, Type: keyCol.Type}
	outVal := tabular.Column{Name: aggName(fn, valName), Type: tabular.TypeFloat}
	if fn == "count" {
		outVal.Type = tabular.TypeInt
	}
	for _, key := range order {
		ri := repr[key]
		if keyCol.IsNull(ri) {
			outKey.AppendNull()
		} else if err := outKey.Append(keyCol.Value(ri)); err != nil {
			return nil, err
		}

		if fn == "count" {
			if err := outVal.Append(int64(len(buckets[key]))); err != nil {
				return nil, err
			}
			continue
		}
		agg, ok := aggregate(fn, valCol, buckets[key])
		if !ok {
			outVal.AppendNull() // every cell in the group was null
			continue
		}
		if err := outVal.Append(agg); err != nil {
			return nil, err
		}
	}

	result := &tabular.Table{Columns: []tabular.Column{outKey, outVal}}
	return &Result{
		Tool:       g.Name(),
		Label:      fmt.Sprintf("Group by %s, %s", groupBy, aggName(fn, valName)),
		Table:      name,
		RowsBefore: t.NumRows(),
		RowsAfter:  result.NumRows(),
		Tables:     replaceTable(tc, name, result),
	}, nil
}

func aggName(fn, column string) string {
	if fn == "count" {
		return "count"
	}
	return fn + "_" + column
}

// aggregate folds the non-null cells of the given rows. Reports false
// when no cell contributed.
func aggregate(fn string, col *tabular.Column, rows []int) (float64, bool) {
	var sum float64
	min := math.Inf(1)
	max := math.Inf(-1)
	var n int
	for _, i := range rows {
		v, ok := col.Float(i)
		if !ok {
			continue
		}
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		n++
	}
	if n == 0 {
		return 0, false
	}
	switch fn {
	case "sum":
		return sum, true
	case "mean":
		return sum / float64(n), true
	case "min":
		return min, true
	case "max":
		return max, true
	default:
		return 0, false
	}
}

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

// DeriveColumn appends a new column computed from arithmetic over a
// numeric column and either another numeric column or a constant.
// A row is null in the result when any operand is null, or on
// division by zero.
type DeriveColumn struct{}

func (DeriveColumn) Name() string { return "derive_column" }

func (DeriveColumn) Definition() Definition {
	return Definition{
		Name:        "derive_column",
		Description: "Add a column computed as `left op right`, where right is a column or a constant.",
		Mutating:    true,
		Parameters: map[string]ParamDef{
			"table": {Type: ParamTypeString, Description: "Table to modify; optional with a single table."},
			"name":  {Type: ParamTypeString, Description: "Name of the new column.", Required: true},
			"left":  {Type: ParamTypeString, Description: "Left operand column.", Required: true},
			"op": {Type: ParamTypeString, Description: "Arithmetic operator.", Required: true,
				Enum: []string{"+", "-", "*", "/"}},
			"right": {Type: ParamTypeString, Description: "Right operand: a column name or a numeric constant.", Required: true},
		},
	}
}

func (d DeriveColumn) Apply(ctx context.Context, tc *tabular.Collection, params map[string]any) (*Result, error) {
	name, t, err := resolveTable(tc, params)
	if err != nil {
		return nil, err
	}
	newName, err := stringParam(params, "name")
	if err != nil {
		return nil, err
	}
	if t.HasColumn(newName) {
		return nil, fmt.Errorf("%w: column %q already exists", ErrBadParams, newName)
	}
	leftName, err := stringParam(params, "left")
	if err != nil {
		return nil, err
	}
	op, err := stringParam(params, "op")
	if err != nil {
		return nil, err
	}
	switch op {
	case "+", "-", "*", "/":
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrBadParams, op)
	}

	left := t.Column(leftName)
	if left == nil {
		return nil, fmt.Errorf("%w: column %q does not exist", ErrBadParams, leftName)
	}
	if !left.Type.Numeric() {
		return nil, fmt.Errorf("%w: column %q is not numeric", ErrBadParams, leftName)
	}

	// The right operand is a column when one of that name exists,
	// otherwise it must parse as a constant.
	rightRaw, ok := params["right"]
	if !ok {
		return nil, fmt.Errorf("%w: %q is required", ErrBadParams, "right")
	}
	var rightCol *tabular.Column
	var constant float64
	if s, isStr := rightRaw.(string); isStr && t.HasColumn(s) {
		rightCol = t.Column(s)
		if !rightCol.Type.Numeric() {
			return nil, fmt.Errorf("%w: column %q is not numeric", ErrBadParams, s)
		}
	} else {
		constant, err = toFloat(rightRaw)
		if err != nil {
			return nil, err
		}
	}

	derived := tabular.Column{Name: newName, Type: tabular.TypeFloat}
	for i := 0; i < t.NumRows(); i++ {
		lv, ok := left.Float(i)
		if !ok {
			derived.AppendNull()
			continue
		}
		rv := constant
		if rightCol != nil {
			rv, ok = rightCol.Float(i)
			if !ok {
				derived.AppendNull()
				continue
			}
		}
		if op == "/" && rv == 0 {
			derived.AppendNull()
			continue
		}
		if err := derived.Append(apply(op, lv, rv)); err != nil {
			return nil, err
		}
	}

	out := &tabular.Table{Columns: make([]tabular.Column, 0, len(t.Columns)+1)}
	out.Columns = append(out.Columns, t.Columns...)
	out.Columns = append(out.Columns, derived)

	return &Result{
		Tool:       d.Name(),
		Label:      fmt.Sprintf("Derive %s = %s %s %v", newName, leftName, op, rightRaw),
		Table:      name,
		RowsBefore: t.NumRows(),
		RowsAfter:  out.NumRows(),
		Tables:     replaceTable(tc, name, out),
	}, nil
}

func apply(op string, l, r float64) float64 {
	switch op {
	case "+":
		return l + r
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		return l / r
	}
	return 0
}

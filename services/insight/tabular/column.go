// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tabular defines the in-memory table model shared by ingestion,
// tool operations, and the session version engine.
//
// A Collection maps table names to Tables. A Table is a set of single-typed
// columns of equal length. Columns carry an explicit null mask so that
// missing values survive the round trip through the storage codec.
//
// Tables are treated as values: tool operations build new Tables rather
// than mutating captured ones, which is what lets the version engine
// snapshot a Collection without copying defensively.
package tabular

import (
	"fmt"
	"strconv"
)

// ColumnType identifies the element type of a column.
type ColumnType string

const (
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeBool   ColumnType = "bool"
	TypeString ColumnType = "string"
)

// Valid reports whether t is a known column type.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeInt, TypeFloat, TypeBool, TypeString:
		return true
	}
	return false
}

// Numeric reports whether the type participates in arithmetic.
func (t ColumnType) Numeric() bool {
	return t == TypeInt || t == TypeFloat
}

// Column is a single-typed column with a null mask.
//
// Exactly one of the value slices is populated, matching Type. Nulls has
// the same length as the value slice; a true entry means the cell is null
// and the corresponding value slot holds the zero value.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`

	Ints    []int64   `json:"ints,omitempty"`
	Floats  []float64 `json:"floats,omitempty"`
	Bools   []bool    `json:"bools,omitempty"`
	Strings []string  `json:"strings,omitempty"`

	Nulls []bool `json:"nulls,omitempty"`
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	switch c.Type {
	case TypeInt:
		return len(c.Ints)
	case TypeFloat:
		return len(c.Floats)
	case TypeBool:
		return len(c.Bools)
	case TypeString:
		return len(c.Strings)
	}
	return 0
}

// IsNull reports whether cell i is null.
func (c *Column) IsNull(i int) bool {
	return i < len(c.Nulls) && c.Nulls[i]
}

// NullCount returns the number of null cells.
func (c *Column) NullCount() int {
	n := 0
	for _, isNull := range c.Nulls {
		if isNull {
			n++
		}
	}
	return n
}

// Float returns cell i as a float64. Int columns are widened; bool and
// string columns return false for ok. Null cells return ok=false.
func (c *Column) Float(i int) (v float64, ok bool) {
	if c.IsNull(i) {
		return 0, false
	}
	switch c.Type {
	case TypeInt:
		return float64(c.Ints[i]), true
	case TypeFloat:
		return c.Floats[i], true
	}
	return 0, false
}

// Value returns cell i as an untyped value, or nil for null cells.
// Used at the presentation boundary (previews, chart data).
func (c *Column) Value(i int) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.Type {
	case TypeInt:
		return c.Ints[i]
	case TypeFloat:
		return c.Floats[i]
	case TypeBool:
		return c.Bools[i]
	case TypeString:
		return c.Strings[i]
	}
	return nil
}

// Format returns cell i rendered as a string. Null cells render as "".
func (c *Column) Format(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.Type {
	case TypeInt:
		return strconv.FormatInt(c.Ints[i], 10)
	case TypeFloat:
		return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(c.Bools[i])
	case TypeString:
		return c.Strings[i]
	}
	return ""
}

// Compare orders cells i and j: -1, 0, or 1. Nulls sort first.
func (c *Column) Compare(i, j int) int {
	ni, nj := c.IsNull(i), c.IsNull(j)
	switch {
	case ni && nj:
		return 0
	case ni:
		return -1
	case nj:
		return 1
	}
	switch c.Type {
	case TypeInt:
		return compareOrdered(c.Ints[i], c.Ints[j])
	case TypeFloat:
		return compareOrdered(c.Floats[i], c.Floats[j])
	case TypeBool:
		return compareOrdered(boolToInt(c.Bools[i]), boolToInt(c.Bools[j]))
	case TypeString:
		return compareOrdered(c.Strings[i], c.Strings[j])
	}
	return 0
}

// Select returns a new column containing the cells at the given row
// indices, in order. Indices must be in range.
func (c *Column) Select(rows []int) Column {
	out := Column{Name: c.Name, Type: c.Type}
	if len(c.Nulls) > 0 {
		out.Nulls = make([]bool, len(rows))
	}
	switch c.Type {
	case TypeInt:
		out.Ints = make([]int64, len(rows))
		for k, r := range rows {
			out.Ints[k] = c.Ints[r]
		}
	case TypeFloat:
		out.Floats = make([]float64, len(rows))
		for k, r := range rows {
			out.Floats[k] = c.Floats[r]
		}
	case TypeBool:
		out.Bools = make([]bool, len(rows))
		for k, r := range rows {
			out.Bools[k] = c.Bools[r]
		}
	case TypeString:
		out.Strings = make([]string, len(rows))
		for k, r := range rows {
			out.Strings[k] = c.Strings[r]
		}
	}
	if out.Nulls != nil {
		for k, r := range rows {
			out.Nulls[k] = c.Nulls[r]
		}
	}
	return out
}

// AppendNull appends a null cell.
func (c *Column) AppendNull() {
	c.pad()
	switch c.Type {
	case TypeInt:
		c.Ints = append(c.Ints, 0)
	case TypeFloat:
		c.Floats = append(c.Floats, 0)
	case TypeBool:
		c.Bools = append(c.Bools, false)
	case TypeString:
		c.Strings = append(c.Strings, "")
	}
	c.Nulls = append(c.Nulls, true)
}

// Append appends a non-null cell. The value must match the column type
// (int64 for TypeInt, float64 for TypeFloat, and so on).
func (c *Column) Append(v any) error {
	switch c.Type {
	case TypeInt:
		iv, ok := v.(int64)
		if !ok {
			return fmt.Errorf("column %s: expected int64, got %T", c.Name, v)
		}
		c.Ints = append(c.Ints, iv)
	case TypeFloat:
		fv, ok := v.(float64)
		if !ok {
			return fmt.Errorf("column %s: expected float64, got %T", c.Name, v)
		}
		c.Floats = append(c.Floats, fv)
	case TypeBool:
		bv, ok := v.(bool)
		if !ok {
			return fmt.Errorf("column %s: expected bool, got %T", c.Name, v)
		}
		c.Bools = append(c.Bools, bv)
	case TypeString:
		sv, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %s: expected string, got %T", c.Name, v)
		}
		c.Strings = append(c.Strings, sv)
	default:
		return fmt.Errorf("column %s: unknown type %q", c.Name, c.Type)
	}
	if c.Nulls != nil {
		c.Nulls = append(c.Nulls, false)
	}
	return nil
}

// pad extends the null mask to the current length so AppendNull keeps
// mask and values aligned on columns that had no nulls yet.
func (c *Column) pad() {
	for len(c.Nulls) < c.Len() {
		c.Nulls = append(c.Nulls, false)
	}
}

// validate checks internal consistency (type known, mask aligned).
func (c *Column) validate() error {
	if c.Name == "" {
		return fmt.Errorf("column has empty name")
	}
	if !c.Type.Valid() {
		return fmt.Errorf("column %s: unknown type %q", c.Name, c.Type)
	}
	if len(c.Nulls) != 0 && len(c.Nulls) != c.Len() {
		return fmt.Errorf("column %s: null mask length %d != %d cells", c.Name, len(c.Nulls), c.Len())
	}
	return nil
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

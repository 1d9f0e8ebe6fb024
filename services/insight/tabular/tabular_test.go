// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTable builds a small products table with a null price.
func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl := &Table{Columns: []Column{
		{Name: "product", Type: TypeString, Strings: []string{"widget", "gadget", "sprocket"}},
		{Name: "price", Type: TypeFloat, Floats: []float64{9.5, 0, 120}, Nulls: []bool{false, true, false}},
		{Name: "stock", Type: TypeInt, Ints: []int64{10, 3, 0}},
	}}
	require.NoError(t, tbl.Validate())
	return tbl
}

func TestTable_SortedBy_NullsFirst(t *testing.T) {
	tbl := sampleTable(t)

	sorted, err := tbl.SortedBy("price", false)
	require.NoError(t, err)

	col := sorted.Column("product")
	require.NotNil(t, col)
	// gadget has a null price, so it sorts first.
	assert.Equal(t, []string{"gadget", "widget", "sprocket"}, col.Strings)

	desc, err := tbl.SortedBy("price", true)
	require.NoError(t, err)
	assert.Equal(t, "sprocket", desc.Column("product").Strings[0])

	_, err = tbl.SortedBy("missing", false)
	assert.Error(t, err)
}

func TestTable_Select_PreservesNullMask(t *testing.T) {
	tbl := sampleTable(t)
	sub := tbl.Select([]int{1, 2})

	require.Equal(t, 2, sub.NumRows())
	price := sub.Column("price")
	assert.True(t, price.IsNull(0))
	assert.False(t, price.IsNull(1))
	assert.Equal(t, 120.0, price.Floats[1])
}

func TestTable_RenameColumns(t *testing.T) {
	tbl := sampleTable(t)

	renamed, err := tbl.RenameColumns(map[string]string{"price": "unit_price"})
	require.NoError(t, err)
	assert.True(t, renamed.HasColumn("unit_price"))
	assert.False(t, renamed.HasColumn("price"))
	// Original untouched.
	assert.True(t, tbl.HasColumn("price"))

	_, err = tbl.RenameColumns(map[string]string{"nope": "x"})
	assert.Error(t, err)

	_, err = tbl.RenameColumns(map[string]string{"price": "stock"})
	assert.Error(t, err, "duplicate target name must be rejected")
}

func TestTable_DropColumns(t *testing.T) {
	tbl := sampleTable(t)

	dropped, err := tbl.DropColumns([]string{"stock"})
	require.NoError(t, err)
	assert.Equal(t, 2, dropped.NumCols())

	_, err = tbl.DropColumns([]string{"ghost"})
	assert.Error(t, err)
}

func TestTable_Validate_Errors(t *testing.T) {
	tests := []struct {
		name string
		tbl  Table
	}{
		{
			name: "duplicate column",
			tbl: Table{Columns: []Column{
				{Name: "a", Type: TypeInt, Ints: []int64{1}},
				{Name: "a", Type: TypeInt, Ints: []int64{2}},
			}},
		},
		{
			name: "ragged lengths",
			tbl: Table{Columns: []Column{
				{Name: "a", Type: TypeInt, Ints: []int64{1, 2}},
				{Name: "b", Type: TypeInt, Ints: []int64{1}},
			}},
		},
		{
			name: "misaligned null mask",
			tbl: Table{Columns: []Column{
				{Name: "a", Type: TypeInt, Ints: []int64{1, 2}, Nulls: []bool{true}},
			}},
		},
		{
			name: "unknown type",
			tbl:  Table{Columns: []Column{{Name: "a", Type: "decimal"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.tbl.Validate())
		})
	}
}

func TestColumn_AppendNull_PadsMask(t *testing.T) {
	col := Column{Name: "n", Type: TypeInt, Ints: []int64{1, 2}}
	col.AppendNull()

	require.Equal(t, 3, col.Len())
	assert.False(t, col.IsNull(0))
	assert.False(t, col.IsNull(1))
	assert.True(t, col.IsNull(2))
	assert.Equal(t, 1, col.NullCount())
}

func TestCodec_RoundTrip(t *testing.T) {
	c := NewCollection()
	c.Put("products", sampleTable(t))
	c.Put("empty", &Table{})

	payload, err := Encode(c)
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	got, err := Decode(payload)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	tbl := got.Table("products")
	require.NotNil(t, tbl)
	assert.Equal(t, 3, tbl.NumRows())
	price := tbl.Column("price")
	require.NotNil(t, price)
	assert.Equal(t, TypeFloat, price.Type)
	assert.True(t, price.IsNull(1), "null marker must survive the round trip")
	assert.Equal(t, TypeInt, tbl.Column("stock").Type, "column types must survive the round trip")

	// Identical input encodes identically (version immutability leans on this).
	payload2, err := Encode(c)
	require.NoError(t, err)
	assert.Equal(t, payload, payload2)
}

func TestCodec_Errors(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err)

	_, err = Decode([]byte{99, 1, 2, 3})
	assert.ErrorIs(t, err, ErrCodecVersion)

	_, err = Decode([]byte{codecVersion, 0xff, 0xff})
	assert.Error(t, err, "corrupt snappy body must not decode")

	_, err = Encode(nil)
	assert.Error(t, err)
}

func TestCollection_Names_Sorted(t *testing.T) {
	c := NewCollection()
	c.Put("zeta", &Table{})
	c.Put("alpha", &Table{})
	assert.Equal(t, []string{"alpha", "zeta"}, c.Names())
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

func TestReadCSV_TypeInference(t *testing.T) {
	input := strings.Join([]string{
		"product,price,units,active",
		"Widget,10.5,5,true",
		"Gadget,150,2,false",
		"Doohickey,NA,,yes",
	}, "\n")

	tc, err := ReadCSV("Sales Data.csv", strings.NewReader(input), DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, 1, tc.Len())

	tbl := tc.Table("sales_data")
	require.NotNil(t, tbl, "table named from the file")
	assert.Equal(t, 3, tbl.NumRows())

	assert.Equal(t, tabular.TypeString, tbl.Column("product").Type)
	assert.Equal(t, tabular.TypeFloat, tbl.Column("price").Type)
	assert.Equal(t, tabular.TypeInt, tbl.Column("units").Type)
	assert.Equal(t, tabular.TypeBool, tbl.Column("active").Type)

	assert.Equal(t, 1, tbl.Column("price").NullCount(), "NA is null")
	assert.Equal(t, 1, tbl.Column("units").NullCount(), "empty cell is null")
	assert.True(t, tbl.Column("active").Bools[2], "yes parses as true")
}

func TestReadCSV_DelimiterSniffing(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"semicolon", "a;b\n1;2\n"},
		{"tab", "a\tb\n1\t2\n"},
		{"pipe", "a|b\n1|2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := ReadCSV("data.csv", strings.NewReader(tt.input), DefaultLimits())
			require.NoError(t, err)
			tbl := tc.Table("data")
			assert.Equal(t, []string{"a", "b"}, tbl.ColumnNames())
			assert.Equal(t, 1, tbl.NumRows())
		})
	}
}

func TestReadCSV_RaggedRowsPadded(t *testing.T) {
	input := "a,b,c\n1,2\n4,5,6,7\n"
	tc, err := ReadCSV("r.csv", strings.NewReader(input), DefaultLimits())
	require.NoError(t, err)

	tbl := tc.Table("r")
	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, 3, tbl.NumCols(), "extra cells truncated")
	assert.True(t, tbl.Column("c").IsNull(0), "short row padded with null")
}

func TestReadCSV_Limits(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := ReadCSV("e.csv", strings.NewReader("only,a,header\n"), DefaultLimits())
		assert.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("too many bytes", func(t *testing.T) {
		limits := DefaultLimits()
		limits.MaxBytes = 8
		_, err := ReadCSV("big.csv", strings.NewReader("a,b\n1,2\n3,4\n"), limits)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("too many rows", func(t *testing.T) {
		limits := DefaultLimits()
		limits.MaxRows = 1
		_, err := ReadCSV("big.csv", strings.NewReader("a\n1\n2\n"), limits)
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestRead_DispatchByExtension(t *testing.T) {
	_, err := Read("report.pdf", strings.NewReader("x"), DefaultLimits())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	tc, err := Read("ok.csv", strings.NewReader("a\n1\n"), DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, 1, tc.Len())
}

func TestDedupeHeaders(t *testing.T) {
	got := dedupeHeaders([]string{"a", "", "a", " b ", "a"})
	assert.Equal(t, []string{"a", "column_2", "a_2", "b", "a_3"}, got)
}

func TestInferColumn(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  tabular.ColumnType
	}{
		{"ints", []string{"1", "-2", "30"}, tabular.TypeInt},
		{"floats", []string{"1", "2.5"}, tabular.TypeFloat},
		{"bools", []string{"true", "NO"}, tabular.TypeBool},
		{"digits stay numeric not bool", []string{"1", "0"}, tabular.TypeInt},
		{"mixed falls back to string", []string{"1", "x"}, tabular.TypeString},
		{"all null stays string", []string{"", "NA", "null"}, tabular.TypeString},
		{"nulls ignored for inference", []string{"1", "", "3"}, tabular.TypeInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := inferColumn("c", tt.cells)
			assert.Equal(t, tt.want, col.Type)
			assert.Equal(t, len(tt.cells), col.Len())
		})
	}
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "q3_sales", tableName("/tmp/Q3 Sales.CSV"))
	assert.Equal(t, "table", tableName("!!!.csv"))
}

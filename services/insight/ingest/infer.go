// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// nullMarkers are cell values treated as missing, case-insensitively.
var nullMarkers = map[string]bool{
	"":     true,
	"null": true,
	"na":   true,
	"n/a":  true,
	"none": true,
	"nan":  true,
}

func isNull(cell string) bool {
	return nullMarkers[strings.ToLower(strings.TrimSpace(cell))]
}

// inferColumn builds a typed column from raw string cells. The type is
// the narrowest that fits every non-null cell: int64, else float64,
// else bool, else string.
func inferColumn(name string, cells []string) tabular.Column {
	isInt, isFloat, isBool := true, true, true
	sawValue := false
	for _, cell := range cells {
		if isNull(cell) {
			continue
		}
		sawValue = true
		v := strings.TrimSpace(cell)
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if !boolCell(v) {
				isBool = false
			}
		}
	}
	if !sawValue {
		// All-null columns stay strings.
		isInt, isFloat, isBool = false, false, false
	}

	col := tabular.Column{Name: name}
	switch {
	case isInt:
		col.Type = tabular.TypeInt
	case isFloat:
		col.Type = tabular.TypeFloat
	case isBool:
		col.Type = tabular.TypeBool
	default:
		col.Type = tabular.TypeString
	}

	for _, cell := range cells {
		if isNull(cell) {
			col.AppendNull()
			continue
		}
		v := strings.TrimSpace(cell)
		switch col.Type {
		case tabular.TypeInt:
			n, _ := strconv.ParseInt(v, 10, 64)
			mustAppend(&col, n)
		case tabular.TypeFloat:
			f, _ := strconv.ParseFloat(v, 64)
			mustAppend(&col, f)
		case tabular.TypeBool:
			mustAppend(&col, parseBoolCell(v))
		default:
			mustAppend(&col, cell)
		}
	}
	return col
}

// boolCell reports whether a cell looks boolean. Stricter than
// strconv.ParseBool: bare digits stay numeric.
func boolCell(v string) bool {
	switch strings.ToLower(v) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}

func parseBoolCell(v string) bool {
	switch strings.ToLower(v) {
	case "true", "yes":
		return true
	}
	return false
}

func mustAppend(col *tabular.Column, v any) {
	if err := col.Append(v); err != nil {
		// Unreachable: the value was produced for the inferred type.
		panic(fmt.Sprintf("ingest: append %v to %s column: %v", v, col.Name, err))
	}
}

// buildTable assembles a table from a header row and data rows. Short
// rows are padded with nulls, long rows truncated. Duplicate or blank
// headers are disambiguated.
func buildTable(header []string, rows [][]string) *tabular.Table {
	names := dedupeHeaders(header)
	cols := make([]tabular.Column, len(names))
	for c, name := range names {
		cells := make([]string, len(rows))
		for r, row := range rows {
			if c < len(row) {
				cells[r] = row[c]
			}
		}
		cols[c] = inferColumn(name, cells)
	}
	return &tabular.Table{Columns: cols}
}

func dedupeHeaders(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			out[i] = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			out[i] = name
		}
		seen[name]++
	}
	return out
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"fmt"

	"github.com/tealeg/xlsx"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// ReadExcel ingests an xlsx workbook, one table per non-empty sheet.
// The first row of each sheet is its header.
func ReadExcel(data []byte, limits Limits) (*tabular.Collection, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("parse xlsx: %w", err)
	}

	tc := tabular.NewCollection()
	for _, sheet := range file.Sheets {
		rows := sheetCells(sheet)
		if len(rows) < 2 {
			continue // header-only or empty sheets carry no data
		}
		header, body := rows[0], rows[1:]
		if limits.MaxRows > 0 && len(body) > limits.MaxRows {
			return nil, fmt.Errorf("%w: sheet %q over %d rows", ErrTooLarge, sheet.Name, limits.MaxRows)
		}

		t := buildTable(header, body)
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("ingest sheet %q: %w", sheet.Name, err)
		}
		tc.Put(tableName(sheet.Name), t)
		if limits.MaxTables > 0 && tc.Len() > limits.MaxTables {
			return nil, fmt.Errorf("%w: over %d sheets", ErrTooLarge, limits.MaxTables)
		}
	}
	if tc.Len() == 0 {
		return nil, ErrEmpty
	}
	return tc, nil
}

func sheetCells(sheet *xlsx.Sheet) [][]string {
	out := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		empty := true
		for i, cell := range row.Cells {
			cells[i] = cell.String()
			if cells[i] != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, cells)
		}
	}
	return out
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tabular

import (
	"fmt"
	"sort"
)

// Table is an ordered set of equal-length, single-typed columns.
type Table struct {
	Columns []Column `json:"columns"`
}

// NumRows returns the row count (0 for a table with no columns).
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i := range t.Columns {
		names[i] = t.Columns[i].Name
	}
	return names
}

// Column returns the named column, or nil if absent.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// Select returns a new table containing the given rows, in order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{Columns: make([]Column, len(t.Columns))}
	for i := range t.Columns {
		out.Columns[i] = t.Columns[i].Select(rows)
	}
	return out
}

// SortedBy returns a new table sorted by the named column. The sort is
// stable; nulls sort first regardless of direction.
func (t *Table) SortedBy(column string, descending bool) (*Table, error) {
	col := t.Column(column)
	if col == nil {
		return nil, fmt.Errorf("column %q not found", column)
	}
	rows := make([]int, t.NumRows())
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		cmp := col.Compare(rows[a], rows[b])
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
	return t.Select(rows), nil
}

// DropColumns returns a new table without the named columns. Unknown
// names are an error so callers see typos instead of silent no-ops.
func (t *Table) DropColumns(names []string) (*Table, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !t.HasColumn(n) {
			return nil, fmt.Errorf("column %q not found", n)
		}
		drop[n] = true
	}
	out := &Table{}
	for i := range t.Columns {
		if !drop[t.Columns[i].Name] {
			out.Columns = append(out.Columns, t.Columns[i])
		}
	}
	return out, nil
}

// RenameColumns returns a new table with columns renamed per mapping.
// Every key must exist and the result must not contain duplicates.
func (t *Table) RenameColumns(mapping map[string]string) (*Table, error) {
	for old := range mapping {
		if !t.HasColumn(old) {
			return nil, fmt.Errorf("column %q not found", old)
		}
	}
	out := &Table{Columns: make([]Column, len(t.Columns))}
	seen := make(map[string]bool, len(t.Columns))
	for i := range t.Columns {
		out.Columns[i] = t.Columns[i]
		if newName, ok := mapping[t.Columns[i].Name]; ok {
			out.Columns[i].Name = newName
		}
		if seen[out.Columns[i].Name] {
			return nil, fmt.Errorf("rename produces duplicate column %q", out.Columns[i].Name)
		}
		seen[out.Columns[i].Name] = true
	}
	return out, nil
}

// Head returns up to n leading rows as a new table.
func (t *Table) Head(n int) *Table {
	if n > t.NumRows() {
		n = t.NumRows()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.Select(rows)
}

// Rows renders rows [start, start+count) as display maps for previews.
func (t *Table) Rows(start, count int) []map[string]any {
	end := start + count
	if end > t.NumRows() {
		end = t.NumRows()
	}
	if start < 0 || start >= end {
		return nil
	}
	out := make([]map[string]any, 0, end-start)
	for r := start; r < end; r++ {
		row := make(map[string]any, len(t.Columns))
		for i := range t.Columns {
			row[t.Columns[i].Name] = t.Columns[i].Value(r)
		}
		out = append(out, row)
	}
	return out
}

// Validate checks structural invariants: unique column names, known
// types, equal column lengths, aligned null masks.
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	rows := -1
	for i := range t.Columns {
		col := &t.Columns[i]
		if err := col.validate(); err != nil {
			return err
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate column %q", col.Name)
		}
		seen[col.Name] = true
		if rows == -1 {
			rows = col.Len()
		} else if col.Len() != rows {
			return fmt.Errorf("column %s: length %d != %d", col.Name, col.Len(), rows)
		}
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest turns uploaded CSV and Excel files into a table
// collection. Column types are inferred per column: int64, then
// float64, then bool, then string; empty and common null markers
// become null cells.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

var (
	// ErrUnsupportedFormat is returned for file types the ingester
	// does not handle.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("upload exceeds the size limit")

	// ErrEmpty is returned when a file yields no usable rows.
	ErrEmpty = errors.New("file contains no data rows")
)

// Limits bound what one upload may contain.
type Limits struct {
	// MaxBytes caps the raw upload size.
	MaxBytes int64

	// MaxTables caps the number of tables (Excel sheets).
	MaxTables int

	// MaxRows caps the rows per table.
	MaxRows int
}

// DefaultLimits returns production defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:  32 << 20, // 32MB
		MaxTables: 16,
		MaxRows:   500_000,
	}
}

// Read ingests an upload, dispatching by file extension.
//
// Inputs:
//
//	name - The uploaded file name; decides the format and table name
//	r - The file contents
//	limits - Upload bounds
//
// Outputs:
//
//	*tabular.Collection - One table for CSV, one per sheet for Excel
//	error - ErrUnsupportedFormat, ErrTooLarge, ErrEmpty, or a parse error
func Read(name string, r io.Reader, limits Limits) (*tabular.Collection, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return ReadCSV(name, r, limits)
	case ".xlsx":
		data, err := readAll(r, limits.MaxBytes)
		if err != nil {
			return nil, err
		}
		return ReadExcel(data, limits)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// readAll reads at most max+1 bytes so oversized uploads fail without
// buffering the whole file.
func readAll(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

// tableName derives a table name from a file or sheet name.
func tableName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, base)
	base = strings.Trim(base, "_")
	if base == "" {
		return "table"
	}
	return base
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/AleutianAI/insight/services/insight/tabular"
)

// ReadCSV ingests a delimited text file as a single table. The first
// row is the header; the delimiter is sniffed from it.
func ReadCSV(name string, r io.Reader, limits Limits) (*tabular.Collection, error) {
	data, err := readAll(r, limits.MaxBytes)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1 // ragged rows are padded later
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrEmpty
	}
	header, rows := records[0], records[1:]
	if limits.MaxRows > 0 && len(rows) > limits.MaxRows {
		return nil, fmt.Errorf("%w: limit %d rows", ErrTooLarge, limits.MaxRows)
	}

	t := buildTable(header, rows)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", name, err)
	}
	tc := tabular.NewCollection()
	tc.Put(tableName(name), t)
	return tc, nil
}

// sniffDelimiter picks the candidate delimiter that appears most often
// in the first line. Defaults to comma.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, c := range []byte{';', '\t', '|'} {
		if n := bytes.Count(line, []byte{c}); n > bestCount {
			best, bestCount = rune(c), n
		}
	}
	return best
}

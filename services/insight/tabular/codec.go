// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tabular

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/golang/snappy"
)

// codecVersion is the first byte of every encoded payload. Bump it when
// the wire shape of Collection changes.
const codecVersion byte = 1

// ErrCodecVersion indicates a payload written by an incompatible codec.
var ErrCodecVersion = errors.New("unsupported payload codec version")

// Encode serializes a collection to a storage-safe byte payload:
// one version byte followed by snappy-compressed JSON. The encoding is
// lossless, including column types and null masks.
func Encode(c *Collection) ([]byte, error) {
	if c == nil {
		return nil, errors.New("collection is nil")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	compressed := snappy.Encode(nil, raw)
	out := make([]byte, 0, len(compressed)+1)
	out = append(out, codecVersion)
	return append(out, compressed...), nil
}

// Decode reverses Encode.
func Decode(payload []byte) (*Collection, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	if payload[0] != codecVersion {
		return nil, fmt.Errorf("%w: %d", ErrCodecVersion, payload[0])
	}
	raw, err := snappy.Decode(nil, payload[1:])
	if err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	var c Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if c.Tables == nil {
		c.Tables = make(map[string]*Table)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	return &c, nil
}

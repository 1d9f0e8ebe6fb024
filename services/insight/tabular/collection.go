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

// Collection maps table names to tables. It is the working state of a
// session and the payload of a version snapshot.
type Collection struct {
	Tables map[string]*Table `json:"tables"`
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{Tables: make(map[string]*Table)}
}

// Table returns the named table, or nil if absent.
func (c *Collection) Table(name string) *Table {
	if c.Tables == nil {
		return nil
	}
	return c.Tables[name]
}

// Put inserts or replaces a table.
func (c *Collection) Put(name string, t *Table) {
	if c.Tables == nil {
		c.Tables = make(map[string]*Table)
	}
	c.Tables[name] = t
}

// Len returns the number of tables.
func (c *Collection) Len() int {
	return len(c.Tables)
}

// Names returns table names in lexical order. Insertion order is not
// significant for collections, so a stable listing order is used for
// previews and logs.
func (c *Collection) Names() []string {
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every table and rejects empty table names.
func (c *Collection) Validate() error {
	for name, t := range c.Tables {
		if name == "" {
			return fmt.Errorf("collection contains table with empty name")
		}
		if t == nil {
			return fmt.Errorf("table %q is nil", name)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("table %q: %w", name, err)
		}
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/AleutianAI/insight/services/insight/store"
)

// Context is the rolling conversational context for one session: just
// enough of the last exchange to resolve follow-ups like "and sorted
// by price?" into full questions. Stored under session:{sid}:context
// and expired with the rest of the session's keys.
type Context struct {
	LastQuery     string    `json:"last_query,omitempty"`
	LastAnswer    string    `json:"last_answer,omitempty"`
	LastOperation string    `json:"last_operation,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Empty reports whether there is no prior exchange to resolve against.
func (c *Context) Empty() bool {
	return c.LastQuery == "" && c.LastAnswer == ""
}

// ContextStore persists the conversational context record.
type ContextStore struct {
	kv store.KV
}

// NewContextStore wraps a KV store.
func NewContextStore(kv store.KV) *ContextStore {
	return &ContextStore{kv: kv}
}

// Get loads the context. A missing key returns an empty context: a
// session that has not chatted yet is normal, not an error.
func (s *ContextStore) Get(ctx context.Context, sid string) (*Context, error) {
	raw, err := s.kv.Get(ctx, contextKey(sid))
	if errors.Is(err, store.ErrKeyNotFound) {
		return &Context{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read context for %s: %w", sid, err)
	}
	var c Context
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode context for %s: %w", sid, err)
	}
	return &c, nil
}

// Put writes the context with the session TTL.
func (s *ContextStore) Put(ctx context.Context, sid string, c *Context, ttl time.Duration) error {
	c.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode context for %s: %w", sid, err)
	}
	if err := s.kv.Set(ctx, contextKey(sid), raw, ttl); err != nil {
		return fmt.Errorf("write context for %s: %w", sid, err)
	}
	return nil
}

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

// Metadata is the small mutable record for one session: the current
// version pointer plus descriptive facts for listings and the UI.
type Metadata struct {
	// CurrentVersion is the version id the working table collection
	// currently represents. Always a node in the session's graph.
	CurrentVersion string `json:"current_version"`

	// SourceName and SourceType describe what was ingested
	// ("sales.xlsx", "excel").
	SourceName string `json:"source_name,omitempty"`
	SourceType string `json:"source_type,omitempty"`

	// TableCount mirrors the working collection's table count.
	TableCount int `json:"table_count"`

	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
}

// MetadataStore persists Metadata under session:{sid}:meta. The meta
// key doubles as the session's existence marker: if it is gone, the
// session is gone.
type MetadataStore struct {
	kv store.KV
}

// NewMetadataStore wraps a KV store.
func NewMetadataStore(kv store.KV) *MetadataStore {
	return &MetadataStore{kv: kv}
}

// Get loads metadata, or ErrSessionNotFound.
func (s *MetadataStore) Get(ctx context.Context, sid string) (*Metadata, error) {
	raw, err := s.kv.Get(ctx, metaKey(sid))
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata for %s: %w", sid, err)
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", sid, err)
	}
	return &m, nil
}

// Put writes metadata with the session TTL.
func (s *MetadataStore) Put(ctx context.Context, sid string, m *Metadata, ttl time.Duration) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metadata for %s: %w", sid, err)
	}
	if err := s.kv.Set(ctx, metaKey(sid), raw, ttl); err != nil {
		return fmt.Errorf("write metadata for %s: %w", sid, err)
	}
	return nil
}

// SetCurrentVersion updates the current-version pointer (and the
// last-access stamp). Callers must only invoke this after the version
// payload is durably written; see the engine's ordering invariant.
func (s *MetadataStore) SetCurrentVersion(ctx context.Context, sid, vid string, ttl time.Duration) error {
	m, err := s.Get(ctx, sid)
	if err != nil {
		return err
	}
	m.CurrentVersion = vid
	m.LastAccess = time.Now().UTC()
	return s.Put(ctx, sid, m, ttl)
}

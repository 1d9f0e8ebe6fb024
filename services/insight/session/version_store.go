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

	"github.com/AleutianAI/insight/services/insight/store"
	"github.com/AleutianAI/insight/services/insight/tabular"
)

// VersionStore persists immutable version payloads under
// session:{sid}:version:{vid}.
type VersionStore struct {
	kv store.KV
}

// NewVersionStore wraps a KV store.
func NewVersionStore(kv store.KV) *VersionStore {
	return &VersionStore{kv: kv}
}

// Put writes a version payload with the session TTL.
//
// Versions are immutable: writing an id that already exists fails with
// ErrVersionExists, which signals a version-allocation bug upstream
// rather than a storage condition.
func (s *VersionStore) Put(ctx context.Context, sid, vid string, tc *tabular.Collection, ttl time.Duration) error {
	key := versionKey(sid, vid)
	if _, err := s.kv.Get(ctx, key); err == nil {
		return fmt.Errorf("%w: %s/%s", ErrVersionExists, sid, vid)
	} else if !errors.Is(err, store.ErrKeyNotFound) {
		return fmt.Errorf("check version %s/%s: %w", sid, vid, err)
	}

	payload, err := tabular.Encode(tc)
	if err != nil {
		return fmt.Errorf("encode version %s/%s: %w", sid, vid, err)
	}
	if err := s.kv.Set(ctx, key, payload, ttl); err != nil {
		return fmt.Errorf("write version %s/%s: %w", sid, vid, err)
	}
	return nil
}

// Get loads a version payload, or ErrVersionNotFound.
func (s *VersionStore) Get(ctx context.Context, sid, vid string) (*tabular.Collection, error) {
	payload, err := s.kv.Get(ctx, versionKey(sid, vid))
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrVersionNotFound, sid, vid)
	}
	if err != nil {
		return nil, fmt.Errorf("read version %s/%s: %w", sid, vid, err)
	}
	tc, err := tabular.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode version %s/%s: %w", sid, vid, err)
	}
	return tc, nil
}

// Delete removes version payloads in bulk (pruning, session deletion).
func (s *VersionStore) Delete(ctx context.Context, sid string, vids ...string) error {
	keys := make([]string, len(vids))
	for i, vid := range vids {
		keys[i] = versionKey(sid, vid)
	}
	if _, err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("delete versions for %s: %w", sid, err)
	}
	return nil
}

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

// GraphStore persists a session's version DAG as one JSON document
// under session:{sid}:graph.
//
// Reads and writes are whole-graph: the structure is small (node and
// edge records, no payloads) and a session has a single writer, so
// read-modify-write is the simplest correct shape. The engine's
// per-session lock is what makes the read-modify-write safe.
type GraphStore struct {
	kv store.KV
}

// NewGraphStore wraps a KV store.
func NewGraphStore(kv store.KV) *GraphStore {
	return &GraphStore{kv: kv}
}

// Get loads the graph. A missing key returns an empty graph: that is
// the valid initial state of a new session, not an error.
func (s *GraphStore) Get(ctx context.Context, sid string) (*Graph, error) {
	raw, err := s.kv.Get(ctx, graphKey(sid))
	if errors.Is(err, store.ErrKeyNotFound) {
		return NewGraph(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read graph for %s: %w", sid, err)
	}
	var g Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode graph for %s: %w", sid, err)
	}
	return &g, nil
}

// Put writes the graph back with the session TTL.
func (s *GraphStore) Put(ctx context.Context, sid string, g *Graph, ttl time.Duration) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode graph for %s: %w", sid, err)
	}
	if err := s.kv.Set(ctx, graphKey(sid), raw, ttl); err != nil {
		return fmt.Errorf("write graph for %s: %w", sid, err)
	}
	return nil
}

// Append loads the graph, appends one node (and its parent edge when
// the node has a parent), and writes the graph back.
//
// Invariants enforced on the loaded graph (defense against duplicate
// operation replay and pointer corruption):
//   - the new node id must not already exist
//   - a non-empty parent must exist in the loaded node set
//
// Violations return ErrGraphInvariant and leave storage untouched.
func (s *GraphStore) Append(ctx context.Context, sid string, n Node, ttl time.Duration) error {
	g, err := s.Get(ctx, sid)
	if err != nil {
		return err
	}
	if err := g.Append(n); err != nil {
		return fmt.Errorf("append to graph for %s: %w", sid, err)
	}
	return s.Put(ctx, sid, g, ttl)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session implements the versioned session state machine: a
// content-addressed, branchable history of table transformations kept
// consistent with a mutable "current" working state under a shared
// expiration policy.
//
// # Model
//
// A session owns one metadata record, one version DAG, one working
// table collection ("current"), and an immutable payload per version.
// Each successful tool operation becomes exactly one new version, one
// parent→child edge, and a current-pointer advance. Branching loads a
// historical version into the current slot and moves the pointer back
// without adding a node; the next version created from there records
// the historical id as its parent, which is how forks appear.
//
// # Ordering invariant
//
// The backing KV store has no multi-key transactions, so the engine
// promises a strict write order inside every operation:
//
//	version payload → graph append → current tables → metadata pointer
//
// A failure before the pointer update leaves the pointer unchanged. A
// version written without its graph append (crash between steps) is
// unreachable and inert, which is the safe kind of garbage: the
// cleanup command sweeps it once the session expires.
//
// # Unified TTL
//
// Every key of one session shares a conceptual deadline. Any access
// refreshes the deadline on all of the session's keys in one batch; a
// partial refresh is logged, not fatal, since a straggling key only
// expires slightly early.
//
// # Concurrency
//
// Operations on one session are serialized by an in-process keyed
// mutex. Cross-process writers to the same session are not supported;
// deployments that share one Redis between replicas must route a
// session's requests to one replica.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/insight/services/insight/store"
	"github.com/AleutianAI/insight/services/insight/tabular"
)

// DefaultTTL is the sliding-window session lifetime.
const DefaultTTL = 30 * time.Minute

// RootVersionID is the id of every session's initial version.
const RootVersionID = "v0"

// Metrics receives engine events. Implemented by the telemetry
// package; a nil Metrics disables instrumentation.
type Metrics interface {
	VersionCreated()
	BranchCreated()
	NodesPruned(n int)
	SessionDeleted()
	RefreshMissed(n int)
}

// SourceInfo describes what a session was created from.
type SourceInfo struct {
	Name string
	Type string
}

// SessionInfo pairs a session id with its metadata for listings.
type SessionInfo struct {
	ID       string    `json:"session_id"`
	Metadata *Metadata `json:"metadata"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithTTL overrides the session TTL.
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches engine instrumentation.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine orchestrates version creation, branching, reversion, and
// pruning. It is the only component that mutates a session's graph.
type Engine struct {
	kv       store.KV
	versions *VersionStore
	graphs   *GraphStore
	meta     *MetadataStore
	contexts *ContextStore

	ttl     time.Duration
	logger  *slog.Logger
	metrics Metrics

	locks keyedMutex
	loads singleflight.Group
}

// NewEngine creates an engine over the given KV store.
func NewEngine(kv store.KV, opts ...Option) *Engine {
	e := &Engine{
		kv:       kv,
		versions: NewVersionStore(kv),
		graphs:   NewGraphStore(kv),
		meta:     NewMetadataStore(kv),
		contexts: NewContextStore(kv),
		ttl:      DefaultTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TTL returns the configured session lifetime.
func (e *Engine) TTL() time.Duration { return e.ttl }

// CreateSession creates a new session from an ingested collection:
// root version v0, a single-node graph, the working copy, and the
// metadata record, in that order. Returns the new session id.
func (e *Engine) CreateSession(ctx context.Context, src SourceInfo, tc *tabular.Collection) (string, error) {
	sid := uuid.NewString()
	unlock := e.locks.lock(sid)
	defer unlock()

	if err := e.versions.Put(ctx, sid, RootVersionID, tc, e.ttl); err != nil {
		return "", err
	}
	root := Node{
		ID:        RootVersionID,
		Label:     "Initial upload",
		Operation: "upload",
		Timestamp: time.Now().UTC(),
	}
	if err := e.graphs.Append(ctx, sid, root, e.ttl); err != nil {
		return "", err
	}
	if err := e.putTables(ctx, sid, tc); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	m := &Metadata{
		CurrentVersion: RootVersionID,
		SourceName:     src.Name,
		SourceType:     src.Type,
		TableCount:     tc.Len(),
		CreatedAt:      now,
		LastAccess:     now,
	}
	if err := e.meta.Put(ctx, sid, m, e.ttl); err != nil {
		return "", err
	}

	e.logger.Info("session created",
		"session_id", sid,
		"source", src.Name,
		"tables", tc.Len())
	return sid, nil
}

// CreateVersion snapshots the post-operation collection as a new
// version, links it to the current version, advances the pointer, and
// refreshes the session deadline.
//
// Write order (the engine's one ordering guarantee): version payload,
// then graph append, then working tables, then the pointer. Any
// failure before the pointer update leaves the current version
// unchanged, so a half-written version can never become "current".
func (e *Engine) CreateVersion(ctx context.Context, sid, label, operation, query string, updated *tabular.Collection) (string, error) {
	unlock := e.locks.lock(sid)
	defer unlock()

	m, err := e.meta.Get(ctx, sid)
	if err != nil {
		return "", err
	}
	parent := m.CurrentVersion

	g, err := e.graphs.Get(ctx, sid)
	if err != nil {
		return "", err
	}
	if !g.HasNode(parent) {
		err := errGraphf("current version %s missing from graph of %s", parent, sid)
		e.logger.Error("graph invariant violation", "session_id", sid, "error", err)
		return "", err
	}
	vid := g.NextVersionID()

	if err := e.versions.Put(ctx, sid, vid, updated, e.ttl); err != nil {
		return "", err
	}
	node := Node{
		ID:        vid,
		Label:     label,
		Operation: operation,
		Query:     query,
		Timestamp: time.Now().UTC(),
		Parent:    parent,
	}
	if err := e.graphs.Append(ctx, sid, node, e.ttl); err != nil {
		return "", err
	}
	if err := e.putTables(ctx, sid, updated); err != nil {
		return "", err
	}
	m.CurrentVersion = vid
	m.TableCount = updated.Len()
	m.LastAccess = time.Now().UTC()
	if err := e.meta.Put(ctx, sid, m, e.ttl); err != nil {
		return "", err
	}

	e.refreshAll(ctx, sid)
	if e.metrics != nil {
		e.metrics.VersionCreated()
	}
	e.logger.Info("version created",
		"session_id", sid,
		"version_id", vid,
		"parent", parent,
		"operation", operation)
	return vid, nil
}

// BranchTo loads a historical version's payload into the working slot
// and moves the current pointer to it. No graph node is created: the
// next CreateVersion from this state records the historical id as its
// parent, producing the fork.
//
// A missing version fails with ErrVersionNotFound before anything is
// mutated.
func (e *Engine) BranchTo(ctx context.Context, sid, vid string) error {
	unlock := e.locks.lock(sid)
	defer unlock()

	tc, err := e.versions.Get(ctx, sid, vid)
	if err != nil {
		return err
	}
	if err := e.putTables(ctx, sid, tc); err != nil {
		return err
	}
	if err := e.meta.SetCurrentVersion(ctx, sid, vid, e.ttl); err != nil {
		return err
	}

	e.refreshAll(ctx, sid)
	if e.metrics != nil {
		e.metrics.BranchCreated()
	}
	e.logger.Info("branched", "session_id", sid, "version_id", vid)
	return nil
}

// Prune removes the oldest versions beyond keepLastN, never touching
// the ancestor path of the current version. It prefers keeping more
// history over breaking reachability: when the excess consists of
// protected ancestors, fewer (or zero) nodes are removed.
func (e *Engine) Prune(ctx context.Context, sid string, keepLastN int) (int, error) {
	if keepLastN < 1 {
		return 0, fmt.Errorf("keep_last_n must be at least 1")
	}
	unlock := e.locks.lock(sid)
	defer unlock()

	m, err := e.meta.Get(ctx, sid)
	if err != nil {
		return 0, err
	}
	g, err := e.graphs.Get(ctx, sid)
	if err != nil {
		return 0, err
	}
	if g.Len() <= keepLastN {
		return 0, nil
	}

	// Nodes are appended in creation order, so slice order is age order.
	protected := g.Ancestors(m.CurrentVersion)
	excess := g.Len() - keepLastN
	remove := make(map[string]bool)
	for _, n := range g.Nodes {
		if len(remove) == excess {
			break
		}
		if protected[n.ID] {
			continue
		}
		remove[n.ID] = true
	}
	if len(remove) == 0 {
		return 0, nil
	}

	g.Remove(remove)
	if !g.ReachesRoot(m.CurrentVersion) {
		// Cannot happen while ancestors are protected; abort rather
		// than persist a graph that breaks reachability.
		err := errGraphf("prune would disconnect current version %s of %s", m.CurrentVersion, sid)
		e.logger.Error("graph invariant violation", "session_id", sid, "error", err)
		return 0, err
	}
	if err := e.graphs.Put(ctx, sid, g, e.ttl); err != nil {
		return 0, err
	}

	vids := make([]string, 0, len(remove))
	for vid := range remove {
		vids = append(vids, vid)
	}
	if err := e.versions.Delete(ctx, sid, vids...); err != nil {
		// Graph already updated; leftover payloads are unreachable and
		// swept by cleanup after expiry.
		e.logger.Warn("prune left orphaned version payloads",
			"session_id", sid, "error", err)
	}

	e.refreshAll(ctx, sid)
	if e.metrics != nil {
		e.metrics.NodesPruned(len(remove))
	}
	e.logger.Info("pruned versions",
		"session_id", sid,
		"removed", len(remove),
		"remaining", g.Len())
	return len(remove), nil
}

// Touch verifies the session exists and slides the unified deadline on
// all of its keys. Called on every read access.
func (e *Engine) Touch(ctx context.Context, sid string) error {
	if _, err := e.meta.Get(ctx, sid); err != nil {
		return err
	}
	e.refreshAll(ctx, sid)
	return nil
}

// Tables loads the session's working table collection. Concurrent
// loads of the same session are coalesced: payloads can be large and
// decoding one per caller is wasted work.
func (e *Engine) Tables(ctx context.Context, sid string) (*tabular.Collection, error) {
	v, err, _ := e.loads.Do(sid, func() (any, error) {
		raw, err := e.kv.Get(ctx, tablesKey(sid))
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
			}
			return nil, fmt.Errorf("read tables for %s: %w", sid, err)
		}
		return tabular.Decode(raw)
	})
	if err != nil {
		return nil, err
	}
	return v.(*tabular.Collection), nil
}

// Version loads an immutable version payload.
func (e *Engine) Version(ctx context.Context, sid, vid string) (*tabular.Collection, error) {
	return e.versions.Get(ctx, sid, vid)
}

// Graph returns the session's version DAG.
func (e *Engine) Graph(ctx context.Context, sid string) (*Graph, error) {
	if _, err := e.meta.Get(ctx, sid); err != nil {
		return nil, err
	}
	return e.graphs.Get(ctx, sid)
}

// Metadata returns the session's metadata record.
func (e *Engine) Metadata(ctx context.Context, sid string) (*Metadata, error) {
	return e.meta.Get(ctx, sid)
}

// Context returns the session's conversational context.
func (e *Engine) Context(ctx context.Context, sid string) (*Context, error) {
	return e.contexts.Get(ctx, sid)
}

// SetContext records the latest exchange for follow-up resolution.
func (e *Engine) SetContext(ctx context.Context, sid string, c *Context) error {
	return e.contexts.Put(ctx, sid, c, e.ttl)
}

// DeleteSession removes every key owned by the session. Returns the
// number of keys deleted.
func (e *Engine) DeleteSession(ctx context.Context, sid string) (int, error) {
	unlock := e.locks.lock(sid)
	defer unlock()

	keys, err := e.kv.Scan(ctx, sessionPrefix(sid))
	if err != nil {
		return 0, fmt.Errorf("scan session %s: %w", sid, err)
	}
	if len(keys) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	n, err := e.kv.Delete(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("delete session %s: %w", sid, err)
	}
	if e.metrics != nil {
		e.metrics.SessionDeleted()
	}
	e.logger.Info("session deleted", "session_id", sid, "keys", n)
	return n, nil
}

// ListSessions returns every live session with its metadata.
func (e *Engine) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	keys, err := e.kv.Scan(ctx, MetaKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	var out []SessionInfo
	for _, key := range keys {
		if !IsMetaKey(key) {
			continue
		}
		sid := SessionIDFromKey(key)
		m, err := e.meta.Get(ctx, sid)
		if err != nil {
			continue // expired between scan and read
		}
		out = append(out, SessionInfo{ID: sid, Metadata: m})
	}
	return out, nil
}

// putTables writes the working collection ("current" slot). This is a
// distinct write path from version storage: the current slot is
// mutable, version payloads never are.
func (e *Engine) putTables(ctx context.Context, sid string, tc *tabular.Collection) error {
	payload, err := tabular.Encode(tc)
	if err != nil {
		return fmt.Errorf("encode tables for %s: %w", sid, err)
	}
	if err := e.kv.Set(ctx, tablesKey(sid), payload, e.ttl); err != nil {
		return fmt.Errorf("write tables for %s: %w", sid, err)
	}
	return nil
}

// refreshAll slides the unified deadline on every key the session
// owns: tables, meta, graph, context, and each version payload.
//
// Partial failure is deliberately non-fatal (the operation that
// triggered the refresh already succeeded); a key that missed the
// batch expires slightly earlier than its siblings, which the cleanup
// command tolerates. The context key is frequently absent on sessions
// that never chatted, so it is not reported as missing.
func (e *Engine) refreshAll(ctx context.Context, sid string) {
	keys := []string{tablesKey(sid), metaKey(sid), graphKey(sid), contextKey(sid)}
	g, err := e.graphs.Get(ctx, sid)
	if err == nil {
		for _, n := range g.Nodes {
			keys = append(keys, versionKey(sid, n.ID))
		}
	} else {
		e.logger.Warn("ttl refresh could not enumerate versions",
			"session_id", sid, "error", err)
	}

	missing, err := e.kv.Refresh(ctx, e.ttl, keys...)
	if err != nil {
		e.logger.Warn("ttl refresh failed", "session_id", sid, "error", err)
		return
	}
	real := missing[:0:0]
	for _, key := range missing {
		if key != contextKey(sid) {
			real = append(real, key)
		}
	}
	if len(real) > 0 {
		if e.metrics != nil {
			e.metrics.RefreshMissed(len(real))
		}
		e.logger.Warn("ttl refresh skipped missing keys",
			"session_id", sid, "keys", real)
	}
}


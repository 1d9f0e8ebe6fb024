// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/insight/services/insight/store"
	badgerstore "github.com/AleutianAI/insight/services/insight/store/badger"
	"github.com/AleutianAI/insight/services/insight/tabular"
)

// faultKV wraps a KV store and fails Set calls on matching keys.
// Used to verify the engine's ordering invariant under partial writes.
type faultKV struct {
	store.KV
	failSetSubstr string
	armed         bool
}

func (f *faultKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.armed && f.failSetSubstr != "" && strings.Contains(key, f.failSetSubstr) {
		return store.ErrUnavailable
	}
	return f.KV.Set(ctx, key, value, ttl)
}

func newTestKV(t *testing.T) store.KV {
	t.Helper()
	kv, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(newTestKV(t), opts...)
}

func salesCollection(t *testing.T, prices ...float64) *tabular.Collection {
	t.Helper()
	products := make([]string, len(prices))
	for i := range prices {
		products[i] = "item"
	}
	c := tabular.NewCollection()
	c.Put("sales", &tabular.Table{Columns: []tabular.Column{
		{Name: "product", Type: tabular.TypeString, Strings: products},
		{Name: "price", Type: tabular.TypeFloat, Floats: prices},
	}})
	require.NoError(t, c.Validate())
	return c
}

func mustCreateSession(t *testing.T, e *Engine) string {
	t.Helper()
	sid, err := e.CreateSession(context.Background(),
		SourceInfo{Name: "sales.csv", Type: "csv"},
		salesCollection(t, 10, 150, 220))
	require.NoError(t, err)
	return sid
}

func TestCreateSession_RootVersion(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sid := mustCreateSession(t, e)

	m, err := e.Metadata(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "v0", m.CurrentVersion)
	assert.Equal(t, "sales.csv", m.SourceName)
	assert.Equal(t, 1, m.TableCount)

	g, err := e.Graph(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())
	assert.Empty(t, g.Edges)
	assert.Equal(t, "v0", g.Nodes[0].ID)
	assert.Empty(t, g.Nodes[0].Parent, "root has no parent")

	tc, err := e.Tables(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 3, tc.Table("sales").NumRows())
}

func TestCreateVersion_AdvancesPointerAndGraph(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sid := mustCreateSession(t, e)

	vid, err := e.CreateVersion(ctx, sid, "filter price > 100", "filter_rows",
		"show expensive items", salesCollection(t, 150, 220))
	require.NoError(t, err)
	assert.Equal(t, "v1", vid)

	g, err := e.Graph(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())
	require.Len(t, g.Edges, 1)
	assert.Equal(t, Edge{From: "v0", To: "v1", Label: "filter price > 100"}, g.Edges[0])
	assert.True(t, g.Acyclic())

	m, err := e.Metadata(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "v1", m.CurrentVersion)
	assert.True(t, g.ReachesRoot(m.CurrentVersion), "pointer must stay reachable from a root")

	// Working state reflects the post-operation collection.
	tc, err := e.Tables(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 2, tc.Table("sales").NumRows())

	// The snapshot of v0 is untouched.
	v0, err := e.Version(ctx, sid, "v0")
	require.NoError(t, err)
	assert.Equal(t, 3, v0.Table("sales").NumRows())
}

func TestVersion_Immutable(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sid := mustCreateSession(t, e)

	first, err := e.Version(ctx, sid, "v0")
	require.NoError(t, err)

	_, err = e.CreateVersion(ctx, sid, "sort", "sort_table", "", salesCollection(t, 220, 150, 10))
	require.NoError(t, err)

	second, err := e.Version(ctx, sid, "v0")
	require.NoError(t, err)
	assert.Equal(t, first, second, "reads of the same version must be identical")
}

func TestBranchTo_ForkSemantics(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sid := mustCreateSession(t, e)

	_, err := e.CreateVersion(ctx, sid, "filter", "filter_rows", "", salesCollection(t, 150, 220))
	require.NoError(t, err)

	// Branch back to the root and continue: the next version forks v0.
	require.NoError(t, e.BranchTo(ctx, sid, "v0"))
	m, err := e.Metadata(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "v0", m.CurrentVersion)

	vid, err := e.CreateVersion(ctx, sid, "drop column product", "drop_columns", "", salesCollection(t, 10, 150, 220))
	require.NoError(t, err)
	assert.Equal(t, "v2", vid)

	require.NoError(t, e.BranchTo(ctx, sid, "v0"))
	vid, err = e.CreateVersion(ctx, sid, "sort by price", "sort_table", "", salesCollection(t, 220, 150, 10))
	require.NoError(t, err)
	assert.Equal(t, "v3", vid)

	g, err := e.Graph(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2", "v3"}, g.Children("v0"), "v0 forks three ways")
	assert.Equal(t, "v0", g.Node("v2").Parent)
	assert.Equal(t, "v0", g.Node("v3").Parent)
	assert.True(t, g.Acyclic())
	assert.True(t, g.HasNode("v1"), "sibling branches stay recorded")

	// Branching never adds nodes.
	assert.Equal(t, 4, g.Len())
}

func TestBranchTo_MissingVersion(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sid := mustCreateSession(t, e)

	err := e.BranchTo(ctx, sid, "v99")
	assert.ErrorIs(t, err, ErrVersionNotFound)

	m, err := e.Metadata(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "v0", m.CurrentVersion, "failed branch must not move the pointer")

	tc, err := e.Tables(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 3, tc.Table("sales").NumRows(), "failed branch must not touch the working state")
}

func TestCreateVersion_OrderingInvariantOnGraphFailure(t *testing.T) {
	kv := newTestKV(t)
	fkv := &faultKV{KV: kv, failSetSubstr: ":graph"}
	e := NewEngine(fkv)
	ctx := context.Background()

	sid, err := e.CreateSession(ctx, SourceInfo{Name: "sales.csv", Type: "csv"}, salesCollection(t, 10, 150))
	require.NoError(t, err)

	fkv.armed = true
	_, err = e.CreateVersion(ctx, sid, "filter", "filter_rows", "", salesCollection(t, 150))
	require.Error(t, err)
	fkv.armed = false

	// Pointer unchanged: the graph append failed before the metadata step.
	m, err := e.Metadata(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "v0", m.CurrentVersion)

	// The orphaned payload may exist, but it is not current and not in
	// the graph; the next create allocates the same id and fails the
	// immutability check, or allocates past it once the graph knows it.
	g, err := e.Graph(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
	assert.True(t, g.Acyclic())
}

func TestCreateVersion_SessionExpired(t *testing.T) {
	e := newTestEngine(t)
	sid := "no-such-session"
	_, err := e.CreateVersion(context.Background(), sid, "x", "y", "", salesCollection(t, 1))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPrune_KeepsAncestorPath(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sid := mustCreateSession(t, e)

	// Chain v0..v5.
	for i := 0; i < 5; i++ {
		_, err := e.CreateVersion(ctx, sid, "step", "filter_rows", "", salesCollection(t, float64(i)))
		require.NoError(t, err)
	}
	// Fork from the root: current becomes v6 with parent v0.
	require.NoError(t, e.BranchTo(ctx, sid, "v0"))
	vid, err := e.CreateVersion(ctx, sid, "fork", "sort_table", "", salesCollection(t, 9))
	require.NoError(t, err)
	require.Equal(t, "v6", vid)

	pruned, err := e.Prune(ctx, sid, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, pruned, "v1..v4 are the oldest non-ancestors")

	g, err := e.Graph(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
	assert.True(t, g.HasNode("v0"), "ancestor of current survives")
	assert.True(t, g.HasNode("v6"), "current survives")
	assert.True(t, g.ReachesRoot("v6"))

	// Pruned payloads are gone; protected ones remain readable.
	_, err = e.Version(ctx, sid, "v1")
	assert.ErrorIs(t, err, ErrVersionNotFound)
	_, err = e.Version(ctx, sid, "v0")
	assert.NoError(t, err)

	// Id allocation stays monotonic after pruning.
	vid, err = e.CreateVersion(ctx, sid, "after prune", "fill_missing", "", salesCollection(t, 9))
	require.NoError(t, err)
	assert.Equal(t, "v7", vid)
}

func TestPrune_PrefersHistoryOverDisconnection(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sid := mustCreateSession(t, e)

	for i := 0; i < 2; i++ {
		_, err := e.CreateVersion(ctx, sid, "step", "filter_rows", "", salesCollection(t, float64(i)))
		require.NoError(t, err)
	}
	// Current is v2; every node (v0, v1, v2) is on its ancestor path.
	pruned, err := e.Prune(ctx, sid, 1)
	require.NoError(t, err)
	assert.Zero(t, pruned, "ancestors of current are never removed, even when keep_last_n demands it")

	g, err := e.Graph(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
}

func TestPrune_NoExcess(t *testing.T) {
	e := newTestEngine(t)
	sid := mustCreateSession(t, e)

	pruned, err := e.Prune(context.Background(), sid, 10)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	_, err = e.Prune(context.Background(), sid, 0)
	assert.Error(t, err)
}

func TestTTL_SynchronizedAcrossKeys(t *testing.T) {
	kv := newTestKV(t)
	e := NewEngine(kv, WithTTL(time.Hour))
	ctx := context.Background()

	sid, err := e.CreateSession(ctx, SourceInfo{Name: "s.csv", Type: "csv"}, salesCollection(t, 1, 2))
	require.NoError(t, err)
	_, err = e.CreateVersion(ctx, sid, "filter", "filter_rows", "", salesCollection(t, 2))
	require.NoError(t, err)

	keys := []string{
		"session:" + sid + ":tables",
		"session:" + sid + ":meta",
		"session:" + sid + ":graph",
		"session:" + sid + ":version:v0",
		"session:" + sid + ":version:v1",
	}
	for _, key := range keys {
		d, err := kv.TTL(ctx, key)
		require.NoError(t, err, "key %s", key)
		assert.InDelta(t, time.Hour.Seconds(), d.Seconds(), 3, "key %s drifted from the unified deadline", key)
	}
}

func TestTouch_SlidesDeadline(t *testing.T) {
	kv := newTestKV(t)
	e := NewEngine(kv, WithTTL(10*time.Second))
	ctx := context.Background()

	sid, err := e.CreateSession(ctx, SourceInfo{Name: "s.csv", Type: "csv"}, salesCollection(t, 1))
	require.NoError(t, err)

	require.NoError(t, e.Touch(ctx, sid))
	d, err := kv.TTL(ctx, "session:"+sid+":meta")
	require.NoError(t, err)
	assert.Greater(t, d, 8*time.Second)

	assert.ErrorIs(t, e.Touch(ctx, "ghost"), ErrSessionNotFound)
}

func TestSessionExpiry_AllReadsFail(t *testing.T) {
	e := newTestEngine(t, WithTTL(time.Second))
	ctx := context.Background()
	sid := mustCreateSession(t, e)

	time.Sleep(1100 * time.Millisecond)

	_, err := e.Metadata(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = e.Tables(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = e.Graph(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = e.Version(ctx, sid, "v0")
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestDeleteSession_RemovesEveryKey(t *testing.T) {
	kv := newTestKV(t)
	e := NewEngine(kv)
	ctx := context.Background()

	sid, err := e.CreateSession(ctx, SourceInfo{Name: "s.csv", Type: "csv"}, salesCollection(t, 1))
	require.NoError(t, err)
	_, err = e.CreateVersion(ctx, sid, "filter", "filter_rows", "", salesCollection(t))
	require.NoError(t, err)

	n, err := e.DeleteSession(ctx, sid)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 4, "tables, meta, graph, and both versions")

	keys, err := kv.Scan(ctx, "session:"+sid+":")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = e.DeleteSession(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListSessions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	sid1 := mustCreateSession(t, e)
	sid2 := mustCreateSession(t, e)

	infos, err := e.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	ids := []string{infos[0].ID, infos[1].ID}
	assert.ElementsMatch(t, []string{sid1, sid2}, ids)
}

func TestContext_RoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	sid := mustCreateSession(t, e)

	c, err := e.Context(ctx, sid)
	require.NoError(t, err)
	assert.True(t, c.Empty())

	require.NoError(t, e.SetContext(ctx, sid, &Context{
		LastQuery:     "show expensive items",
		LastAnswer:    "2 rows matched",
		LastOperation: "filter_rows",
	}))

	c, err = e.Context(ctx, sid)
	require.NoError(t, err)
	assert.False(t, c.Empty())
	assert.Equal(t, "show expensive items", c.LastQuery)
}

func TestVersionStore_RejectsOverwrite(t *testing.T) {
	kv := newTestKV(t)
	vs := NewVersionStore(kv)
	ctx := context.Background()

	tc := salesCollection(t, 1)
	require.NoError(t, vs.Put(ctx, "s1", "v0", tc, time.Minute))
	err := vs.Put(ctx, "s1", "v0", tc, time.Minute)
	assert.ErrorIs(t, err, ErrVersionExists)
}

func TestGraphStore_EmptyGraphIsValidInitialState(t *testing.T) {
	gs := NewGraphStore(newTestKV(t))
	g, err := gs.Get(context.Background(), "brand-new")
	require.NoError(t, err)
	assert.Zero(t, g.Len())
	assert.Empty(t, g.Edges)
}

func TestGraphStore_AppendInvariants(t *testing.T) {
	kv := newTestKV(t)
	gs := NewGraphStore(kv)
	ctx := context.Background()

	require.NoError(t, gs.Append(ctx, "s1", node("v0", "", "upload"), time.Minute))

	err := gs.Append(ctx, "s1", node("v0", "", "replay"), time.Minute)
	assert.ErrorIs(t, err, ErrGraphInvariant)

	err = gs.Append(ctx, "s1", node("v2", "v9", "orphan"), time.Minute)
	assert.ErrorIs(t, err, ErrGraphInvariant)

	// Storage untouched by rejected appends.
	g, err := gs.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}

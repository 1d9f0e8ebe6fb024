// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, parent, label string) Node {
	return Node{ID: id, Parent: parent, Label: label, Operation: "op", Timestamp: time.Now().UTC()}
}

func buildChain(t *testing.T, ids ...string) *Graph {
	t.Helper()
	g := NewGraph()
	parent := ""
	for _, id := range ids {
		require.NoError(t, g.Append(node(id, parent, "step "+id)))
		parent = id
	}
	return g
}

func TestGraph_Append_RootAndChild(t *testing.T) {
	g := NewGraph()

	require.NoError(t, g.Append(node("v0", "", "upload")))
	assert.Equal(t, 1, g.Len())
	assert.Empty(t, g.Edges, "root version has no incoming edge")

	require.NoError(t, g.Append(node("v1", "v0", "filter Price > 100")))
	require.Len(t, g.Edges, 1)
	assert.Equal(t, Edge{From: "v0", To: "v1", Label: "filter Price > 100"}, g.Edges[0])
}

func TestGraph_Append_Invariants(t *testing.T) {
	g := buildChain(t, "v0", "v1")

	err := g.Append(node("v1", "v0", "replay"))
	assert.ErrorIs(t, err, ErrGraphInvariant, "duplicate node id must be rejected")

	err = g.Append(node("v2", "v99", "orphan"))
	assert.ErrorIs(t, err, ErrGraphInvariant, "missing parent must be rejected")

	err = g.Append(node("", "v0", "anonymous"))
	assert.ErrorIs(t, err, ErrGraphInvariant)

	// Failed appends must not leave partial state behind.
	assert.Equal(t, 2, g.Len())
	assert.Len(t, g.Edges, 1)
}

func TestGraph_Fork(t *testing.T) {
	g := buildChain(t, "v0", "v1")
	require.NoError(t, g.Append(node("v2", "v0", "fill missing")))
	require.NoError(t, g.Append(node("v3", "v0", "sort by date")))

	assert.Equal(t, []string{"v1", "v2", "v3"}, g.Children("v0"))
	assert.True(t, g.Acyclic())
}

func TestGraph_Acyclic_DetectsCycle(t *testing.T) {
	g := buildChain(t, "v0", "v1", "v2")
	assert.True(t, g.Acyclic())

	// Force a back edge; Append would never produce this.
	g.Edges = append(g.Edges, Edge{From: "v2", To: "v0"})
	assert.False(t, g.Acyclic())
}

func TestGraph_Ancestors(t *testing.T) {
	g := buildChain(t, "v0", "v1", "v2")
	require.NoError(t, g.Append(node("v3", "v1", "branched work")))

	anc := g.Ancestors("v3")
	assert.Equal(t, map[string]bool{"v3": true, "v1": true, "v0": true}, anc)

	assert.Empty(t, g.Ancestors("v99"))
}

func TestGraph_ReachesRoot(t *testing.T) {
	g := buildChain(t, "v0", "v1", "v2")
	assert.True(t, g.ReachesRoot("v2"))
	assert.False(t, g.ReachesRoot("v99"))

	g.Remove(map[string]bool{"v1": true})
	assert.False(t, g.ReachesRoot("v2"), "broken parent chain no longer reaches a root")
	assert.True(t, g.ReachesRoot("v0"))
}

func TestGraph_Remove_DropsIncidentEdges(t *testing.T) {
	g := buildChain(t, "v0", "v1", "v2")
	g.Remove(map[string]bool{"v1": true})

	assert.Equal(t, 2, g.Len())
	assert.Empty(t, g.Edges, "both edges touched v1")
}

func TestGraph_NextVersionID(t *testing.T) {
	g := NewGraph()
	assert.Equal(t, "v0", g.NextVersionID())

	g = buildChain(t, "v0", "v1", "v2")
	assert.Equal(t, "v3", g.NextVersionID())

	// Allocation stays monotonic after pruning older versions.
	g.Remove(map[string]bool{"v0": true, "v1": true})
	assert.Equal(t, "v3", g.NextVersionID())

	// Ids that don't parse are ignored rather than panicking.
	g.Nodes = append(g.Nodes, node("snapshot-a", "", "imported"))
	assert.Equal(t, "v3", g.NextVersionID())
}

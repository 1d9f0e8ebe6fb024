// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"strconv"
	"strings"
	"time"
)

// Node is one version in a session's history DAG.
type Node struct {
	// ID is the version id, unique within the session ("v0", "v1", …).
	ID string `json:"id"`

	// Label is the short human-readable operation label shown in the
	// history UI ("filter Price > 100").
	Label string `json:"label"`

	// Operation is the machine name of the tool that produced this
	// version ("filter_rows"), or "upload" for the root.
	Operation string `json:"operation"`

	// Query is the user's original natural-language request, when the
	// version came out of a chat turn. Optional.
	Query string `json:"query,omitempty"`

	// Timestamp is the version creation time.
	Timestamp time.Time `json:"timestamp"`

	// Parent is the version this one was derived from. Empty only for
	// the root version.
	Parent string `json:"parent,omitempty"`
}

// Edge is a parent→child transition labeled with the operation that
// produced the child.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Graph is a session's version DAG. It is a plain value: stores load
// it, the engine mutates it, stores write it back. All invariant
// checking lives on this type so it is testable without storage.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NewGraph returns an empty graph, the valid initial state for a
// session with no versions yet.
func NewGraph() *Graph {
	return &Graph{}
}

// Len returns the node count.
func (g *Graph) Len() int { return len(g.Nodes) }

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// HasNode reports whether id is present.
func (g *Graph) HasNode(id string) bool { return g.Node(id) != nil }

// Children returns the ids of all nodes with an edge from id, in edge
// insertion order. Two or more children mean id is a branch point.
func (g *Graph) Children(id string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// Ancestors returns the set of ids on the parent path from id back to
// a root, including id itself. The walk follows recorded parents; it
// stops if a parent is missing (pruned chain) or a cycle guard trips.
func (g *Graph) Ancestors(id string) map[string]bool {
	out := make(map[string]bool)
	for cur := g.Node(id); cur != nil; cur = g.Node(cur.Parent) {
		if out[cur.ID] {
			break // cycle guard; validated graphs never hit this
		}
		out[cur.ID] = true
		if cur.Parent == "" {
			break
		}
	}
	return out
}

// ReachesRoot reports whether following parents from id terminates at
// a node with no parent. False when id is absent or the chain is broken.
func (g *Graph) ReachesRoot(id string) bool {
	seen := make(map[string]bool)
	cur := g.Node(id)
	for cur != nil {
		if seen[cur.ID] {
			return false
		}
		seen[cur.ID] = true
		if cur.Parent == "" {
			return true
		}
		cur = g.Node(cur.Parent)
	}
	return false
}

// Acyclic reports whether the edge set contains no cycle.
func (g *Graph) Acyclic() bool {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.Nodes))
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return false
		case done:
			return true
		}
		state[id] = visiting
		for _, next := range adj[id] {
			if !visit(next) {
				return false
			}
		}
		state[id] = done
		return true
	}

	for _, n := range g.Nodes {
		if !visit(n.ID) {
			return false
		}
	}
	return true
}

// Append adds a node and, when the node has a parent, the parent→node
// edge. It enforces the append invariants: the id must be new and a
// non-empty parent must already exist.
func (g *Graph) Append(n Node) error {
	if n.ID == "" {
		return errGraphf("node with empty id")
	}
	if g.HasNode(n.ID) {
		return errGraphf("duplicate node id %s", n.ID)
	}
	if n.Parent != "" && !g.HasNode(n.Parent) {
		return errGraphf("parent %s of node %s not in graph", n.Parent, n.ID)
	}
	g.Nodes = append(g.Nodes, n)
	if n.Parent != "" {
		g.Edges = append(g.Edges, Edge{From: n.Parent, To: n.ID, Label: n.Label})
	}
	return nil
}

// Remove deletes the given node ids and every incident edge. Callers
// (pruning) are responsible for choosing removable nodes.
func (g *Graph) Remove(ids map[string]bool) {
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if !ids[n.ID] {
			nodes = append(nodes, n)
		}
	}
	g.Nodes = nodes

	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if !ids[e.From] && !ids[e.To] {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
}

// NextVersionID allocates the next sequential version id ("v0" for an
// empty graph). Allocation scans all existing ids, so it stays correct
// after pruning removed older versions. Sequential ids assume a single
// writer per session; the engine's per-session lock provides that.
func (g *Graph) NextVersionID() string {
	next := 0
	for _, n := range g.Nodes {
		if seq, ok := parseVersionID(n.ID); ok && seq+1 > next {
			next = seq + 1
		}
	}
	return "v" + strconv.Itoa(next)
}

// parseVersionID extracts the sequence number from a "v{n}" id.
func parseVersionID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "v")
	if !ok {
		return 0, false
	}
	seq, err := strconv.Atoi(rest)
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

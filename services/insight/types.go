// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insight

import (
	"time"

	"github.com/AleutianAI/insight/services/insight/agent"
	"github.com/AleutianAI/insight/services/insight/session"
	"github.com/AleutianAI/insight/services/insight/tools"
)

// CreateSessionResponse is returned after a successful upload.
type CreateSessionResponse struct {
	// SessionID identifies the new session.
	SessionID string `json:"session_id"`

	// Version is the root version id ("v0").
	Version string `json:"version"`

	// Tables lists the ingested table names.
	Tables []string `json:"tables"`

	// ExpiresIn is the session TTL in seconds.
	ExpiresIn int `json:"expires_in"`
}

// SessionSummary describes one session.
type SessionSummary struct {
	SessionID      string    `json:"session_id"`
	CurrentVersion string    `json:"current_version"`
	SourceName     string    `json:"source_name"`
	SourceType     string    `json:"source_type"`
	TableCount     int       `json:"table_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccess     time.Time `json:"last_access"`
}

// TablesResponse previews the session's current tables.
type TablesResponse struct {
	Version string         `json:"version"`
	Tables  []TablePreview `json:"tables"`
}

// TablePreview is a bounded view of one table.
type TablePreview struct {
	Name    string           `json:"name"`
	Rows    int              `json:"rows"`
	Columns []ColumnInfo     `json:"columns"`
	Preview []map[string]any `json:"preview"`
}

// ColumnInfo describes one column.
type ColumnInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Nulls int    `json:"nulls"`
}

// GraphResponse renders a session's version DAG.
type GraphResponse struct {
	CurrentVersion string         `json:"current_version"`
	Nodes          []session.Node `json:"nodes"`
	Edges          []session.Edge `json:"edges"`
}

// BranchRequest selects the version to branch to.
type BranchRequest struct {
	Version string `json:"version" binding:"required,version_id"`
}

// BranchResponse confirms the new current version.
type BranchResponse struct {
	CurrentVersion string `json:"current_version"`
}

// PruneRequest bounds how much history to keep.
type PruneRequest struct {
	KeepLastN int `json:"keep_last_n" binding:"required,min=1"`
}

// PruneResponse reports what pruning removed.
type PruneResponse struct {
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

// ToolRequest carries the parameters for one tool application.
type ToolRequest struct {
	Parameters map[string]any `json:"parameters"`

	// Query is the natural-language question behind this invocation,
	// recorded on the version node. Optional.
	Query string `json:"query"`
}

// ToolResponse reports the outcome of a tool application.
type ToolResponse struct {
	Result  *tools.Result `json:"result"`
	Version string        `json:"version,omitempty"`
}

// ChatRequest is one user message.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatResponse is one assistant turn.
type ChatResponse struct {
	Reply *agent.Reply `json:"reply"`
}

// DeleteResponse reports how many keys a deletion removed.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is the readiness check payload.
type ReadyResponse struct {
	Ready   bool `json:"ready"`
	StoreOK bool `json:"store_ok"`
}

// ErrorResponse is the error payload for every endpoint.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}

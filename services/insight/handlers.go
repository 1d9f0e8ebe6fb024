// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insight

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/insight/services/insight/ingest"
	"github.com/AleutianAI/insight/services/insight/session"
	"github.com/AleutianAI/insight/services/insight/store"
	"github.com/AleutianAI/insight/services/insight/tabular"
	"github.com/AleutianAI/insight/services/insight/tools"
)

// Handlers contains the HTTP handlers for the insight service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleCreateSession handles POST /v1/insight/sessions.
//
// Description:
//
//	Ingests an uploaded CSV or Excel file (multipart field "file") and
//	creates a session with root version v0.
//
// Response:
//
//	201 Created: CreateSessionResponse
//	400/413/415: upload rejected
func (h *Handlers) HandleCreateSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateSession")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		logger.Warn("Missing upload", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "multipart field \"file\" is required",
			Code:  "MISSING_FILE",
		})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open upload", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "could not read upload",
			Code:  "UPLOAD_FAILED",
		})
		return
	}
	defer f.Close()

	tc, err := ingest.Read(fileHeader.Filename, f, h.svc.limits)
	if err != nil {
		status, code := ingestStatus(err)
		logger.Warn("Ingestion rejected", "file", fileHeader.Filename, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	src := session.SourceInfo{Name: fileHeader.Filename, Type: sourceType(fileHeader.Filename)}
	sid, err := h.svc.engine.CreateSession(c.Request.Context(), src, tc)
	if err != nil {
		logger.Error("Session creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "could not create session",
			Code:  "SESSION_CREATE_FAILED",
		})
		return
	}

	logger.Info("Session created", "session_id", sid, "tables", tc.Len())
	c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: sid,
		Version:   session.RootVersionID,
		Tables:    tc.Names(),
		ExpiresIn: int(h.svc.engine.TTL().Seconds()),
	})
}

// HandleListSessions handles GET /v1/insight/sessions.
func (h *Handlers) HandleListSessions(c *gin.Context) {
	infos, err := h.svc.engine.ListSessions(c.Request.Context())
	if err != nil {
		h.respondError(c, "HandleListSessions", err)
		return
	}
	out := make([]SessionSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, summarize(info.ID, info.Metadata))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// HandleGetSession handles GET /v1/insight/sessions/:sid.
func (h *Handlers) HandleGetSession(c *gin.Context) {
	sid := c.Param("sid")
	m, err := h.svc.engine.Metadata(c.Request.Context(), sid)
	if err != nil {
		h.respondError(c, "HandleGetSession", err)
		return
	}
	h.touch(c, sid)
	c.JSON(http.StatusOK, summarize(sid, m))
}

// HandleDeleteSession handles DELETE /v1/insight/sessions/:sid.
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	n, err := h.svc.engine.DeleteSession(c.Request.Context(), c.Param("sid"))
	if err != nil {
		h.respondError(c, "HandleDeleteSession", err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Deleted: n})
}

// HandleTables handles GET /v1/insight/sessions/:sid/tables.
//
// Description:
//
//	Returns a bounded preview of the session's current tables and
//	slides the session deadline.
func (h *Handlers) HandleTables(c *gin.Context) {
	sid := c.Param("sid")
	m, err := h.svc.engine.Metadata(c.Request.Context(), sid)
	if err != nil {
		h.respondError(c, "HandleTables", err)
		return
	}
	tc, err := h.svc.engine.Tables(c.Request.Context(), sid)
	if err != nil {
		h.respondError(c, "HandleTables", err)
		return
	}
	h.touch(c, sid)
	c.JSON(http.StatusOK, TablesResponse{
		Version: m.CurrentVersion,
		Tables:  previews(tc),
	})
}

// HandleGraph handles GET /v1/insight/sessions/:sid/versions.
func (h *Handlers) HandleGraph(c *gin.Context) {
	sid := c.Param("sid")
	m, err := h.svc.engine.Metadata(c.Request.Context(), sid)
	if err != nil {
		h.respondError(c, "HandleGraph", err)
		return
	}
	g, err := h.svc.engine.Graph(c.Request.Context(), sid)
	if err != nil {
		h.respondError(c, "HandleGraph", err)
		return
	}
	h.touch(c, sid)
	c.JSON(http.StatusOK, GraphResponse{
		CurrentVersion: m.CurrentVersion,
		Nodes:          g.Nodes,
		Edges:          g.Edges,
	})
}

// HandleVersion handles GET /v1/insight/sessions/:sid/versions/:vid.
func (h *Handlers) HandleVersion(c *gin.Context) {
	sid := c.Param("sid")
	tc, err := h.svc.engine.Version(c.Request.Context(), sid, c.Param("vid"))
	if err != nil {
		h.respondError(c, "HandleVersion", err)
		return
	}
	h.touch(c, sid)
	c.JSON(http.StatusOK, gin.H{"tables": previews(tc)})
}

// HandleBranch handles POST /v1/insight/sessions/:sid/branch.
//
// Description:
//
//	Loads a historical version into the working state and moves the
//	current pointer to it. The next tool application forks from there.
func (h *Handlers) HandleBranch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleBranch")

	var req BranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	sid := c.Param("sid")
	if err := h.svc.engine.BranchTo(c.Request.Context(), sid, req.Version); err != nil {
		h.respondError(c, "HandleBranch", err)
		return
	}
	logger.Info("Branched", "session_id", sid, "version", req.Version)
	c.JSON(http.StatusOK, BranchResponse{CurrentVersion: req.Version})
}

// HandlePrune handles POST /v1/insight/sessions/:sid/prune.
func (h *Handlers) HandlePrune(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePrune")

	var req PruneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "keep_last_n must be a positive integer",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	sid := c.Param("sid")
	removed, err := h.svc.engine.Prune(c.Request.Context(), sid, req.KeepLastN)
	if err != nil {
		h.respondError(c, "HandlePrune", err)
		return
	}
	g, err := h.svc.engine.Graph(c.Request.Context(), sid)
	if err != nil {
		h.respondError(c, "HandlePrune", err)
		return
	}
	logger.Info("Pruned", "session_id", sid, "removed", removed)
	c.JSON(http.StatusOK, PruneResponse{Removed: removed, Remaining: g.Len()})
}

// HandleListTools handles GET /v1/insight/tools.
func (h *Handlers) HandleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.svc.registry.Definitions()})
}

// HandleTool handles POST /v1/insight/sessions/:sid/tools/:name.
//
// Description:
//
//	Applies a tool to the session's current tables. A mutating tool
//	snapshots its output as a new version and advances the pointer.
func (h *Handlers) HandleTool(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleTool")

	var req ToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}

	sid := c.Param("sid")
	name := c.Param("name")
	tool, err := h.svc.registry.Get(name)
	if err != nil {
		h.respondError(c, "HandleTool", err)
		return
	}
	tc, err := h.svc.engine.Tables(c.Request.Context(), sid)
	if err != nil {
		h.respondError(c, "HandleTool", err)
		return
	}

	result, err := tool.Apply(c.Request.Context(), tc, req.Parameters)
	if err != nil {
		h.respondError(c, "HandleTool", err)
		return
	}

	resp := ToolResponse{Result: result}
	if tool.Definition().Mutating && result.Tables != nil {
		vid, err := h.svc.engine.CreateVersion(c.Request.Context(), sid,
			result.Label, result.Tool, req.Query, result.Tables)
		if err != nil {
			h.respondError(c, "HandleTool", err)
			return
		}
		resp.Version = vid
	} else {
		h.touch(c, sid)
	}

	logger.Info("Tool applied", "session_id", sid, "tool", name, "version", resp.Version)
	c.JSON(http.StatusOK, resp)
}

// HandleChat handles POST /v1/insight/sessions/:sid/chat.
func (h *Handlers) HandleChat(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleChat")

	if h.svc.bot == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "chat is not configured on this deployment",
			Code:  "CHAT_DISABLED",
		})
		return
	}
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "message is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	sid := c.Param("sid")
	reply, err := h.svc.bot.Chat(c.Request.Context(), sid, req.Message)
	if err != nil {
		h.respondError(c, "HandleChat", err)
		return
	}
	h.touch(c, sid)
	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// HandleHealth handles GET /v1/insight/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/insight/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	ok := h.svc.Ready(c.Request.Context())
	resp := ReadyResponse{Ready: ok, StoreOK: ok}
	if !ok {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// touch slides the session deadline after a successful access. Failure
// is logged, never surfaced: the response is already correct.
func (h *Handlers) touch(c *gin.Context, sid string) {
	if err := h.svc.engine.Touch(c.Request.Context(), sid); err != nil {
		slog.Debug("TTL touch failed", "session_id", sid, "error", err)
	}
}

// respondError maps service errors onto HTTP statuses.
func (h *Handlers) respondError(c *gin.Context, handler string, err error) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", handler)

	status := http.StatusInternalServerError
	code := "INTERNAL"
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		status, code = http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, session.ErrVersionNotFound):
		status, code = http.StatusNotFound, "VERSION_NOT_FOUND"
	case errors.Is(err, tools.ErrUnknownTool):
		status, code = http.StatusNotFound, "UNKNOWN_TOOL"
	case errors.Is(err, tools.ErrBadParams):
		status, code = http.StatusBadRequest, "INVALID_PARAMETERS"
	case errors.Is(err, store.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Warn("Request rejected", "error", err, "status", status)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func ingestStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE"
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"
	default:
		return http.StatusBadRequest, "INGEST_FAILED"
	}
}

func sourceType(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return "excel"
	}
	return "csv"
}

func summarize(sid string, m *session.Metadata) SessionSummary {
	return SessionSummary{
		SessionID:      sid,
		CurrentVersion: m.CurrentVersion,
		SourceName:     m.SourceName,
		SourceType:     m.SourceType,
		TableCount:     m.TableCount,
		CreatedAt:      m.CreatedAt,
		LastAccess:     m.LastAccess,
	}
}

func previews(tc *tabular.Collection) []TablePreview {
	out := make([]TablePreview, 0, tc.Len())
	for _, name := range tc.Names() {
		t := tc.Table(name)
		cols := make([]ColumnInfo, 0, len(t.Columns))
		for _, col := range t.Columns {
			cols = append(cols, ColumnInfo{
				Name:  col.Name,
				Type:  string(col.Type),
				Nulls: col.NullCount(),
			})
		}
		head := t.Head(PreviewRows)
		out = append(out, TablePreview{
			Name:    name,
			Rows:    t.NumRows(),
			Columns: cols,
			Preview: head.Rows(0, head.NumRows()),
		})
	}
	return out
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

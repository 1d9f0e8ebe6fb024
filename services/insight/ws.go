// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insight

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/insight/services/insight/agent"
)

// WSRequest is one inbound chat turn on the websocket.
type WSRequest struct {
	Message string `json:"message"`
}

// WSResponse is one outbound chat reply on the websocket.
type WSResponse struct {
	Reply *agent.Reply `json:"reply,omitempty"`
	Error string       `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleChatWS handles GET /v1/insight/sessions/:sid/chat/ws.
//
// Description:
//
//	Upgrades the connection and runs a chat loop against the session.
//	Each inbound message is one chat turn; each reply carries the
//	answer, intent, and the new version id when a turn mutated the
//	tables. The session must already exist.
func (h *Handlers) HandleChatWS(c *gin.Context) {
	sid := c.Param("sid")

	if h.svc.bot == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "chat is not configured on this deployment",
			Code:  "CHAT_DISABLED",
		})
		return
	}
	if _, err := h.svc.engine.Metadata(c.Request.Context(), sid); err != nil {
		h.respondError(c, "HandleChatWS", err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()
	slog.Info("Websocket client connected", "session_id", sid)

	if err := sendJSON(ws, map[string]any{
		"action":    "connected",
		"sessionId": sid,
	}); err != nil {
		return
	}

	for {
		var req WSRequest
		if err := ws.ReadJSON(&req); err != nil {
			slog.Info("Websocket client disconnected", "session_id", sid, "error", err.Error())
			break
		}
		if strings.TrimSpace(req.Message) == "" {
			if err := sendJSON(ws, WSResponse{Error: "message is required"}); err != nil {
				return
			}
			continue
		}

		var resp WSResponse
		reply, err := h.svc.bot.Chat(c.Request.Context(), sid, req.Message)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Reply = reply
			h.touch(c, sid)
		}
		if err := sendJSON(ws, resp); err != nil {
			return
		}
	}
}

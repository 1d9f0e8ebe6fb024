// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insight

import "github.com/gin-gonic/gin"

// RegisterRoutes registers all insight service routes on the given
// router group.
//
// Description:
//
//	Sets up the complete REST and websocket surface:
//
//	Sessions:
//	  POST   /insight/sessions                     - upload a file, create a session
//	  GET    /insight/sessions                     - list live sessions
//	  GET    /insight/sessions/:sid                - session metadata
//	  DELETE /insight/sessions/:sid                - delete a session and all its keys
//
//	State:
//	  GET    /insight/sessions/:sid/tables         - preview current tables
//	  GET    /insight/sessions/:sid/versions       - version graph
//	  GET    /insight/sessions/:sid/versions/:vid  - preview a historical version
//	  POST   /insight/sessions/:sid/branch         - move the pointer to a version
//	  POST   /insight/sessions/:sid/prune          - drop old non-ancestor versions
//
//	Tools and chat:
//	  GET    /insight/tools                        - tool catalog
//	  POST   /insight/sessions/:sid/tools/:name    - apply a tool directly
//	  POST   /insight/sessions/:sid/chat           - one chat turn
//	  GET    /insight/sessions/:sid/chat/ws        - websocket chat
//
//	Operations:
//	  GET    /insight/health                       - liveness
//	  GET    /insight/ready                        - readiness (store reachable)
//
// Inputs:
//   - rg: The gin router group to register routes on (e.g., /v1)
//   - h: The handlers containing the service logic
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	insight := rg.Group("/insight")
	{
		insight.GET("/health", h.HandleHealth)
		insight.GET("/ready", h.HandleReady)
		insight.GET("/tools", h.HandleListTools)

		sessions := insight.Group("/sessions")
		{
			sessions.POST("", h.HandleCreateSession)
			sessions.GET("", h.HandleListSessions)
			sessions.GET("/:sid", h.HandleGetSession)
			sessions.DELETE("/:sid", h.HandleDeleteSession)

			sessions.GET("/:sid/tables", h.HandleTables)
			sessions.GET("/:sid/versions", h.HandleGraph)
			sessions.GET("/:sid/versions/:vid", h.HandleVersion)
			sessions.POST("/:sid/branch", h.HandleBranch)
			sessions.POST("/:sid/prune", h.HandlePrune)

			sessions.POST("/:sid/tools/:name", h.HandleTool)
			sessions.POST("/:sid/chat", h.HandleChat)
			sessions.GET("/:sid/chat/ws", h.HandleChatWS)
		}
	}
}

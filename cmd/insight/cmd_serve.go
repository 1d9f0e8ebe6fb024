// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/insight/services/insight"
	"github.com/AleutianAI/insight/services/insight/ingest"
	"github.com/AleutianAI/insight/services/insight/session"
	"github.com/AleutianAI/insight/services/insight/telemetry"
	"github.com/AleutianAI/insight/services/llm"
)

func runServe(cmd *cobra.Command, args []string) error {
	if debugFlag {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	kv, err := openStore(cmd)
	if err != nil {
		return fmt.Errorf("open %s store: %w", config.Store.Backend, err)
	}
	defer kv.Close()

	svc := insight.NewService(insight.ServiceConfig{
		KV:  kv,
		LLM: buildLLM(),
		Limits: ingest.Limits{
			MaxBytes:  config.Upload.MaxBytes,
			MaxTables: config.Upload.MaxTables,
			MaxRows:   config.Upload.MaxRows,
		},
		EngineOptions: []session.Option{
			session.WithTTL(sessionTTL()),
			session.WithMetrics(telemetry.EngineMetrics{}),
		},
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.GinMiddleware())
	if debugFlag {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", telemetry.Handler())

	v1 := router.Group("/v1")
	insight.RegisterRoutes(v1, insight.NewHandlers(svc))

	port := config.Server.Port
	if portFlag != 0 {
		port = portFlag
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down insight server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Shutdown error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("Starting insight server",
		slog.String("address", srv.Addr),
		slog.String("store", config.Store.Backend),
		slog.Duration("session_ttl", sessionTTL()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// buildLLM constructs the chat backend, or nil when chat is disabled
// or no backend is reachable. The server is fully usable without it;
// tool endpoints do not need an LLM.
func buildLLM() llm.LLMClient {
	if !config.LLM.Enabled {
		return nil
	}
	client, err := llm.NewFromEnv()
	if err != nil {
		slog.Warn("LLM backend not available, chat endpoints disabled",
			slog.String("error", err.Error()))
		slog.Info("Set OLLAMA_BASE_URL and OLLAMA_MODEL (or LLM_BACKEND=openai) to enable chat")
		return nil
	}
	if config.LLM.RPS > 0 {
		return llm.NewRateLimited(client, config.LLM.RPS, config.LLM.Burst)
	}
	return client
}

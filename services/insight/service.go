// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package insight exposes the versioned data-session service over
// HTTP: upload, tool application, history browsing, branching,
// pruning, and the conversational assistant.
package insight

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/insight/services/insight/agent"
	"github.com/AleutianAI/insight/services/insight/ingest"
	"github.com/AleutianAI/insight/services/insight/session"
	"github.com/AleutianAI/insight/services/insight/store"
	"github.com/AleutianAI/insight/services/insight/tools"
	"github.com/AleutianAI/insight/services/llm"
)

// ServiceVersion is the insight service version.
const ServiceVersion = "0.1.0"

// PreviewRows bounds table previews in API responses.
const PreviewRows = 10

// Service owns the engine, the tool registry, and the bot.
type Service struct {
	engine   *session.Engine
	registry *tools.Registry
	bot      *agent.Bot
	kv       store.KV
	limits   ingest.Limits
	logger   *slog.Logger
}

// ServiceConfig assembles a Service.
type ServiceConfig struct {
	// KV is the session store backend. Required.
	KV store.KV

	// LLM powers the conversational layer. Nil disables chat.
	LLM llm.LLMClient

	// Limits bound uploads; zero values use ingest defaults.
	Limits ingest.Limits

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// EngineOptions are passed through to the session engine.
	EngineOptions []session.Option
}

// NewService wires the service together.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Limits == (ingest.Limits{}) {
		cfg.Limits = ingest.DefaultLimits()
	}
	engine := session.NewEngine(cfg.KV, cfg.EngineOptions...)
	registry := tools.DefaultRegistry()

	svc := &Service{
		engine:   engine,
		registry: registry,
		kv:       cfg.KV,
		limits:   cfg.Limits,
		logger:   cfg.Logger,
	}
	if cfg.LLM != nil {
		svc.bot = agent.NewBot(cfg.LLM, engine, registry, cfg.Logger)
	}
	return svc
}

// Engine exposes the session engine, used by the CLI commands.
func (s *Service) Engine() *session.Engine { return s.engine }

// Ready reports whether the backing store answers a ping.
func (s *Service) Ready(ctx context.Context) bool {
	return s.kv.Ping(ctx) == nil
}

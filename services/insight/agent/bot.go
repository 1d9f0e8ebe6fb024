// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/AleutianAI/insight/services/insight/session"
	"github.com/AleutianAI/insight/services/insight/tabular"
	"github.com/AleutianAI/insight/services/insight/tools"
	"github.com/AleutianAI/insight/services/llm"
)

const personaPrompt = `You are Insight, a concise data analysis assistant.
Answer briefly and stay on the topic of the user's uploaded data.`

// ChartSpec describes a chart for the UI to render. The service never
// renders charts itself.
type ChartSpec struct {
	Type  string `json:"type"` // bar, line, pie, scatter
	X     string `json:"x"`
	Y     string `json:"y"`
	Table string `json:"table,omitempty"`
	Title string `json:"title,omitempty"`
}

// Reply is one assistant turn.
type Reply struct {
	Answer    string           `json:"answer"`
	Intent    string           `json:"intent"`
	VersionID string           `json:"version_id,omitempty"`
	Chart     *ChartSpec       `json:"chart,omitempty"`
	Preview   []map[string]any `json:"preview,omitempty"`
}

// Bot wires the classifier, resolver, planner, and tools over the
// session engine.
type Bot struct {
	client     llm.LLMClient
	engine     *session.Engine
	registry   *tools.Registry
	classifier Classifier
	planner    *Planner
	logger     *slog.Logger
}

// NewBot assembles the conversational layer. A nil classifier defaults
// to the LLM classifier with regex fallback.
func NewBot(client llm.LLMClient, engine *session.Engine, registry *tools.Registry,
	logger *slog.Logger) *Bot {

	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		client:     client,
		engine:     engine,
		registry:   registry,
		classifier: NewLLMClassifier(client, logger),
		planner:    NewPlanner(client, registry),
		logger:     logger,
	}
}

// Chat handles one user turn against a session.
//
// Inputs:
//
//	ctx - Request context
//	sid - Session id; the session's TTL slides on success
//	message - The user's message
//
// Outputs:
//
//	*Reply - Answer, plus a version id when a tool changed the data
//	error - session.ErrSessionNotFound when the session expired
func (b *Bot) Chat(ctx context.Context, sid, message string) (*Reply, error) {
	tc, err := b.engine.Tables(ctx, sid)
	if err != nil {
		return nil, err
	}
	sctx, err := b.engine.Context(ctx, sid)
	if err != nil {
		return nil, err
	}

	schema := describeSchema(tc)
	c, err := b.classifier.Classify(ctx, message, schema, contextString(sctx))
	if err != nil {
		return nil, fmt.Errorf("classify message: %w", err)
	}
	b.logger.Info("message classified",
		"session_id", sid,
		"intent", c.Intent,
		"follow_up", c.IsFollowUp,
		"fallback", c.FallbackUsed)

	var reply *Reply
	switch c.Intent {
	case IntentSmallTalk:
		reply, err = b.smallTalk(ctx, message)
	case IntentSummarizeLast:
		reply, err = b.summarizeLast(ctx, sctx)
	case IntentVisualization:
		reply, err = b.chartSpec(ctx, message, schema, tc)
	default:
		reply, err = b.dataQuery(ctx, sid, message, schema, tc, sctx, c)
	}
	if err != nil {
		return nil, err
	}
	reply.Intent = c.Intent

	newCtx := &session.Context{
		LastQuery:     message,
		LastAnswer:    reply.Answer,
		LastOperation: reply.Intent,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := b.engine.SetContext(ctx, sid, newCtx); err != nil {
		b.logger.Warn("failed to persist conversation context", "session_id", sid, "error", err)
	}
	return reply, nil
}

func (b *Bot) smallTalk(ctx context.Context, message string) (*Reply, error) {
	temp := float32(0.7)
	maxTokens := 256
	out, err := b.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: personaPrompt},
		{Role: "user", Content: message},
	}, llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		return nil, fmt.Errorf("small talk: %w", err)
	}
	return &Reply{Answer: strings.TrimSpace(out)}, nil
}

func (b *Bot) summarizeLast(ctx context.Context, sctx *session.Context) (*Reply, error) {
	if sctx.Empty() {
		return &Reply{Answer: "There is no previous result to summarize yet. Ask me something about your data first."}, nil
	}
	temp := float32(0.2)
	maxTokens := 512
	out, err := b.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: personaPrompt},
		{Role: "user", Content: fmt.Sprintf(
			"Summarize this previous exchange in one short paragraph.\nQuestion: %s\nAnswer: %s",
			sctx.LastQuery, sctx.LastAnswer)},
	}, llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		return nil, fmt.Errorf("summarize last: %w", err)
	}
	return &Reply{Answer: strings.TrimSpace(out)}, nil
}

const chartPrompt = `You design a chart specification for a data assistant.

Session schema:
%s

Pick the chart type and axes that best answer the user's request. Use
exact column names from the schema.

Respond with ONLY valid JSON (no markdown, no preamble):
{"type":"bar|line|pie|scatter","x":"column","y":"column","table":"name","title":"short title"}`

// chartSpec produces a chart specification only; rendering belongs to
// the UI.
func (b *Bot) chartSpec(ctx context.Context, message, schema string, tc *tabular.Collection) (*Reply, error) {
	temp := float32(0.0)
	maxTokens := 256
	out, err := b.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: fmt.Sprintf(chartPrompt, schema)},
		{Role: "user", Content: message},
	}, llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		return nil, fmt.Errorf("chart spec: %w", err)
	}
	raw, err := extractJSON(out)
	if err != nil {
		return &Reply{Answer: "I could not design a chart for that request. Try naming the columns to plot."}, nil
	}
	var spec ChartSpec
	if err := json.Unmarshal([]byte(raw), &spec); err != nil {
		return &Reply{Answer: "I could not design a chart for that request. Try naming the columns to plot."}, nil
	}
	if spec.Table == "" && tc.Len() == 1 {
		spec.Table = tc.Names()[0]
	}
	answer := fmt.Sprintf("Here is a %s chart of %s by %s.", spec.Type, spec.Y, spec.X)
	return &Reply{Answer: answer, Chart: &spec}, nil
}

func (b *Bot) dataQuery(ctx context.Context, sid, message, schema string,
	tc *tabular.Collection, sctx *session.Context, c *Classification) (*Reply, error) {

	query := message
	if c.IsFollowUp {
		query = resolveFollowUp(ctx, b.client, b.logger, message, sctx)
		if query != message {
			b.logger.Info("follow-up resolved", "session_id", sid, "resolved", query)
		}
	}

	plan, err := b.planner.Plan(ctx, query, schema)
	if errors.Is(err, ErrNoPlan) {
		return &Reply{Answer: "I could not map that question to a data operation. Try asking about filtering, sorting, or aggregating specific columns."}, nil
	}
	if err != nil {
		return nil, err
	}

	tool, err := b.registry.Get(plan.Tool)
	if err != nil {
		return nil, err
	}
	result, err := tool.Apply(ctx, tc, plan.Parameters)
	if err != nil {
		if errors.Is(err, tools.ErrBadParams) {
			return &Reply{Answer: fmt.Sprintf("I could not run %s: %v.", plan.Tool, err)}, nil
		}
		return nil, fmt.Errorf("apply %s: %w", plan.Tool, err)
	}

	reply := &Reply{Answer: formatResult(result)}
	if tool.Definition().Mutating && result.Tables != nil {
		vid, err := b.engine.CreateVersion(ctx, sid, result.Label, result.Tool, query, result.Tables)
		if err != nil {
			return nil, fmt.Errorf("snapshot result: %w", err)
		}
		reply.VersionID = vid
		if t := result.Tables.Table(result.Table); t != nil {
			head := t.Head(5)
			reply.Preview = head.Rows(0, head.NumRows())
		}
	} else {
		reply.Preview = result.Preview
	}
	return reply, nil
}

// formatResult renders a deterministic one-line answer for a tool run.
func formatResult(r *tools.Result) string {
	switch {
	case r.Tables == nil:
		return fmt.Sprintf("%s.", r.Label)
	case r.RowsAfter == r.RowsBefore:
		return fmt.Sprintf("%s. %s still has %d rows.", r.Label, r.Table, r.RowsAfter)
	default:
		return fmt.Sprintf("%s. %s went from %d to %d rows.", r.Label, r.Table, r.RowsBefore, r.RowsAfter)
	}
}

// describeSchema renders the collection for prompts: table names with
// column name:type pairs.
func describeSchema(tc *tabular.Collection) string {
	var sb strings.Builder
	for _, name := range tc.Names() {
		t := tc.Table(name)
		sb.WriteString(name)
		sb.WriteString(" (")
		sb.WriteString(fmt.Sprintf("%d rows", t.NumRows()))
		sb.WriteString("): ")
		for i, col := range t.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(col.Name)
			sb.WriteByte(':')
			sb.WriteString(string(col.Type))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func contextString(sctx *session.Context) string {
	if sctx == nil || sctx.Empty() {
		return ""
	}
	return fmt.Sprintf("last question: %s\nlast answer: %s\nlast operation: %s",
		sctx.LastQuery, sctx.LastAnswer, sctx.LastOperation)
}

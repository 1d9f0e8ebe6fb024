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
	"strings"

	"github.com/goccy/go-json"

	"github.com/AleutianAI/insight/services/insight/tools"
	"github.com/AleutianAI/insight/services/llm"
)

// ErrNoPlan is returned when the planner cannot map a question to a
// tool invocation.
var ErrNoPlan = errors.New("could not plan a tool invocation")

// Plan is one tool invocation chosen for a data query.
type Plan struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Reasoning  string         `json:"reasoning,omitempty"`
}

const plannerPrompt = `You translate data analysis questions into ONE tool invocation.

Available tools:
%s

Session schema:
%s

Rules:
- Pick exactly one tool and fill its parameters from the question.
- Use exact column and table names from the schema.
- If no tool answers the question, use {"tool":"none"}.

Respond with ONLY valid JSON (no markdown, no preamble):
{"tool":"name","parameters":{},"reasoning":"brief"}`

// Planner maps resolved data queries onto registry tools via the LLM.
type Planner struct {
	client   llm.LLMClient
	registry *tools.Registry
}

func NewPlanner(client llm.LLMClient, registry *tools.Registry) *Planner {
	return &Planner{client: client, registry: registry}
}

// Plan asks the LLM for a tool invocation and validates it against the
// registry. Unknown tools and a "none" answer fail with ErrNoPlan.
func (p *Planner) Plan(ctx context.Context, query, schema string) (*Plan, error) {
	temp := float32(0.0)
	maxTokens := 512
	out, err := p.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: fmt.Sprintf(plannerPrompt, toolCatalog(p.registry), schema)},
		{Role: "user", Content: query},
	}, llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		return nil, fmt.Errorf("plan query: %w", err)
	}

	raw, err := extractJSON(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPlan, err)
	}
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPlan, err)
	}
	if plan.Tool == "" || plan.Tool == "none" {
		return nil, ErrNoPlan
	}
	if _, err := p.registry.Get(plan.Tool); err != nil {
		return nil, fmt.Errorf("%w: planner chose %q", ErrNoPlan, plan.Tool)
	}
	if plan.Parameters == nil {
		plan.Parameters = map[string]any{}
	}
	return &plan, nil
}

// toolCatalog renders the registry for the planner prompt: one line
// per tool with its parameters.
func toolCatalog(registry *tools.Registry) string {
	var sb strings.Builder
	for _, def := range registry.Definitions() {
		sb.WriteString("- ")
		sb.WriteString(def.Name)
		sb.WriteString(": ")
		sb.WriteString(def.Description)
		params, _ := json.Marshal(def.Parameters)
		sb.WriteString(" parameters=")
		sb.Write(params)
		sb.WriteByte('\n')
	}
	return sb.String()
}

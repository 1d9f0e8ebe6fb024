// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent implements InsightBot, the conversational layer over a
// session: intent classification, follow-up resolution, tool planning,
// and response formatting.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/AleutianAI/insight/services/llm"
)

// Query intents.
const (
	IntentDataQuery     = "data_query"
	IntentVisualization = "visualization_request"
	IntentSmallTalk     = "small_talk"
	IntentSummarizeLast = "summarize_last"
)

// Classification contains the analysis of one user message.
type Classification struct {
	// Intent is one of the Intent* constants.
	Intent string `json:"intent"`

	// IsFollowUp marks short continuations of the previous turn
	// ("what about the maximum?", "just for Q1").
	IsFollowUp bool `json:"is_follow_up"`

	// Columns lists column names the message mentions.
	Columns []string `json:"mentioned_columns,omitempty"`

	// Confidence is the model's confidence (0.0-1.0). Regex results
	// carry a fixed low confidence.
	Confidence float64 `json:"confidence,omitempty"`

	// FallbackUsed indicates the regex classifier produced this.
	FallbackUsed bool `json:"-"`
}

// Classifier determines the intent of a user message.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, message, schema, convContext string) (*Classification, error)
}

var (
	vizPattern = regexp.MustCompile(`(?i)\b(plot|chart|graph|visuali[sz]e|draw|show me a (bar|line|pie|scatter))\b`)

	smallTalkPattern = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|thanks|thank you|good (morning|afternoon|evening)|how are you|bye|goodbye)\b`)

	summarizePattern = regexp.MustCompile(`(?i)\b(summari[sz]e (that|this|the (table|result|last))|what does (that|it) (show|mean))\b`)

	followUpPattern = regexp.MustCompile(`(?i)^\s*(what about|how about|and (for|the)|same but|now (show|by)|just for|only)\b`)
)

// RegexClassifier classifies with word-boundary patterns. Used as the
// fallback when no LLM is configured or the LLM call fails.
type RegexClassifier struct{}

// Classify implements the Classifier interface. Everything that is not
// recognizably small talk, a summary request, or a visualization
// request counts as a data query.
func (RegexClassifier) Classify(_ context.Context, message, _, _ string) (*Classification, error) {
	c := &Classification{
		Intent:       IntentDataQuery,
		IsFollowUp:   followUpPattern.MatchString(message),
		Confidence:   0.3,
		FallbackUsed: true,
	}
	switch {
	case summarizePattern.MatchString(message):
		c.Intent = IntentSummarizeLast
	case vizPattern.MatchString(message):
		c.Intent = IntentVisualization
	case smallTalkPattern.MatchString(message):
		c.Intent = IntentSmallTalk
	}
	return c, nil
}

const classifyPrompt = `You are a query intent classifier for a data analysis assistant.

Classify the user's message into one of:
- "data_query": questions about the data, statistics, filtering, patterns
- "visualization_request": asks to show, plot, graph, or visualize data
- "small_talk": greetings, thanks, casual conversation
- "summarize_last": refers to the previous result ("summarize that", "what does that show?")

Set is_follow_up to true if the message is a short continuation of the
previous turn ("what about the maximum?", "just for Q1", "by region").

Session schema:
%s

Conversation context from the previous turn (if any):
%s

Respond with ONLY valid JSON (no markdown, no preamble):
{"intent":"...","is_follow_up":bool,"mentioned_columns":[],"confidence":0.0}`

// LLMClassifier classifies with the LLM and falls back to regex when
// the call fails or the answer cannot be parsed.
type LLMClassifier struct {
	client   llm.LLMClient
	fallback RegexClassifier
	logger   *slog.Logger
}

func NewLLMClassifier(client llm.LLMClient, logger *slog.Logger) *LLMClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClassifier{client: client, logger: logger}
}

// Classify implements the Classifier interface.
func (c *LLMClassifier) Classify(ctx context.Context, message, schema, convContext string) (*Classification, error) {
	if convContext == "" {
		convContext = "None"
	}
	temp := float32(0.0)
	maxTokens := 256
	out, err := c.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: fmt.Sprintf(classifyPrompt, schema, convContext)},
		{Role: "user", Content: message},
	}, llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		c.logger.Warn("intent classification failed, using regex fallback", "error", err)
		return c.fallback.Classify(ctx, message, schema, convContext)
	}

	raw, err := extractJSON(out)
	if err != nil {
		c.logger.Warn("classifier returned no JSON, using regex fallback")
		return c.fallback.Classify(ctx, message, schema, convContext)
	}
	var result Classification
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.Warn("classifier JSON unparseable, using regex fallback", "error", err)
		return c.fallback.Classify(ctx, message, schema, convContext)
	}
	if !validIntent(result.Intent) {
		c.logger.Warn("classifier produced unknown intent, using regex fallback",
			"intent", result.Intent)
		return c.fallback.Classify(ctx, message, schema, convContext)
	}
	return &result, nil
}

func validIntent(intent string) bool {
	switch strings.TrimSpace(intent) {
	case IntentDataQuery, IntentVisualization, IntentSmallTalk, IntentSummarizeLast:
		return true
	}
	return false
}

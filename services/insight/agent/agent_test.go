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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/insight/services/insight/session"
	badgerstore "github.com/AleutianAI/insight/services/insight/store/badger"
	"github.com/AleutianAI/insight/services/insight/tabular"
	"github.com/AleutianAI/insight/services/insight/tools"
	"github.com/AleutianAI/insight/services/llm"
)

// scriptedLLM returns canned responses keyed by a substring of the
// system prompt, so each bot stage can be scripted independently.
type scriptedLLM struct {
	responses map[string]string // system-prompt substring -> response
	err       error
	calls     []string
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.GenerationParams{})
}

func (s *scriptedLLM) Chat(_ context.Context, messages []llm.Message, _ llm.GenerationParams) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	system := ""
	if len(messages) > 0 && messages[0].Role == "system" {
		system = messages[0].Content
	}
	for key, resp := range s.responses {
		if strings.Contains(system, key) {
			s.calls = append(s.calls, key)
			return resp, nil
		}
	}
	return "", errors.New("no scripted response for prompt")
}

func newBotFixture(t *testing.T, client llm.LLMClient) (*Bot, *session.Engine, string) {
	t.Helper()
	kv, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	engine := session.NewEngine(kv)
	tc := tabular.NewCollection()
	tc.Put("sales", &tabular.Table{Columns: []tabular.Column{
		{Name: "region", Type: tabular.TypeString, Strings: []string{"east", "west", "east"}},
		{Name: "price", Type: tabular.TypeFloat, Floats: []float64{10, 150, 220}},
	}})
	sid, err := engine.CreateSession(context.Background(),
		session.SourceInfo{Name: "sales.csv", Type: "csv"}, tc)
	require.NoError(t, err)

	return NewBot(client, engine, tools.DefaultRegistry(), nil), engine, sid
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"clean", `{"a":1}`, `{"a":1}`, false},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"preamble and postamble", "Sure!\n{\"a\":1}\nHope this helps.", `{"a":1}`, false},
		{"nested objects", `{"a":{"b":2}}`, `{"a":{"b":2}}`, false},
		{"braces inside strings", `{"a":"{not nested}"}`, `{"a":"{not nested}"}`, false},
		{"no json", "I don't know", "", true},
		{"unbalanced", `{"a":1`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, errNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegexClassifier(t *testing.T) {
	tests := []struct {
		message    string
		intent     string
		isFollowUp bool
	}{
		{"hello there", IntentSmallTalk, false},
		{"thanks!", IntentSmallTalk, false},
		{"plot revenue by region", IntentVisualization, false},
		{"show me a bar chart of sales", IntentVisualization, false},
		{"summarize that", IntentSummarizeLast, false},
		{"what does that show?", IntentSummarizeLast, false},
		{"average price by region", IntentDataQuery, false},
		{"what about the maximum?", IntentDataQuery, true},
		{"just for Q1", IntentDataQuery, true},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			c, err := RegexClassifier{}.Classify(context.Background(), tt.message, "", "")
			require.NoError(t, err)
			assert.Equal(t, tt.intent, c.Intent)
			assert.Equal(t, tt.isFollowUp, c.IsFollowUp)
			assert.True(t, c.FallbackUsed)
		})
	}
}

func TestLLMClassifier_FallsBackOnError(t *testing.T) {
	client := &scriptedLLM{err: errors.New("backend down")}
	c, err := NewLLMClassifier(client, nil).Classify(context.Background(), "plot sales", "", "")
	require.NoError(t, err)
	assert.Equal(t, IntentVisualization, c.Intent)
	assert.True(t, c.FallbackUsed)
}

func TestLLMClassifier_ParsesResponse(t *testing.T) {
	client := &scriptedLLM{responses: map[string]string{
		"intent classifier": `{"intent":"data_query","is_follow_up":true,"confidence":0.95}`,
	}}
	c, err := NewLLMClassifier(client, nil).Classify(context.Background(), "what about west?", "schema", "ctx")
	require.NoError(t, err)
	assert.Equal(t, IntentDataQuery, c.Intent)
	assert.True(t, c.IsFollowUp)
	assert.False(t, c.FallbackUsed)
}

func TestPlanner(t *testing.T) {
	registry := tools.DefaultRegistry()

	t.Run("valid plan", func(t *testing.T) {
		client := &scriptedLLM{responses: map[string]string{
			"tool invocation": `{"tool":"filter_rows","parameters":{"column":"price","op":">","value":"100"}}`,
		}}
		plan, err := NewPlanner(client, registry).Plan(context.Background(), "expensive items", "schema")
		require.NoError(t, err)
		assert.Equal(t, "filter_rows", plan.Tool)
		assert.Equal(t, ">", plan.Parameters["op"])
	})

	t.Run("none answer", func(t *testing.T) {
		client := &scriptedLLM{responses: map[string]string{
			"tool invocation": `{"tool":"none"}`,
		}}
		_, err := NewPlanner(client, registry).Plan(context.Background(), "weather?", "schema")
		assert.ErrorIs(t, err, ErrNoPlan)
	})

	t.Run("hallucinated tool", func(t *testing.T) {
		client := &scriptedLLM{responses: map[string]string{
			"tool invocation": `{"tool":"train_model","parameters":{}}`,
		}}
		_, err := NewPlanner(client, registry).Plan(context.Background(), "train a model", "schema")
		assert.ErrorIs(t, err, ErrNoPlan)
	})
}

func TestBotChat_DataQueryCreatesVersion(t *testing.T) {
	client := &scriptedLLM{responses: map[string]string{
		"intent classifier": `{"intent":"data_query","is_follow_up":false}`,
		"tool invocation":   `{"tool":"filter_rows","parameters":{"column":"price","op":">","value":"100"}}`,
	}}
	bot, engine, sid := newBotFixture(t, client)

	reply, err := bot.Chat(context.Background(), sid, "show expensive rows")
	require.NoError(t, err)

	assert.Equal(t, IntentDataQuery, reply.Intent)
	assert.Equal(t, "v1", reply.VersionID)
	assert.Contains(t, reply.Answer, "3 to 2 rows")
	assert.Len(t, reply.Preview, 2)

	m, err := engine.Metadata(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "v1", m.CurrentVersion)

	sctx, err := engine.Context(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "show expensive rows", sctx.LastQuery)
}

func TestBotChat_VisualizationReturnsSpecOnly(t *testing.T) {
	client := &scriptedLLM{responses: map[string]string{
		"intent classifier": `{"intent":"visualization_request"}`,
		"chart":             `{"type":"bar","x":"region","y":"price","title":"Price by region"}`,
	}}
	bot, engine, sid := newBotFixture(t, client)

	reply, err := bot.Chat(context.Background(), sid, "plot price by region")
	require.NoError(t, err)

	require.NotNil(t, reply.Chart)
	assert.Equal(t, "bar", reply.Chart.Type)
	assert.Equal(t, "sales", reply.Chart.Table, "single table filled in")
	assert.Empty(t, reply.VersionID, "charts never change the data")

	m, err := engine.Metadata(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "v0", m.CurrentVersion)
}

func TestBotChat_SummarizeWithoutHistory(t *testing.T) {
	client := &scriptedLLM{responses: map[string]string{
		"intent classifier": `{"intent":"summarize_last"}`,
	}}
	bot, _, sid := newBotFixture(t, client)

	reply, err := bot.Chat(context.Background(), sid, "summarize that")
	require.NoError(t, err)
	assert.Contains(t, reply.Answer, "no previous result")
}

func TestBotChat_UnplannableQuery(t *testing.T) {
	client := &scriptedLLM{responses: map[string]string{
		"intent classifier": `{"intent":"data_query"}`,
		"tool invocation":   `{"tool":"none"}`,
	}}
	bot, _, sid := newBotFixture(t, client)

	reply, err := bot.Chat(context.Background(), sid, "what's the meaning of life?")
	require.NoError(t, err)
	assert.Contains(t, reply.Answer, "could not map")
	assert.Empty(t, reply.VersionID)
}

func TestBotChat_ExpiredSession(t *testing.T) {
	bot, _, _ := newBotFixture(t, &scriptedLLM{})
	_, err := bot.Chat(context.Background(), "ghost", "hello")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestDescribeSchema(t *testing.T) {
	tc := tabular.NewCollection()
	tc.Put("sales", &tabular.Table{Columns: []tabular.Column{
		{Name: "region", Type: tabular.TypeString, Strings: []string{"east"}},
		{Name: "price", Type: tabular.TypeFloat, Floats: []float64{1}},
	}})
	got := describeSchema(tc)
	assert.Contains(t, got, "sales (1 rows)")
	assert.Contains(t, got, "region:string")
	assert.Contains(t, got, "price:float")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		assert.Contains(t, req.Options, "temperature")

		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    req.Model,
			Response: "42 rows match",
			Done:     true,
		})
	}))
	defer srv.Close()

	c := newOllamaClientAt(srv.URL, "test-model")
	got, err := c.Generate(context.Background(), "how many rows?", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "42 rows match", got)
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: Message{Role: "assistant", Content: "hello"},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := newOllamaClientAt(srv.URL, "test-model")
	got, err := c.Chat(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestOllamaModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'missing' not found"})
	}))
	defer srv.Close()

	c := newOllamaClientAt(srv.URL, "missing")
	_, err := c.Generate(context.Background(), "x", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull missing")
}

func TestGenerationOptionsDefaults(t *testing.T) {
	opts := generationOptions(GenerationParams{})
	assert.Equal(t, float32(0.2), opts["temperature"])
	assert.Equal(t, 20, opts["top_k"])
	assert.NotContains(t, opts, "stop")

	temp := float32(0.9)
	maxTok := 64
	opts = generationOptions(GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTok,
		Stop:        []string{"DONE"},
	})
	assert.Equal(t, float32(0.9), opts["temperature"])
	assert.Equal(t, 64, opts["num_predict"])
	assert.Equal(t, []string{"DONE"}, opts["stop"])
}

type countingClient struct{ calls int }

func (c *countingClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	c.calls++
	return "ok", nil
}

func (c *countingClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	c.calls++
	return "ok", nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingClient{}
	limited := NewRateLimited(inner, 1000, 1)

	_, err := limited.Generate(context.Background(), "a", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	// A cancelled context fails before the call reaches the backend.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limited.Chat(ctx, nil, GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimitedBlocks(t *testing.T) {
	inner := &countingClient{}
	limited := NewRateLimited(inner, 20, 1) // 50ms between tokens

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := limited.Generate(context.Background(), "x", GenerationParams{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, 3, inner.calls)
}

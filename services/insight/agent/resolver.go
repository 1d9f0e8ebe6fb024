// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/insight/services/insight/session"
	"github.com/AleutianAI/insight/services/llm"
)

const resolverPrompt = `You rewrite short follow-up messages into complete standalone questions.

Given the previous question and its answer, output ONLY the rewritten
question, nothing else. If the follow-up is already self-contained,
output it unchanged.`

// resolveFollowUp expands a short continuation ("what about the max?")
// into a full question using the previous turn. Returns the original
// message when there is no usable context or the LLM call fails;
// follow-up resolution is best effort.
func resolveFollowUp(ctx context.Context, client llm.LLMClient, logger *slog.Logger,
	message string, sctx *session.Context) string {

	if sctx == nil || (sctx.LastQuery == "" && sctx.LastAnswer == "") {
		return message
	}
	answer := sctx.LastAnswer
	if len(answer) > 300 {
		answer = answer[:300]
	}
	user := fmt.Sprintf("Previous question: %s\nPrevious answer summary: %s\n\nUser follow-up: %s\n\nOutput the single full question:",
		sctx.LastQuery, answer, message)

	temp := float32(0.0)
	maxTokens := 128
	out, err := client.Chat(ctx, []llm.Message{
		{Role: "system", Content: resolverPrompt},
		{Role: "user", Content: user},
	}, llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		logger.Warn("follow-up resolution failed", "error", err)
		return message
	}
	resolved := strings.TrimSpace(out)
	if resolved == "" {
		return message
	}
	return resolved
}

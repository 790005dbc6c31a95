package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
)

// Fixed fallbacks spoken when the query service misbehaves.
const (
	apologyResponse = "I apologize, but I encountered an error. Please try again."
	errorResponse   = "Sorry, I encountered an error. Please try again."

	queryTimeout = 30 * time.Second
)

// TranscriptResult is the normalized outcome of one query round-trip.
// Err marks results the controller logs as a system message instead of
// an assistant message.
type TranscriptResult struct {
	SpokenText      string
	RawText         string
	CodeBlock       string
	CodeExplanation string
	History         []entities.HistoryEntry
	// Replaced is set when History came verbatim from the service
	// instead of being appended to locally.
	Replaced bool
	Err      error
}

// TranscriptProcessor sends finalized transcripts plus the running
// history to the query service and normalizes the reply.
type TranscriptProcessor struct {
	query  repositories.QueryService
	logger *zap.Logger
}

// NewTranscriptProcessor creates a transcript processor.
func NewTranscriptProcessor(query repositories.QueryService, logger *zap.Logger) *TranscriptProcessor {
	return &TranscriptProcessor{query: query, logger: logger}
}

// Process appends a user entry to a local copy of the history, issues
// one bounded request, and normalizes the reply. One call, no retry,
// no streaming. On failure the returned history is the caller's
// history untouched.
func (p *TranscriptProcessor) Process(ctx context.Context, userText string, history []entities.HistoryEntry) TranscriptResult {
	local := make([]entities.HistoryEntry, len(history), len(history)+2)
	copy(local, history)
	local = append(local, entities.NewHistoryEntry(entities.HistoryRoleUser, userText))

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	resp, err := p.query.VoiceQuery(ctx, repositories.VoiceQueryRequest{
		Text:        userText,
		ChatHistory: local,
	})
	if err != nil {
		p.logger.Error("Voice query failed", zap.Error(err))
		return TranscriptResult{
			SpokenText: errorResponse,
			History:    history,
			Err:        err,
		}
	}

	spoken := strings.TrimSpace(resp.SpokenResponse)
	if spoken == "" {
		spoken = strings.TrimSpace(resp.RawResponse)
	}
	if spoken == "" {
		spoken = apologyResponse
	}

	replaced := len(resp.ChatHistory) > 0
	if replaced {
		// The service returned an authoritative history; it replaces
		// the local copy rather than appending to it.
		local = resp.ChatHistory
	} else {
		modelText := resp.RawResponse
		if modelText == "" {
			modelText = spoken
		}
		local = append(local, entities.NewHistoryEntry(entities.HistoryRoleModel, modelText))
	}

	return TranscriptResult{
		SpokenText:      spoken,
		RawText:         resp.RawResponse,
		CodeBlock:       resp.CodeBlock,
		CodeExplanation: resp.CodeExplanation,
		History:         local,
		Replaced:        replaced,
	}
}

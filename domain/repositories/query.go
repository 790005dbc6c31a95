package repositories

import (
	"context"

	"github.com/elaralearn/voicelab/server/domain/entities"
)

// VoiceQueryRequest carries one user transcript plus the running
// history to the query service.
type VoiceQueryRequest struct {
	Text        string                 `json:"text"`
	ChatHistory []entities.HistoryEntry `json:"chat_history"`
}

// VoiceQueryResponse is the query service's reply. All fields are
// optional on the wire; the transcript processor applies fallbacks.
type VoiceQueryResponse struct {
	SpokenResponse  string                  `json:"spoken_response,omitempty"`
	RawResponse     string                  `json:"raw_response,omitempty"`
	ChatHistory     []entities.HistoryEntry `json:"chat_history,omitempty"`
	CodeBlock       string                  `json:"code_block,omitempty"`
	CodeExplanation string                  `json:"code_explanation,omitempty"`
}

// QueryService abstracts the AI responder. It is consumed as an
// opaque request/response service; any non-success outcome surfaces
// as an error.
type QueryService interface {
	// VoiceQuery issues one query round-trip. No retry, no streaming.
	VoiceQuery(ctx context.Context, req VoiceQueryRequest) (*VoiceQueryResponse, error)
	// StopTalking notifies the service that playback was interrupted.
	// Fire-and-forget; failures are logged, never surfaced.
	StopTalking(ctx context.Context) error
}

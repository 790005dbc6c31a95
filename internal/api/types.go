package api

import (
	"github.com/elaralearn/voicelab/server/domain/entities"
)

// VoiceQueryRequest is the payload for one voice query round-trip.
type VoiceQueryRequest struct {
	Text        string                  `json:"text"`
	ChatHistory []entities.HistoryEntry `json:"chat_history"`
}

// VoiceQueryResponse mirrors the query service's reply on the wire.
type VoiceQueryResponse struct {
	SpokenResponse  string                  `json:"spoken_response"`
	RawResponse     string                  `json:"raw_response"`
	ChatHistory     []entities.HistoryEntry `json:"chat_history"`
	CodeBlock       string                  `json:"code_block,omitempty"`
	CodeExplanation string                  `json:"code_explanation,omitempty"`
}

// StartSessionResponse is returned when a voice session begins.
type StartSessionResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	SpokenResponse string `json:"spoken_response"`
	Token          string `json:"token,omitempty"`
}

// SummarizeRequest asks for a summary of a finished conversation.
type SummarizeRequest struct {
	ChatHistory []entities.HistoryEntry `json:"chat_history"`
}

// SummarizeResponse carries the generated summary.
type SummarizeResponse struct {
	SummaryText string `json:"summary_text"`
	Status      string `json:"status"`
}

// ConversationResponse exposes the persisted conversation state.
type ConversationResponse struct {
	State       entities.SessionState   `json:"state"`
	Status      string                  `json:"status"`
	Log         []entities.Message      `json:"log"`
	ChatHistory []entities.HistoryEntry `json:"chat_history"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

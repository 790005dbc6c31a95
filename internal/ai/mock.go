package ai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
)

// MockResponder is a canned query service for running without a
// Gemini API key.
type MockResponder struct {
	logger *zap.Logger
}

func NewMockResponder(logger *zap.Logger) *MockResponder {
	return &MockResponder{logger: logger}
}

var _ repositories.QueryService = (*MockResponder)(nil)

func (m *MockResponder) VoiceQuery(ctx context.Context, req repositories.VoiceQueryRequest) (*repositories.VoiceQueryResponse, error) {
	raw := fmt.Sprintf("You said %q. Here is an example:\n```go\nfmt.Println(\"hello\")\n```\nThat prints a greeting.", req.Text)
	if strings.Contains(strings.ToLower(req.Text), "thanks") {
		raw = "You're welcome! Great job today."
	}

	code, explanation := ExtractCode(raw)
	history := append(append([]entities.HistoryEntry{}, req.ChatHistory...),
		entities.NewHistoryEntry(entities.HistoryRoleModel, raw))

	m.logger.Debug("Mock voice query", zap.String("text", req.Text))
	return &repositories.VoiceQueryResponse{
		SpokenResponse:  CleanForSpeech(raw),
		RawResponse:     raw,
		ChatHistory:     history,
		CodeBlock:       code,
		CodeExplanation: explanation,
	}, nil
}

func (m *MockResponder) StopTalking(ctx context.Context) error {
	m.logger.Debug("Client stopped text-to-speech")
	return nil
}

func (m *MockResponder) Summarize(ctx context.Context, history []entities.HistoryEntry) (string, error) {
	return fmt.Sprintf("The conversation covered %d turns.", len(history)), nil
}

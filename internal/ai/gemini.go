package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = 0.7
	defaultTopP            = 0.8
	defaultTopK            = 40
	defaultMaxOutputTokens = 1024

	apologyRaw    = "I apologize, but I encountered an error: %v"
	apologySpoken = "I apologize, but I encountered an error. Please try again."

	summaryPrompt = "Please provide a concise summary of this conversation:\n\n"
)

// GeminiResponder answers voice queries with the Gemini API. It
// implements the query service consumed by the session controller and
// additionally offers conversation summarization for the HTTP API.
type GeminiResponder struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.QueryService = (*GeminiResponder)(nil)

// NewGeminiResponder builds a responder from the GEMINI_API_KEY
// environment variable.
func NewGeminiResponder(ctx context.Context, logger *zap.Logger) (*GeminiResponder, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &GeminiResponder{client: client, logger: logger, model: model}, nil
}

// VoiceQuery generates one reply. The request history already ends
// with the user's turn, so the returned history appends the model
// turn only. Generation failures degrade to a spoken apology payload
// instead of an error, leaving the history as received.
func (g *GeminiResponder) VoiceQuery(ctx context.Context, req repositories.VoiceQueryRequest) (*repositories.VoiceQueryResponse, error) {
	contents := historyToContents(req.ChatHistory)
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText(req.Text, genai.RoleUser))
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(defaultTemperature)),
		TopP:            genai.Ptr(float32(defaultTopP)),
		TopK:            genai.Ptr(float32(defaultTopK)),
		MaxOutputTokens: int32(defaultMaxOutputTokens),
	}

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}
		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < 2 {
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return apologyPayload(req, ctx.Err()), nil
			}
		}
	}
	if err != nil {
		g.logger.Error("Voice query generation failed", zap.Error(err))
		return apologyPayload(req, err), nil
	}

	raw := responseText(response)
	if raw == "" {
		g.logger.Warn("Empty response from model")
		return apologyPayload(req, fmt.Errorf("empty response")), nil
	}

	code, explanation := ExtractCode(raw)
	history := append(append([]entities.HistoryEntry{}, req.ChatHistory...),
		entities.NewHistoryEntry(entities.HistoryRoleModel, raw))

	g.logger.Info("Voice query answered",
		zap.Int("history_length", len(history)),
		zap.Bool("has_code", code != ""))

	return &repositories.VoiceQueryResponse{
		SpokenResponse:  CleanForSpeech(raw),
		RawResponse:     raw,
		ChatHistory:     history,
		CodeBlock:       code,
		CodeExplanation: explanation,
	}, nil
}

// StopTalking records that client playback was interrupted. Nothing
// to cancel server-side; generation is synchronous.
func (g *GeminiResponder) StopTalking(ctx context.Context) error {
	g.logger.Info("Client stopped text-to-speech")
	return nil
}

// Summarize condenses a conversation into a short paragraph.
func (g *GeminiResponder) Summarize(ctx context.Context, history []entities.HistoryEntry) (string, error) {
	var lines []string
	for _, entry := range history {
		if entry.Role == "" || entry.Text() == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(entry.Role), entry.Text()))
	}

	prompt := summaryPrompt + strings.Join(lines, "\n")
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to summarize conversation: %w", err)
	}
	summary := responseText(response)
	if summary == "" {
		return "", fmt.Errorf("empty summary from model")
	}
	return summary, nil
}

func apologyPayload(req repositories.VoiceQueryRequest, err error) *repositories.VoiceQueryResponse {
	return &repositories.VoiceQueryResponse{
		RawResponse:    fmt.Sprintf(apologyRaw, err),
		SpokenResponse: apologySpoken,
		ChatHistory:    req.ChatHistory,
	}
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text
}

func historyToContents(history []entities.HistoryEntry) []*genai.Content {
	var contents []*genai.Content
	for _, entry := range history {
		text := entry.Text()
		if text == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if entry.Role == entities.HistoryRoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	return contents
}

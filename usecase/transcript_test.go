package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
)

type fakeQueryService struct {
	mu      sync.Mutex
	resp    *repositories.VoiceQueryResponse
	err     error
	lastReq repositories.VoiceQueryRequest
	stopped int
	stopErr error
}

func (f *fakeQueryService) VoiceQuery(ctx context.Context, req repositories.VoiceQueryRequest) (*repositories.VoiceQueryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeQueryService) StopTalking(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.stopErr
}

func (f *fakeQueryService) lastRequest() repositories.VoiceQueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func (f *fakeQueryService) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func TestProcessAppendsUserEntryBeforeCall(t *testing.T) {
	query := &fakeQueryService{resp: &repositories.VoiceQueryResponse{SpokenResponse: "Hi there!"}}
	processor := NewTranscriptProcessor(query, zap.NewNop())

	history := []entities.HistoryEntry{entities.NewHistoryEntry(entities.HistoryRoleModel, "Welcome")}
	result := processor.Process(context.Background(), "Hello", history)

	if len(query.lastReq.ChatHistory) != 2 {
		t.Fatalf("Expected user entry appended before the call, history length %d", len(query.lastReq.ChatHistory))
	}
	sent := query.lastReq.ChatHistory[1]
	if sent.Role != entities.HistoryRoleUser || sent.Text() != "Hello" {
		t.Errorf("Wrong user entry sent: %+v", sent)
	}
	if query.lastReq.Text != "Hello" {
		t.Errorf("Wrong query text: %q", query.lastReq.Text)
	}

	if result.Err != nil {
		t.Errorf("Unexpected error: %v", result.Err)
	}
	if result.SpokenText != "Hi there!" {
		t.Errorf("Wrong spoken text: %q", result.SpokenText)
	}
}

func TestProcessSynthesizesModelEntry(t *testing.T) {
	query := &fakeQueryService{resp: &repositories.VoiceQueryResponse{
		SpokenResponse: "Spoken form.",
		RawResponse:    "Raw form with `code`.",
	}}
	processor := NewTranscriptProcessor(query, zap.NewNop())

	result := processor.Process(context.Background(), "Hello", nil)

	if len(result.History) != 2 {
		t.Fatalf("Expected user+model entries, got %d", len(result.History))
	}
	if result.History[0].Role != entities.HistoryRoleUser {
		t.Error("First entry must be the user entry")
	}
	model := result.History[1]
	if model.Role != entities.HistoryRoleModel || model.Text() != "Raw form with `code`." {
		t.Errorf("Model entry should carry the raw text, got %+v", model)
	}
}

func TestProcessSpokenFallsBackToRaw(t *testing.T) {
	query := &fakeQueryService{resp: &repositories.VoiceQueryResponse{RawResponse: "Only raw."}}
	processor := NewTranscriptProcessor(query, zap.NewNop())

	result := processor.Process(context.Background(), "Hello", nil)
	if result.SpokenText != "Only raw." {
		t.Errorf("Expected raw fallback, got %q", result.SpokenText)
	}
}

func TestProcessFallsBackToApology(t *testing.T) {
	query := &fakeQueryService{resp: &repositories.VoiceQueryResponse{}}
	processor := NewTranscriptProcessor(query, zap.NewNop())

	result := processor.Process(context.Background(), "Hello", nil)
	if result.SpokenText != apologyResponse {
		t.Errorf("Expected apology fallback, got %q", result.SpokenText)
	}
	if result.Err != nil {
		t.Error("Empty response is not an error outcome")
	}
}

func TestProcessAuthoritativeHistoryReplaces(t *testing.T) {
	authoritative := []entities.HistoryEntry{
		entities.NewHistoryEntry(entities.HistoryRoleUser, "rewritten user"),
		entities.NewHistoryEntry(entities.HistoryRoleModel, "rewritten model"),
	}
	query := &fakeQueryService{resp: &repositories.VoiceQueryResponse{
		SpokenResponse: "ok",
		ChatHistory:    authoritative,
	}}
	processor := NewTranscriptProcessor(query, zap.NewNop())

	local := []entities.HistoryEntry{entities.NewHistoryEntry(entities.HistoryRoleUser, "old")}
	result := processor.Process(context.Background(), "Hello", local)

	if len(result.History) != 2 {
		t.Fatalf("Expected the authoritative history verbatim, got %d entries", len(result.History))
	}
	if result.History[0].Text() != "rewritten user" || result.History[1].Text() != "rewritten model" {
		t.Errorf("History not replaced: %+v", result.History)
	}
}

func TestProcessFailureLeavesHistoryUntouched(t *testing.T) {
	query := &fakeQueryService{err: errors.New("status 500")}
	processor := NewTranscriptProcessor(query, zap.NewNop())

	history := []entities.HistoryEntry{entities.NewHistoryEntry(entities.HistoryRoleUser, "before")}
	result := processor.Process(context.Background(), "Hello", history)

	if result.Err == nil {
		t.Fatal("Expected error outcome")
	}
	if result.SpokenText != errorResponse {
		t.Errorf("Expected fixed error message, got %q", result.SpokenText)
	}
	if len(result.History) != 1 || result.History[0].Text() != "before" {
		t.Errorf("History mutated on failure: %+v", result.History)
	}
}

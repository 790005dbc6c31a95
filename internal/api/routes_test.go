package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
	"github.com/elaralearn/voicelab/server/internal/websocket"
	"github.com/elaralearn/voicelab/server/usecase"
)

type fakeController struct {
	startErr    error
	interrupted int
	state       entities.SessionState
	status      string
	log         []entities.Message
	history     []entities.HistoryEntry
}

func (f *fakeController) Start(ctx context.Context) error       { return f.startErr }
func (f *fakeController) Interrupt(ctx context.Context)         { f.interrupted++ }
func (f *fakeController) State() entities.SessionState          { return f.state }
func (f *fakeController) LastStatus() string                    { return f.status }
func (f *fakeController) Log() []entities.Message               { return f.log }
func (f *fakeController) History() []entities.HistoryEntry      { return f.history }

type fakeQuery struct {
	resp *repositories.VoiceQueryResponse
	err  error
	last repositories.VoiceQueryRequest
}

func (f *fakeQuery) VoiceQuery(ctx context.Context, req repositories.VoiceQueryRequest) (*repositories.VoiceQueryResponse, error) {
	f.last = req
	return f.resp, f.err
}

func (f *fakeQuery) StopTalking(ctx context.Context) error { return nil }

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, history []entities.HistoryEntry) (string, error) {
	return f.summary, f.err
}

func setupServer(controller SessionController, query repositories.QueryService, summarizer Summarizer) *echo.Echo {
	e := echo.New()
	hub := websocket.NewHub(zap.NewNop())
	InitRoutes(e, hub, controller, query, summarizer, zap.NewNop())
	return e
}

func TestHealth(t *testing.T) {
	e := setupServer(&fakeController{}, &fakeQuery{}, &fakeSummarizer{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestVoiceQueryEndpoint(t *testing.T) {
	query := &fakeQuery{resp: &repositories.VoiceQueryResponse{
		SpokenResponse: "A slice is a view over an array.",
		RawResponse:    "A slice is a view over an array.",
	}}
	e := setupServer(&fakeController{}, query, &fakeSummarizer{})

	body := `{"text": "What is a slice?", "chat_history": [{"role": "user", "parts": ["What is a slice?"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/voice-query", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp VoiceQueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if resp.SpokenResponse != "A slice is a view over an array." {
		t.Errorf("Wrong spoken response: %q", resp.SpokenResponse)
	}
	if query.last.Text != "What is a slice?" || len(query.last.ChatHistory) != 1 {
		t.Errorf("Wrong request forwarded: %+v", query.last)
	}
}

func TestVoiceQueryRequiresText(t *testing.T) {
	e := setupServer(&fakeController{}, &fakeQuery{}, &fakeSummarizer{})

	req := httptest.NewRequest(http.MethodPost, "/voice-query", strings.NewReader(`{"text": "  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestStartVoiceSessionConflict(t *testing.T) {
	e := setupServer(&fakeController{startErr: usecase.ErrSessionActive}, &fakeQuery{}, &fakeSummarizer{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/start-voice-session", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}
}

func TestStartVoiceSessionSpeaksWelcome(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	defer os.Unsetenv("JWT_SECRET")

	e := setupServer(&fakeController{}, &fakeQuery{}, &fakeSummarizer{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/start-voice-session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp StartSessionResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.SpokenResponse != "Hello! I'm your voice assistant. How can I help you today?" {
		t.Errorf("Wrong welcome line: %q", resp.SpokenResponse)
	}
	if resp.Token == "" {
		t.Error("Expected a session token")
	}
}

func TestStopTalkingInterrupts(t *testing.T) {
	controller := &fakeController{}
	e := setupServer(controller, &fakeQuery{}, &fakeSummarizer{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stop-talking", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if controller.interrupted != 1 {
		t.Errorf("Expected one interrupt, got %d", controller.interrupted)
	}
}

func TestSummarizeVoiceChat(t *testing.T) {
	e := setupServer(&fakeController{}, &fakeQuery{}, &fakeSummarizer{summary: "They discussed slices."})

	body := `{"chat_history": [{"role": "user", "parts": ["hi"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/summarize-voice-chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp SummarizeResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "success" || resp.SummaryText != "They discussed slices." {
		t.Errorf("Wrong summary response: %+v", resp)
	}
}

func TestConversationSnapshot(t *testing.T) {
	controller := &fakeController{
		state:  entities.SessionListening,
		status: "Listening...",
		log:    []entities.Message{entities.NewMessage(entities.RoleAssistant, "Hello!")},
	}
	e := setupServer(controller, &fakeQuery{}, &fakeSummarizer{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversation", nil))

	var resp ConversationResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.State != entities.SessionListening || len(resp.Log) != 1 {
		t.Errorf("Wrong conversation snapshot: %+v", resp)
	}
}

func TestWebsocketRequiresToken(t *testing.T) {
	e := setupServer(&fakeController{}, &fakeQuery{}, &fakeSummarizer{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
}

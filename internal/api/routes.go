package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
	"github.com/elaralearn/voicelab/server/internal/auth"
	"github.com/elaralearn/voicelab/server/internal/websocket"
	"github.com/elaralearn/voicelab/server/usecase"
)

// SessionController is the slice of the session controller the HTTP
// layer needs.
type SessionController interface {
	Start(ctx context.Context) error
	Interrupt(ctx context.Context)
	State() entities.SessionState
	LastStatus() string
	Log() []entities.Message
	History() []entities.HistoryEntry
}

// Summarizer condenses a conversation history into prose.
type Summarizer interface {
	Summarize(ctx context.Context, history []entities.HistoryEntry) (string, error)
}

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	controller SessionController,
	query repositories.QueryService,
	summarizer Summarizer,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voicelab-server",
		})
	})

	e.POST("/start-voice-session", func(c echo.Context) error {
		return startVoiceSession(c, controller, logger)
	})
	e.POST("/voice-query", func(c echo.Context) error {
		return voiceQuery(c, query, logger)
	})
	e.POST("/stop-talking", func(c echo.Context) error {
		return stopTalking(c, controller, logger)
	})
	e.POST("/summarize-voice-chat", func(c echo.Context) error {
		return summarizeVoiceChat(c, summarizer, logger)
	})
	e.GET("/conversation", func(c echo.Context) error {
		return getConversation(c, controller)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

// startVoiceSession begins the conversation and mints a token for the
// websocket attach. An already-running session is a conflict.
func startVoiceSession(c echo.Context, controller SessionController, logger *zap.Logger) error {
	ctx := c.Request().Context()
	if err := controller.Start(ctx); err != nil {
		switch {
		case err == usecase.ErrSessionActive:
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "session_active",
				Message: "A voice session is already in progress",
			})
		case err == repositories.ErrPermissionDenied,
			err == repositories.ErrRecognitionUnsupported:
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "recognition_unavailable",
				Message: controller.LastStatus(),
			})
		default:
			logger.Error("Failed to start voice session", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "start_failed",
				Message: err.Error(),
			})
		}
	}

	token, err := auth.GenerateSessionToken(uuid.New().String())
	if err != nil {
		// The session still started; the token is only for websocket
		// observers.
		logger.Warn("Failed to mint session token", zap.Error(err))
	}

	return c.JSON(http.StatusOK, StartSessionResponse{
		Status:         "success",
		Message:        "Voice session started",
		SpokenResponse: "Hello! I'm your voice assistant. How can I help you today?",
		Token:          token,
	})
}

func voiceQuery(c echo.Context, query repositories.QueryService, logger *zap.Logger) error {
	var req VoiceQueryRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind voice query request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_text",
			Message: "No text provided",
		})
	}

	resp, err := query.VoiceQuery(c.Request().Context(), repositories.VoiceQueryRequest{
		Text:        req.Text,
		ChatHistory: req.ChatHistory,
	})
	if err != nil {
		logger.Error("Voice query failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "query_failed",
			Message: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, VoiceQueryResponse{
		SpokenResponse:  resp.SpokenResponse,
		RawResponse:     resp.RawResponse,
		ChatHistory:     resp.ChatHistory,
		CodeBlock:       resp.CodeBlock,
		CodeExplanation: resp.CodeExplanation,
	})
}

// stopTalking is the barge-in endpoint: it cancels in-flight
// assistant speech and acknowledges regardless of session state.
func stopTalking(c echo.Context, controller SessionController, logger *zap.Logger) error {
	controller.Interrupt(c.Request().Context())
	logger.Info("Received signal: client stopped text-to-speech")
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Stop signal received and logged.",
	})
}

func summarizeVoiceChat(c echo.Context, summarizer Summarizer, logger *zap.Logger) error {
	var req SummarizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	summary, err := summarizer.Summarize(c.Request().Context(), req.ChatHistory)
	if err != nil {
		logger.Error("Failed to summarize conversation", zap.Error(err))
		return c.JSON(http.StatusOK, SummarizeResponse{
			SummaryText: "Error generating conversation summary.",
			Status:      "error",
		})
	}
	return c.JSON(http.StatusOK, SummarizeResponse{
		SummaryText: summary,
		Status:      "success",
	})
}

func getConversation(c echo.Context, controller SessionController) error {
	return c.JSON(http.StatusOK, ConversationResponse{
		State:       controller.State(),
		Status:      controller.LastStatus(),
		Log:         controller.Log(),
		ChatHistory: controller.History(),
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if token == "" {
		// Browsers cannot set headers on websocket upgrades.
		token = c.QueryParam("token")
	}
	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}
	if claims.Role != auth.SessionRole {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only voice session tokens are allowed",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("session_id", claims.SessionID))
	return websocket.HandleWebSocketWithAuth(hub, c, logger)
}

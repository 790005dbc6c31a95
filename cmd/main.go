package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/adapters/query"
	"github.com/elaralearn/voicelab/server/adapters/recognition"
	"github.com/elaralearn/voicelab/server/adapters/store"
	"github.com/elaralearn/voicelab/server/adapters/synthesis"
	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
	"github.com/elaralearn/voicelab/server/internal/ai"
	"github.com/elaralearn/voicelab/server/internal/api"
	"github.com/elaralearn/voicelab/server/internal/websocket"
	"github.com/elaralearn/voicelab/server/usecase"
)

func main() {
	// .env is optional in production deployments
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	if os.Getenv("ENV") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx := context.Background()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Conversation persistence: MongoDB when configured, in-memory
	// otherwise.
	conversations := buildStore(logger)

	// WebSocket hub carries microphone audio up and synthesized audio
	// down, and broadcasts session events to attached clients.
	hub := websocket.NewHub(logger)

	recognizer := buildRecognizer(hub, logger)
	synthesizer := buildSynthesizer(hub, logger)
	responder, summarizer := buildResponder(ctx, logger)

	input := usecase.NewSpeechInputChannel(recognizer, usecase.DefaultRecognitionConfig, logger)
	output := usecase.NewSpeechOutputChannel(synthesizer, usecase.DefaultVoicePreference, logger)
	processor := usecase.NewTranscriptProcessor(responder, logger)

	controller := usecase.NewSessionController(
		entities.NewSession(),
		input,
		output,
		recognizer,
		processor,
		conversations,
		responder,
		hub,
		logger,
	)
	hub.SetController(controller)
	go hub.Run()

	idle := websocket.NewIdleShutdownService(hub, 5*time.Minute, logger)
	idle.Start()
	defer idle.Stop()

	// Initialize API routes
	api.InitRoutes(e, hub, controller, responder, summarizer, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Voice session server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	if err := controller.Stop(); err != nil && err != entities.ErrInvalidTransition {
		logger.Warn("Failed to stop voice session", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildStore prefers MongoDB and falls back to the in-memory store so
// the server runs without any backing services.
func buildStore(logger *zap.Logger) repositories.ConversationStore {
	if os.Getenv("MONGODB_URI") == "" {
		logger.Info("MONGODB_URI not set, using in-memory conversation store")
		return store.NewMemoryStore()
	}

	client, err := store.NewClient(logger)
	if err != nil {
		logger.Warn("MongoDB unavailable, using in-memory conversation store", zap.Error(err))
		return store.NewMemoryStore()
	}

	sessionKey := os.Getenv("SESSION_KEY")
	if sessionKey == "" {
		sessionKey = uuid.New().String()
	}
	return store.NewMongoStore(client.Database, sessionKey, logger)
}

// buildRecognizer uses Google Cloud Speech when credentials are
// configured, fed by audio frames from the websocket hub. Without
// credentials the scripted mock keeps the session loop usable.
func buildRecognizer(hub *websocket.Hub, logger *zap.Logger) repositories.SpeechRecognizer {
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		logger.Info("Google credentials not set, using mock speech recognizer")
		return recognition.NewMockRecognizer(nil, logger)
	}
	return recognition.NewGoogleRecognizer(hub.OpenAudioSource, logger)
}

// buildSynthesizer streams ElevenLabs audio back through the hub when
// an API key is configured.
func buildSynthesizer(hub *websocket.Hub, logger *zap.Logger) repositories.SpeechSynthesizer {
	if os.Getenv("ELEVEN_LABS_API_KEY") == "" {
		logger.Info("ELEVEN_LABS_API_KEY not set, using mock speech synthesizer")
		return synthesis.NewMockSynthesizer(logger)
	}

	synth, err := synthesis.NewElevenLabsSynthesizer(synthesis.NewElevenLabsConfigFromEnv(), hub, logger)
	if err != nil {
		logger.Warn("ElevenLabs misconfigured, using mock speech synthesizer", zap.Error(err))
		return synthesis.NewMockSynthesizer(logger)
	}
	return synth
}

// buildResponder picks the answer backend: a remote voice-query
// service when VOICE_QUERY_URL is set, Gemini when an API key is
// available, and the canned mock otherwise. The summarizer always
// runs locally since the remote backend does not expose one.
func buildResponder(ctx context.Context, logger *zap.Logger) (repositories.QueryService, api.Summarizer) {
	mock := ai.NewMockResponder(logger)

	var summarizer api.Summarizer = mock
	gemini, err := ai.NewGeminiResponder(ctx, logger)
	if err == nil {
		summarizer = gemini
	} else if os.Getenv("GEMINI_API_KEY") != "" {
		logger.Warn("Failed to initialize Gemini responder", zap.Error(err))
	}

	if url := os.Getenv("VOICE_QUERY_URL"); url != "" {
		return query.NewHTTPClient(url, logger), summarizer
	}
	if gemini != nil && err == nil {
		return gemini, summarizer
	}

	logger.Info("No responder backend configured, using mock responder")
	return mock, summarizer
}

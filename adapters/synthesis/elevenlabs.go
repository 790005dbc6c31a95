package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultChunkSize    = 1024
	defaultOutputFormat = "pcm_24000"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75

	vendorName = "ElevenLabs"
)

// AudioSink receives synthesized audio chunks for playback. The
// websocket layer implements it by forwarding binary frames to the
// client device.
type AudioSink interface {
	PlayChunk(chunk []byte) error
}

// ElevenLabsConfig configures the ElevenLabs synthesizer.
// APIKey is required; the rest default sensibly.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64
	Clarity      float64
}

// NewElevenLabsConfigFromEnv reads the configuration from the
// ELEVEN_LABS_* environment variables.
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:       os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL:   os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		VoiceID:      os.Getenv("ELEVEN_LABS_VOICE_ID"),
		ModelID:      os.Getenv("ELEVEN_LABS_MODEL_ID"),
		OutputFormat: os.Getenv("ELEVEN_LABS_OUTPUT_FORMAT"),
	}
	if raw := os.Getenv("ELEVEN_LABS_CHUNK_SIZE"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 {
			config.ChunkSize = size
		}
	}
	if raw := os.Getenv("ELEVEN_LABS_STABILITY"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			config.Stability = v
		}
	}
	if raw := os.Getenv("ELEVEN_LABS_CLARITY"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			config.Clarity = v
		}
	}
	return config
}

func validateConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

// ElevenLabsSynthesizer implements SpeechSynthesizer on the ElevenLabs
// streaming TTS API, delivering audio to the injected sink. Speak
// blocks until the full response body has been streamed through.
type ElevenLabsSynthesizer struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	stability    float64
	clarity      float64
	client       *http.Client
	sink         AudioSink
	logger       *zap.Logger

	pause *pauseGate
}

var _ repositories.SpeechSynthesizer = (*ElevenLabsSynthesizer)(nil)

func NewElevenLabsSynthesizer(config ElevenLabsConfig, sink AudioSink, logger *zap.Logger) (*ElevenLabsSynthesizer, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if config.VoiceID == "" {
		config.VoiceID = defaultVoiceID
	}
	if config.ModelID == "" {
		config.ModelID = defaultModelID
	}
	if config.OutputFormat == "" {
		config.OutputFormat = defaultOutputFormat
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = defaultChunkSize
	}
	if config.Stability == 0 {
		config.Stability = defaultStability
	}
	if config.Clarity == 0 {
		config.Clarity = defaultClarity
	}

	return &ElevenLabsSynthesizer{
		apiKey:       config.APIKey,
		apiBaseURL:   config.APIBaseURL,
		voiceID:      config.VoiceID,
		modelID:      config.ModelID,
		outputFormat: config.OutputFormat,
		chunkSize:    config.ChunkSize,
		stability:    config.Stability,
		clarity:      config.Clarity,
		client:       &http.Client{Timeout: 60 * time.Second},
		sink:         sink,
		logger:       logger,
		pause:        newPauseGate(),
	}, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type synthesisRequest struct {
	Text                   string        `json:"text"`
	ModelID                string        `json:"model_id"`
	VoiceSettings          voiceSettings `json:"voice_settings"`
	ApplyTextNormalization string        `json:"apply_text_normalization,omitempty"`
}

// Voices lists the account's voices. An empty account or a failed call
// surfaces as ErrSynthesisUnavailable so the output channel degrades
// to a silent completion.
func (e *ElevenLabsSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	url := fmt.Sprintf("%s/voices", e.apiBaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrSynthesisUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: voices returned %d: %s",
			repositories.ErrSynthesisUnavailable, resp.StatusCode, string(body))
	}

	var payload struct {
		Voices []struct {
			VoiceID string            `json:"voice_id"`
			Name    string            `json:"name"`
			Labels  map[string]string `json:"labels"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	voices := make([]repositories.Voice, 0, len(payload.Voices))
	for _, v := range payload.Voices {
		language := v.Labels["language"]
		if language == "" {
			language = "en-US"
		}
		voices = append(voices, repositories.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Language: language,
			Vendor:   vendorName,
			Default:  v.VoiceID == e.voiceID,
		})
	}
	e.logger.Debug("Listed synthesis voices", zap.Int("count", len(voices)))
	return voices, nil
}

// Speak synthesizes one utterance and streams the audio to the sink.
// The utterance's rate maps onto the voice speed setting; pitch has no
// direct ElevenLabs equivalent and nudges the style parameter instead.
func (e *ElevenLabsSynthesizer) Speak(ctx context.Context, utterance repositories.Utterance) error {
	voiceID := utterance.Voice.ID
	if voiceID == "" {
		voiceID = e.voiceID
	}

	style := 0.0
	if utterance.Pitch > 1.0 {
		style = utterance.Pitch - 1.0
		if style > 1.0 {
			style = 1.0
		}
	}
	request := synthesisRequest{
		Text:                   utterance.Text,
		ModelID:                e.modelID,
		ApplyTextNormalization: "auto",
		VoiceSettings: voiceSettings{
			Stability:       e.stability,
			SimilarityBoost: e.clarity,
			Style:           style,
			Speed:           utterance.Rate,
			UseSpeakerBoost: true,
		},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, voiceID, e.outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/pcm")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("synthesis returned %d: %s", resp.StatusCode, string(errorBody))
	}

	buffer := make([]byte, e.chunkSize)
	for {
		if err := e.pause.wait(ctx); err != nil {
			return err
		}
		n, err := resp.Body.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			if err := e.sink.PlayChunk(chunk); err != nil {
				return fmt.Errorf("playback sink failed: %w", err)
			}
		}
		if err == io.EOF {
			return ctx.Err()
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read audio stream: %w", err)
		}
	}
}

func (e *ElevenLabsSynthesizer) Pause()  { e.pause.pause() }
func (e *ElevenLabsSynthesizer) Resume() { e.pause.resume() }

// pauseGate blocks the streaming loop while paused without dropping
// the HTTP response.
type pauseGate struct {
	mu      sync.Mutex
	blocked chan struct{}
}

func newPauseGate() *pauseGate {
	return &pauseGate{}
}

func (g *pauseGate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.blocked == nil {
		g.blocked = make(chan struct{})
	}
}

func (g *pauseGate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.blocked != nil {
		close(g.blocked)
		g.blocked = nil
	}
}

func (g *pauseGate) wait(ctx context.Context) error {
	g.mu.Lock()
	blocked := g.blocked
	g.mu.Unlock()
	if blocked == nil {
		return nil
	}
	select {
	case <-blocked:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

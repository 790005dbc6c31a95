package synthesis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/repositories"
)

// MockSynthesizer simulates playback by sleeping in proportion to the
// utterance length, honoring pause and cancellation. Used when no
// ElevenLabs key is configured.
type MockSynthesizer struct {
	logger    *zap.Logger
	perChar   time.Duration
	pauseGate *pauseGate
}

func NewMockSynthesizer(logger *zap.Logger) *MockSynthesizer {
	return &MockSynthesizer{
		logger:    logger,
		perChar:   12 * time.Millisecond,
		pauseGate: newPauseGate(),
	}
}

var _ repositories.SpeechSynthesizer = (*MockSynthesizer)(nil)

func (m *MockSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	return []repositories.Voice{
		{ID: "mock-en", Name: "Google US English", Language: "en-US", Vendor: "Google", Default: true},
		{ID: "mock-id", Name: "Damayanti", Language: "id-ID", Vendor: "Google"},
	}, nil
}

func (m *MockSynthesizer) Speak(ctx context.Context, utterance repositories.Utterance) error {
	rate := utterance.Rate
	if rate <= 0 {
		rate = 1.0
	}
	duration := time.Duration(float64(len(utterance.Text)) * float64(m.perChar) / rate)
	m.logger.Debug("Mock playback",
		zap.String("text", utterance.Text),
		zap.Duration("duration", duration),
		zap.Float64("rate", utterance.Rate),
		zap.Float64("pitch", utterance.Pitch))

	// Sleep in slices so pause and cancellation stay responsive.
	const slice = 20 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < duration; elapsed += slice {
		if err := m.pauseGate.wait(ctx); err != nil {
			return err
		}
		select {
		case <-time.After(slice):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (m *MockSynthesizer) Pause()  { m.pauseGate.pause() }
func (m *MockSynthesizer) Resume() { m.pauseGate.resume() }

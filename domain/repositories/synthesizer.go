package repositories

import (
	"context"
	"errors"
)

// ErrSynthesisUnavailable is returned when no synthesis voices exist.
// The output channel treats it as an instantly-completed utterance.
var ErrSynthesisUnavailable = errors.New("speech synthesis is not available")

// Voice is one synthesis voice offered by the host environment.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Vendor   string `json:"vendor"`
	Default  bool   `json:"default"`
}

// Utterance is a single segment of synthesized speech with its own
// prosody parameters.
type Utterance struct {
	Text  string
	Voice Voice
	Rate  float64
	Pitch float64
}

// SpeechSynthesizer abstracts the text-to-speech capability.
type SpeechSynthesizer interface {
	// Voices enumerates the available synthesis voices.
	Voices(ctx context.Context) ([]Voice, error)
	// Speak plays one utterance, blocking until playback finishes.
	// Cancelling the context cancels playback.
	Speak(ctx context.Context, utterance Utterance) error
	// Pause suspends the playback device without discarding the
	// current utterance.
	Pause()
	// Resume continues paused playback.
	Resume()
}

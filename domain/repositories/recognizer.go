package repositories

import (
	"context"
	"errors"
)

// Recognizer error taxonomy. No-speech and aborted are expected under
// normal stop/restart cycles and are swallowed by the input channel;
// unsupported is fatal for the whole session.
var (
	ErrRecognitionUnsupported = errors.New("speech recognition is not supported")
	ErrPermissionDenied       = errors.New("microphone permission denied")
	ErrNoSpeech               = errors.New("no speech detected")
	ErrRecognitionAborted     = errors.New("recognition aborted")
)

// RecognitionConfig configures a recognition pass.
type RecognitionConfig struct {
	SampleRate     int    `json:"sample_rate"`
	Encoding       string `json:"encoding"`
	Language       string `json:"language"`
	InterimResults bool   `json:"interim_results"`
}

// RecognitionResult is one transcript fragment within a result batch.
type RecognitionResult struct {
	Transcript string
	Final      bool
}

// RecognitionBatch is one batch of fragments delivered by the
// recognizer. Fragments are ephemeral; only finals propagate upward.
type RecognitionBatch struct {
	Results []RecognitionResult
}

// FinalTranscript concatenates the final fragments of the batch.
func (b RecognitionBatch) FinalTranscript() (string, bool) {
	var text string
	var found bool
	for _, r := range b.Results {
		if r.Final {
			text += r.Transcript
			found = true
		}
	}
	return text, found
}

// SpeechRecognizer abstracts the continuous speech recognition
// capability of the host environment.
type SpeechRecognizer interface {
	// RequestAccess acquires the microphone. Returns
	// ErrRecognitionUnsupported when the capability is absent and
	// ErrPermissionDenied when the user refuses.
	RequestAccess(ctx context.Context) error
	// Listen opens a continuous recognition stream.
	Listen(ctx context.Context, config RecognitionConfig) (RecognitionStream, error)
}

// RecognitionStream is one open recognition pass.
type RecognitionStream interface {
	// Recv blocks until the next result batch or error.
	Recv() (RecognitionBatch, error)
	// Stop ends the pass. Pending Recv calls return
	// ErrRecognitionAborted.
	Stop() error
}

package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/repositories"
)

// DefaultRecognitionConfig fixes the platform's recognition locale and
// enables continuous, interim-capable recognition.
var DefaultRecognitionConfig = repositories.RecognitionConfig{
	SampleRate:     16000,
	Encoding:       "LINEAR16",
	Language:       "en-US",
	InterimResults: true,
}

// SpeechInputChannel manages the lifecycle of the speech recognizer.
// It surfaces only finalized transcripts and filters the error kinds
// that are expected under normal stop/restart cycles. It never
// restarts itself; every Start call comes from the session controller.
type SpeechInputChannel struct {
	recognizer repositories.SpeechRecognizer
	config     repositories.RecognitionConfig
	logger     *zap.Logger

	onFinal            func(text string)
	onListeningChanged func(listening bool)
	onFatalError       func(err error)

	mu     sync.Mutex
	stream repositories.RecognitionStream
}

// NewSpeechInputChannel creates a speech input channel.
func NewSpeechInputChannel(recognizer repositories.SpeechRecognizer, config repositories.RecognitionConfig, logger *zap.Logger) *SpeechInputChannel {
	return &SpeechInputChannel{
		recognizer: recognizer,
		config:     config,
		logger:     logger,
	}
}

// SetFinalHandler registers the finalized-transcript callback.
func (c *SpeechInputChannel) SetFinalHandler(fn func(text string)) {
	c.onFinal = fn
}

// SetListeningChangedHandler registers the listening-state callback.
func (c *SpeechInputChannel) SetListeningChangedHandler(fn func(listening bool)) {
	c.onListeningChanged = fn
}

// SetFatalErrorHandler registers the fatal-error callback. Only the
// outright absence of the recognition capability is fatal.
func (c *SpeechInputChannel) SetFatalErrorHandler(fn func(err error)) {
	c.onFatalError = fn
}

// Listening reports whether a recognition pass is open.
func (c *SpeechInputChannel) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Start opens a recognition pass. Calling Start while already started
// is a guarded no-op.
func (c *SpeechInputChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stream != nil {
		c.mu.Unlock()
		return nil
	}

	stream, err := c.recognizer.Listen(ctx, c.config)
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, repositories.ErrRecognitionUnsupported) {
			c.fatal(err)
		} else {
			c.logger.Error("Failed to start recognition", zap.Error(err))
		}
		return err
	}
	c.stream = stream
	c.mu.Unlock()

	c.setListening(true)
	go c.receive(stream)
	return nil
}

// Stop closes the current recognition pass, if any.
func (c *SpeechInputChannel) Stop() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Stop(); err != nil {
		c.logger.Warn("Failed to stop recognition stream", zap.Error(err))
	}
	c.setListening(false)
}

// receive consumes result batches until the pass ends. The moment a
// batch carries final fragments they are concatenated, the recognizer
// is stopped, and the trimmed transcript is emitted; blank results are
// discarded without emitting.
func (c *SpeechInputChannel) receive(stream repositories.RecognitionStream) {
	for {
		batch, err := stream.Recv()
		if err != nil {
			c.handleRecvError(stream, err)
			return
		}

		transcript, found := batch.FinalTranscript()
		if !found {
			continue
		}

		c.detach(stream)
		if err := stream.Stop(); err != nil {
			c.logger.Warn("Failed to stop recognition stream", zap.Error(err))
		}
		c.setListening(false)

		transcript = strings.TrimSpace(transcript)
		if transcript == "" {
			return
		}
		if c.onFinal != nil {
			c.onFinal(transcript)
		}
		return
	}
}

// handleRecvError applies the error policy: no-speech and aborted are
// swallowed, everything else is a recoverable error that clears the
// listening flag without touching the session state machine.
func (c *SpeechInputChannel) handleRecvError(stream repositories.RecognitionStream, err error) {
	c.detach(stream)
	c.setListening(false)

	switch {
	case errors.Is(err, repositories.ErrNoSpeech), errors.Is(err, repositories.ErrRecognitionAborted):
		c.logger.Debug("Recognition ended without speech", zap.Error(err))
	default:
		c.logger.Error("Recognition error", zap.Error(err))
	}
}

// detach clears the stream reference if it is still the current pass,
// so a Stop that raced the receiver stays a no-op.
func (c *SpeechInputChannel) detach(stream repositories.RecognitionStream) {
	c.mu.Lock()
	if c.stream == stream {
		c.stream = nil
	}
	c.mu.Unlock()
}

func (c *SpeechInputChannel) setListening(listening bool) {
	if c.onListeningChanged != nil {
		c.onListeningChanged(listening)
	}
}

func (c *SpeechInputChannel) fatal(err error) {
	if c.onFatalError != nil {
		c.onFatalError(err)
	}
}

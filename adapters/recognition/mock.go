package recognition

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/repositories"
)

// MockRecognizer plays back a fixed script of utterances, one per
// recognition pass, with a short delay to mimic a person speaking.
// Used when Google credentials are absent.
type MockRecognizer struct {
	logger *zap.Logger
	delay  time.Duration

	mu     sync.Mutex
	script []string
	next   int
}

func NewMockRecognizer(script []string, logger *zap.Logger) *MockRecognizer {
	if len(script) == 0 {
		script = []string{
			"Hello, can you hear me?",
			"Tell me something interesting.",
			"Thanks, that is all for now.",
		}
	}
	return &MockRecognizer{logger: logger, script: script, delay: 2 * time.Second}
}

var _ repositories.SpeechRecognizer = (*MockRecognizer)(nil)

func (m *MockRecognizer) RequestAccess(ctx context.Context) error { return nil }

func (m *MockRecognizer) Listen(ctx context.Context, config repositories.RecognitionConfig) (repositories.RecognitionStream, error) {
	m.mu.Lock()
	transcript := m.script[m.next%len(m.script)]
	m.next++
	m.mu.Unlock()

	m.logger.Info("Mock recognition pass", zap.String("transcript", transcript))
	return &mockStream{
		transcript: transcript,
		delay:      m.delay,
		stop:       make(chan struct{}),
	}, nil
}

type mockStream struct {
	transcript string
	delay      time.Duration

	once sync.Once
	stop chan struct{}
	done bool
}

func (s *mockStream) Recv() (repositories.RecognitionBatch, error) {
	if s.done {
		return repositories.RecognitionBatch{}, repositories.ErrRecognitionAborted
	}
	select {
	case <-time.After(s.delay):
		s.done = true
		return repositories.RecognitionBatch{
			Results: []repositories.RecognitionResult{
				{Transcript: s.transcript, Final: true},
			},
		}, nil
	case <-s.stop:
		return repositories.RecognitionBatch{}, repositories.ErrRecognitionAborted
	}
}

func (s *mockStream) Stop() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

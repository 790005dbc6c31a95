package recognition

import (
	"errors"
	"sync"
)

// ErrSourceClosed is returned by ReadFrame after Close.
var ErrSourceClosed = errors.New("audio source closed")

// AudioSource supplies raw audio frames to a recognition pass. The
// websocket layer implements it over binary client messages.
type AudioSource interface {
	// ReadFrame blocks until the next frame. Returns ErrSourceClosed
	// once the source is exhausted.
	ReadFrame() ([]byte, error)
	Close() error
}

// AudioSourceFactory opens a fresh source for each recognition pass.
type AudioSourceFactory func() (AudioSource, error)

// FrameBuffer is a channel-backed AudioSource. Producers push frames
// with Write; the recognizer drains them with ReadFrame.
type FrameBuffer struct {
	frames chan []byte

	mu     sync.Mutex
	closed bool
}

func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = 32
	}
	return &FrameBuffer{frames: make(chan []byte, capacity)}
}

// Write queues one frame. Frames arriving after Close, or while the
// buffer is full, are dropped; live audio has no use for backpressure.
func (b *FrameBuffer) Write(frame []byte) {
	if len(frame) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.frames <- frame:
	default:
	}
}

func (b *FrameBuffer) ReadFrame() ([]byte, error) {
	frame, ok := <-b.frames
	if !ok {
		return nil, ErrSourceClosed
	}
	return frame, nil
}

func (b *FrameBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.frames)
	}
	return nil
}

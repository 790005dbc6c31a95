package recognition

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/elaralearn/voicelab/server/domain/repositories"
)

func TestFrameBufferDeliversFramesInOrder(t *testing.T) {
	buf := NewFrameBuffer(4)
	buf.Write([]byte{1})
	buf.Write([]byte{2})

	first, err := buf.ReadFrame()
	if err != nil || first[0] != 1 {
		t.Fatalf("Wrong first frame: %v %v", first, err)
	}
	second, err := buf.ReadFrame()
	if err != nil || second[0] != 2 {
		t.Fatalf("Wrong second frame: %v %v", second, err)
	}
}

func TestFrameBufferCloseEndsReads(t *testing.T) {
	buf := NewFrameBuffer(4)
	buf.Write([]byte{1})
	buf.Close()

	if _, err := buf.ReadFrame(); err != nil {
		t.Fatalf("Queued frame must survive close: %v", err)
	}
	if _, err := buf.ReadFrame(); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("Expected ErrSourceClosed, got %v", err)
	}

	// Writes after close are dropped, and double close is safe.
	buf.Write([]byte{9})
	buf.Close()
}

func TestFrameBufferDropsWhenFull(t *testing.T) {
	buf := NewFrameBuffer(1)
	buf.Write([]byte{1})
	buf.Write([]byte{2}) // dropped, not blocked

	frame, _ := buf.ReadFrame()
	if frame[0] != 1 {
		t.Fatalf("Wrong surviving frame: %v", frame)
	}
}

func TestMockRecognizerEmitsScriptInOrder(t *testing.T) {
	mock := NewMockRecognizer([]string{"first", "second"}, zap.NewNop())
	mock.delay = time.Millisecond

	for _, want := range []string{"first", "second", "first"} {
		stream, err := mock.Listen(context.Background(), repositories.RecognitionConfig{})
		if err != nil {
			t.Fatalf("Listen failed: %v", err)
		}
		batch, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		text, ok := batch.FinalTranscript()
		if !ok || text != want {
			t.Errorf("Expected %q, got %q", want, text)
		}
		stream.Stop()
	}
}

func TestMockStreamStopAbortsRecv(t *testing.T) {
	mock := NewMockRecognizer([]string{"never delivered"}, zap.NewNop())
	stream, err := mock.Listen(context.Background(), repositories.RecognitionConfig{})
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	errs := make(chan error, 1)
	go func() {
		_, err := stream.Recv()
		errs <- err
	}()
	stream.Stop()

	select {
	case err := <-errs:
		if !errors.Is(err, repositories.ErrRecognitionAborted) {
			t.Errorf("Expected aborted error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Stop")
	}
}

func TestAudioEncodingMapping(t *testing.T) {
	for _, name := range []string{"LINEAR16", "WAV", "FLAC", "MULAW", "OGG_OPUS", "WEBM_OPUS"} {
		if _, err := audioEncoding(name); err != nil {
			t.Errorf("Encoding %s must be supported: %v", name, err)
		}
	}
	if _, err := audioEncoding("MP9"); err == nil {
		t.Error("Unknown encoding must be rejected")
	}
}

func TestClassifyErrorTaxonomy(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{io.EOF, repositories.ErrRecognitionAborted},
		{status.Error(codes.PermissionDenied, "no scope"), repositories.ErrPermissionDenied},
		{status.Error(codes.Unauthenticated, "bad creds"), repositories.ErrPermissionDenied},
		{status.Error(codes.Unimplemented, "no api"), repositories.ErrRecognitionUnsupported},
		{status.Error(codes.Canceled, "gone"), repositories.ErrRecognitionAborted},
		{status.Error(codes.OutOfRange, "silence too long"), repositories.ErrNoSpeech},
	}
	for _, tc := range cases {
		if got := classifyError(tc.in); !errors.Is(got, tc.want) {
			t.Errorf("classifyError(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	opaque := errors.New("socket reset")
	if got := classifyError(opaque); !errors.Is(got, opaque) {
		t.Errorf("Opaque errors must pass through, got %v", got)
	}
}

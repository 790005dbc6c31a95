package recognition

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/elaralearn/voicelab/server/domain/repositories"
)

// GoogleRecognizer implements SpeechRecognizer on the Google Cloud
// Speech-to-Text streaming API. Audio comes from the injected source
// factory; each Listen call opens a fresh gRPC stream and a fresh
// source.
type GoogleRecognizer struct {
	newSource AudioSourceFactory
	logger    *zap.Logger
}

func NewGoogleRecognizer(newSource AudioSourceFactory, logger *zap.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{newSource: newSource, logger: logger}
}

var _ repositories.SpeechRecognizer = (*GoogleRecognizer)(nil)

// RequestAccess verifies that a Speech client can be built with the
// ambient credentials. Failures map onto the capability errors the
// session controller understands.
func (g *GoogleRecognizer) RequestAccess(ctx context.Context) error {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return classifyError(err)
	}
	return client.Close()
}

func (g *GoogleRecognizer) Listen(ctx context.Context, config repositories.RecognitionConfig) (repositories.RecognitionStream, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, classifyError(err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, classifyError(err)
	}

	encoding, err := audioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    config.Language,
				},
				InterimResults:  config.InterimResults,
				SingleUtterance: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, classifyError(err)
	}

	source, err := g.newSource()
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to open audio source: %w", err)
	}

	pass := &googleStream{
		client: client,
		stream: stream,
		source: source,
		logger: g.logger,
	}
	go pass.pumpAudio()
	return pass, nil
}

type googleStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	source AudioSource
	logger *zap.Logger

	mu      sync.Mutex
	stopped bool
}

// pumpAudio forwards source frames to the gRPC stream until the
// source drains, then half-closes so Google flushes its final result.
func (s *googleStream) pumpAudio() {
	for {
		frame, err := s.source.ReadFrame()
		if err != nil {
			break
		}
		if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: frame,
			},
		}); err != nil {
			s.logger.Debug("Audio send failed, stopping pump", zap.Error(err))
			break
		}
	}
	if err := s.stream.CloseSend(); err != nil {
		s.logger.Debug("CloseSend failed", zap.Error(err))
	}
}

func (s *googleStream) Recv() (repositories.RecognitionBatch, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return repositories.RecognitionBatch{}, repositories.ErrRecognitionAborted
		}
		return repositories.RecognitionBatch{}, classifyError(err)
	}

	var batch repositories.RecognitionBatch
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		batch.Results = append(batch.Results, repositories.RecognitionResult{
			Transcript: result.Alternatives[0].Transcript,
			Final:      result.IsFinal,
		})
	}
	return batch, nil
}

func (s *googleStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	// Draining the source ends the pump, which half-closes the gRPC
	// stream; the server then terminates the pass.
	err := s.source.Close()
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// classifyError maps transport errors onto the recognizer taxonomy.
func classifyError(err error) error {
	if err == io.EOF {
		return repositories.ErrRecognitionAborted
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", repositories.ErrPermissionDenied, err)
	case codes.Unimplemented:
		return fmt.Errorf("%w: %v", repositories.ErrRecognitionUnsupported, err)
	case codes.Canceled, codes.Aborted:
		return fmt.Errorf("%w: %v", repositories.ErrRecognitionAborted, err)
	case codes.OutOfRange:
		// Google ends very long silent passes with OUT_OF_RANGE.
		return fmt.Errorf("%w: %v", repositories.ErrNoSpeech, err)
	default:
		return err
	}
}

func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}

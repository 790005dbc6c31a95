package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/repositories"
)

// VoicePreference drives synthesis voice selection: an exact
// language+vendor match wins, then the named fallbacks in order, then
// the environment's default voice, then whatever is first.
type VoicePreference struct {
	Language  string
	Vendor    string
	Fallbacks []string
}

// DefaultVoicePreference matches the platform's fixed locale.
var DefaultVoicePreference = VoicePreference{
	Language:  "en-US",
	Vendor:    "Google",
	Fallbacks: []string{"Google US English", "Samantha", "Microsoft Zira"},
}

// utteranceRun tracks one Speak invocation. The done flag guarantees
// the completion signal fires exactly once even when an interrupt
// races the natural end of the last segment.
type utteranceRun struct {
	cancel     context.CancelFunc
	onComplete func(interrupted bool)
	done       bool
}

// SpeechOutputChannel drives the synthesizer through a queue of
// prosody-planned segments. Segments play strictly in order; playback
// of segment i+1 begins only after segment i completes.
type SpeechOutputChannel struct {
	synth      repositories.SpeechSynthesizer
	preference VoicePreference
	logger     *zap.Logger

	onStarted func()

	mu      sync.Mutex
	current *utteranceRun
	paused  bool
}

// NewSpeechOutputChannel creates a speech output channel.
func NewSpeechOutputChannel(synth repositories.SpeechSynthesizer, preference VoicePreference, logger *zap.Logger) *SpeechOutputChannel {
	return &SpeechOutputChannel{
		synth:      synth,
		preference: preference,
		logger:     logger,
	}
}

// SetSpeakingStarted registers the signal fired when the first segment
// starts playing. The caller uses it to ensure speech input is
// stopped before any audio plays.
func (c *SpeechOutputChannel) SetSpeakingStarted(fn func()) {
	c.onStarted = fn
}

// Playing reports whether an utterance is currently in flight.
func (c *SpeechOutputChannel) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Speak plans text into segments and plays them sequentially,
// invoking onComplete exactly once when the utterance finishes or is
// interrupted. Empty text or an unavailable synthesizer completes
// synchronously as not-interrupted, without a speaking-began signal.
func (c *SpeechOutputChannel) Speak(ctx context.Context, text string, onComplete func(interrupted bool)) {
	segments := PlanUtterance(text)
	if len(segments) == 0 {
		onComplete(false)
		return
	}

	voice, err := c.selectVoice(ctx)
	if err != nil {
		c.logger.Warn("No synthesis voice available, skipping utterance", zap.Error(err))
		onComplete(false)
		return
	}

	c.mu.Lock()
	if stale := c.interruptLocked(); stale != nil {
		c.logger.Warn("Speak called while an utterance is in flight, interrupting it")
		go stale.onComplete(true)
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &utteranceRun{cancel: cancel, onComplete: onComplete}
	c.current = run
	c.paused = false
	c.mu.Unlock()

	go c.play(runCtx, run, voice, segments)
}

// play walks the segment queue in order, awaiting each segment's
// completion before starting the next.
func (c *SpeechOutputChannel) play(ctx context.Context, run *utteranceRun, voice repositories.Voice, segments []Segment) {
	for _, segment := range segments {
		// A dead context still falls through to the completion
		// bookkeeping below; only an interrupt may skip it.
		if ctx.Err() != nil {
			break
		}
		if segment.First && c.onStarted != nil {
			c.onStarted()
		}

		err := c.synth.Speak(ctx, repositories.Utterance{
			Text:  segment.Text,
			Voice: voice,
			Rate:  segment.Rate,
			Pitch: segment.Pitch,
		})
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("Segment playback failed", zap.String("text", segment.Text), zap.Error(err))
			}
			break
		}
	}

	c.mu.Lock()
	if run.done {
		// An interrupt already delivered the completion signal.
		c.mu.Unlock()
		return
	}
	run.done = true
	c.current = nil
	c.paused = false
	c.mu.Unlock()

	run.onComplete(false)
}

// Interrupt cancels all queued and playing segments immediately and
// reports the utterance as completed-interrupted. Idempotent: with
// nothing in flight it is a no-op, and a second call cannot produce a
// second signal.
func (c *SpeechOutputChannel) Interrupt() {
	c.mu.Lock()
	run := c.interruptLocked()
	c.mu.Unlock()

	if run != nil {
		run.onComplete(true)
	}
}

func (c *SpeechOutputChannel) interruptLocked() *utteranceRun {
	run := c.current
	if run == nil || run.done {
		return nil
	}
	run.done = true
	run.cancel()
	c.current = nil
	c.paused = false
	return run
}

// Pause suspends the playback device. Valid only while a segment is
// actively playing; the segment queue is preserved.
func (c *SpeechOutputChannel) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.paused {
		return
	}
	c.paused = true
	c.synth.Pause()
}

// Resume continues paused playback.
func (c *SpeechOutputChannel) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.paused {
		return
	}
	c.paused = false
	c.synth.Resume()
}

// selectVoice picks a synthesis voice per the channel's preference.
func (c *SpeechOutputChannel) selectVoice(ctx context.Context) (repositories.Voice, error) {
	voices, err := c.synth.Voices(ctx)
	if err != nil {
		return repositories.Voice{}, err
	}
	if len(voices) == 0 {
		return repositories.Voice{}, repositories.ErrSynthesisUnavailable
	}

	for _, v := range voices {
		if v.Language == c.preference.Language && v.Vendor == c.preference.Vendor {
			return v, nil
		}
	}
	for _, name := range c.preference.Fallbacks {
		for _, v := range voices {
			if v.Name == name {
				return v, nil
			}
		}
	}
	for _, v := range voices {
		if v.Default {
			return v, nil
		}
	}
	return voices[0], nil
}

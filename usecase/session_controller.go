package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
)

const (
	welcomeText          = "Hello! I'm your voice assistant. How can I help you today?"
	conversationEndedMsg = "Conversation ended"

	statusListening = "Listening..."
	statusThinking  = "Thinking..."
	statusSpeaking  = "Speaking..."
	statusEnded     = "Conversation ended."
	statusNoMic     = "Microphone permission denied."
	statusNoSpeech  = "Speech recognition is not supported in this environment."

	// DefaultSettleDelay is how long the controller waits after its own
	// audio output finishes before reopening the microphone, so the
	// tail of the device's playback is not captured as user speech.
	DefaultSettleDelay = 700 * time.Millisecond
)

// ErrSessionActive is returned by Start when a conversation is
// already in progress.
var ErrSessionActive = errors.New("session already active")

// StatusSink receives user-visible session events. The websocket hub
// implements it to stream the conversation to observing UIs.
type StatusSink interface {
	SessionStatus(state entities.SessionState, status string)
	MessageAppended(msg entities.Message)
	SpeakingStarted()
	SpeakingEnded(interrupted bool)
}

type nopSink struct{}

func (nopSink) SessionStatus(entities.SessionState, string) {}
func (nopSink) MessageAppended(entities.Message)            {}
func (nopSink) SpeakingStarted()                            {}
func (nopSink) SpeakingEnded(bool)                          {}

// SessionController owns the conversation lifecycle. It is the only
// component that starts or stops the two speech channels, which is
// what enforces the half-duplex invariant: input and output are never
// both in an active-producing state.
type SessionController struct {
	session     *entities.Session
	input       *SpeechInputChannel
	output      *SpeechOutputChannel
	recognizer  repositories.SpeechRecognizer
	processor   *TranscriptProcessor
	store       repositories.ConversationStore
	query       repositories.QueryService
	sink        StatusSink
	logger      *zap.Logger
	settleDelay time.Duration

	mu      sync.Mutex
	log     []entities.Message
	history []entities.HistoryEntry
	// gen invalidates settle timers and in-flight turns after any
	// interrupt or stop.
	gen int
}

// NewSessionController wires the channels, processor and store into a
// controller. The channels' callbacks are registered here so all state
// transitions funnel through the controller.
func NewSessionController(
	session *entities.Session,
	input *SpeechInputChannel,
	output *SpeechOutputChannel,
	recognizer repositories.SpeechRecognizer,
	processor *TranscriptProcessor,
	store repositories.ConversationStore,
	query repositories.QueryService,
	sink StatusSink,
	logger *zap.Logger,
) *SessionController {
	if sink == nil {
		sink = nopSink{}
	}
	c := &SessionController{
		session:     session,
		input:       input,
		output:      output,
		recognizer:  recognizer,
		processor:   processor,
		store:       store,
		query:       query,
		sink:        sink,
		logger:      logger,
		settleDelay: DefaultSettleDelay,
	}

	input.SetFinalHandler(c.HandleFinalTranscript)
	input.SetFatalErrorHandler(c.handleInputFatal)
	output.SetSpeakingStarted(c.handleSpeakingStarted)

	return c
}

// SetSettleDelay overrides the post-utterance microphone delay.
func (c *SessionController) SetSettleDelay(d time.Duration) {
	c.settleDelay = d
}

// State returns the current session state.
func (c *SessionController) State() entities.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// LastStatus returns the most recent status line.
func (c *SessionController) LastStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.LastStatus
}

// Log returns a copy of the conversation log.
func (c *SessionController) Log() []entities.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entities.Message, len(c.log))
	copy(out, c.log)
	return out
}

// History returns a copy of the query-facing history.
func (c *SessionController) History() []entities.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entities.HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// Start begins a conversation: acquires the microphone, restores
// persisted state, appends the welcome message and speaks it. The
// session stays idle when the capability is missing or permission is
// refused.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.session.Active() {
		c.mu.Unlock()
		return ErrSessionActive
	}

	if err := c.recognizer.RequestAccess(ctx); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRecognitionUnsupported):
			c.setStatusLocked(statusNoSpeech)
		case errors.Is(err, repositories.ErrPermissionDenied):
			c.setStatusLocked(statusNoMic)
		}
		c.mu.Unlock()
		c.logger.Warn("Cannot start voice session", zap.Error(err))
		return err
	}

	log, history, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("Failed to restore conversation, starting empty", zap.Error(err))
		log, history = nil, nil
	}
	c.log = log
	c.history = history

	if err := c.session.TransitionTo(entities.SessionStarting); err != nil {
		c.mu.Unlock()
		return err
	}
	welcome := entities.NewMessage(entities.RoleAssistant, welcomeText)
	c.appendMessageLocked(ctx, welcome)
	c.setStatusLocked(statusSpeaking)
	c.mu.Unlock()

	c.logger.Info("Voice session started", zap.Int("restored_messages", len(log)))
	// The welcome outlives the caller's context: Start is invoked from
	// an HTTP handler whose context dies when the response is written.
	c.output.Speak(context.Background(), welcomeText, c.handleSpeechCompleted)
	return nil
}

// HandleFinalTranscript receives a finalized user transcript. It is
// ignored unless the session is listening and the text is non-blank.
func (c *SessionController) HandleFinalTranscript(text string) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if c.session.State != entities.SessionListening || text == "" {
		c.mu.Unlock()
		return
	}

	userMsg := entities.NewMessage(entities.RoleUser, text)
	c.appendMessageLocked(context.Background(), userMsg)

	if err := c.session.TransitionTo(entities.SessionProcessing); err != nil {
		c.mu.Unlock()
		c.logger.Error("Transcript transition failed", zap.Error(err))
		return
	}
	c.setStatusLocked(statusThinking)
	gen := c.gen
	history := make([]entities.HistoryEntry, len(c.history))
	copy(history, c.history)
	c.mu.Unlock()

	// Defensive: the recognizer stops itself on a final result, but
	// the half-duplex invariant must not depend on that.
	c.input.Stop()

	go c.runTurn(text, history, gen)
}

// runTurn performs the network half of one turn off the control path.
func (c *SessionController) runTurn(text string, history []entities.HistoryEntry, gen int) {
	result := c.processor.Process(context.Background(), text, history)

	c.mu.Lock()
	if c.session.State != entities.SessionProcessing || c.gen != gen {
		// The session was stopped while the query was in flight.
		c.mu.Unlock()
		return
	}

	var msg entities.Message
	if result.Err != nil {
		msg = entities.NewMessage(entities.RoleSystem, result.SpokenText)
	} else {
		msg = entities.NewMessage(entities.RoleAssistant, result.SpokenText)
		msg.CodeBlock = result.CodeBlock
		msg.CodeExplanation = result.CodeExplanation
		c.adoptHistoryLocked(result)
	}
	c.appendMessageLocked(context.Background(), msg)

	if err := c.session.TransitionTo(entities.SessionSpeaking); err != nil {
		c.mu.Unlock()
		c.logger.Error("Reply transition failed", zap.Error(err))
		return
	}
	c.setStatusLocked(statusSpeaking)
	c.mu.Unlock()

	c.output.Speak(context.Background(), result.SpokenText, c.handleSpeechCompleted)
}

// adoptHistoryLocked persists the turn's history outcome: appending
// the user/model pair, or replacing wholesale when the service
// returned an authoritative history.
func (c *SessionController) adoptHistoryLocked(result TranscriptResult) {
	ctx := context.Background()
	if result.Replaced {
		c.history = result.History
		if err := c.store.ReplaceHistory(ctx, result.History); err != nil {
			c.logger.Error("Failed to persist replaced history", zap.Error(err))
		}
		return
	}
	for _, entry := range result.History[len(c.history):] {
		if err := c.store.AppendHistory(ctx, entry); err != nil {
			c.logger.Error("Failed to persist history entry", zap.Error(err))
		}
	}
	c.history = result.History
}

// handleSpeechCompleted is the single completion handler for every
// utterance. After a natural completion the microphone reopens once
// the settle delay elapses; after an interruption the interrupting
// action owns the restart decision.
func (c *SessionController) handleSpeechCompleted(interrupted bool) {
	c.mu.Lock()
	if c.session.State == entities.SessionEnded || !c.session.Active() {
		c.mu.Unlock()
		return
	}
	if err := c.session.TransitionTo(entities.SessionListening); err != nil {
		c.mu.Unlock()
		c.logger.Error("Completion transition failed", zap.Error(err))
		return
	}
	c.setStatusLocked(statusListening)
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.sink.SpeakingEnded(interrupted)

	if interrupted {
		return
	}
	time.AfterFunc(c.settleDelay, func() {
		c.mu.Lock()
		stale := c.gen != gen || c.session.State != entities.SessionListening
		c.mu.Unlock()
		if stale {
			return
		}
		if err := c.input.Start(context.Background()); err != nil {
			c.logger.Error("Failed to start listening", zap.Error(err))
		}
	})
}

// handleSpeakingStarted fires when the first segment starts playing.
func (c *SessionController) handleSpeakingStarted() {
	c.input.Stop()
	c.sink.SpeakingStarted()
}

// StartListening reopens the microphone after a barge-in. Valid only
// while the session is listening with the input channel idle.
func (c *SessionController) StartListening(ctx context.Context) error {
	c.mu.Lock()
	if c.session.State != entities.SessionListening {
		c.mu.Unlock()
		return entities.ErrInvalidTransition
	}
	c.mu.Unlock()
	return c.input.Start(ctx)
}

// Interrupt is the barge-in path: it cancels in-flight assistant
// speech and notifies the query service, but does not reopen the
// microphone; the interrupting action decides that separately.
func (c *SessionController) Interrupt(ctx context.Context) {
	c.mu.Lock()
	state := c.session.State
	if state != entities.SessionSpeaking && state != entities.SessionPaused {
		c.mu.Unlock()
		return
	}
	if state == entities.SessionPaused {
		// Cancelling paused speech runs through speaking first.
		if err := c.session.TransitionTo(entities.SessionSpeaking); err != nil {
			c.mu.Unlock()
			return
		}
		c.output.Resume()
	}
	c.mu.Unlock()

	c.output.Interrupt()

	go func() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.query.StopTalking(ctx); err != nil {
			c.logger.Warn("Stop-talking notification failed", zap.Error(err))
		}
	}()
}

// Pause suspends assistant speech. Valid only while speaking; the
// input channel is unaffected.
func (c *SessionController) Pause() error {
	c.mu.Lock()
	if err := c.session.TransitionTo(entities.SessionPaused); err != nil {
		c.mu.Unlock()
		return err
	}
	c.setStatusLocked("Paused")
	c.mu.Unlock()

	c.output.Pause()
	return nil
}

// Resume continues paused assistant speech.
func (c *SessionController) Resume() error {
	c.mu.Lock()
	if c.session.State != entities.SessionPaused {
		c.mu.Unlock()
		return entities.ErrInvalidTransition
	}
	if err := c.session.TransitionTo(entities.SessionSpeaking); err != nil {
		c.mu.Unlock()
		return err
	}
	c.setStatusLocked(statusSpeaking)
	c.mu.Unlock()

	c.output.Resume()
	return nil
}

// Stop ends the conversation from any active state: both channels
// stop, in-flight speech is cancelled, and a closing system message
// is appended.
func (c *SessionController) Stop() error {
	c.mu.Lock()
	if !c.session.Active() {
		c.mu.Unlock()
		return entities.ErrInvalidTransition
	}
	if err := c.session.TransitionTo(entities.SessionEnded); err != nil {
		c.mu.Unlock()
		return err
	}
	c.gen++
	c.appendMessageLocked(context.Background(), entities.NewMessage(entities.RoleSystem, conversationEndedMsg))
	c.setStatusLocked(statusEnded)
	c.mu.Unlock()

	c.input.Stop()
	c.output.Interrupt()

	c.logger.Info("Voice session ended")
	return nil
}

func (c *SessionController) handleInputFatal(err error) {
	c.mu.Lock()
	c.setStatusLocked(statusNoSpeech)
	c.mu.Unlock()
	c.logger.Error("Speech recognition unavailable", zap.Error(err))
}

// appendMessageLocked appends to the log and persists synchronously.
func (c *SessionController) appendMessageLocked(ctx context.Context, msg entities.Message) {
	c.log = append(c.log, msg)
	if err := c.store.AppendMessage(ctx, msg); err != nil {
		c.logger.Error("Failed to persist message", zap.String("id", msg.ID), zap.Error(err))
	}
	c.sink.MessageAppended(msg)
}

func (c *SessionController) setStatusLocked(status string) {
	c.session.SetStatus(status)
	c.sink.SessionStatus(c.session.State, status)
}

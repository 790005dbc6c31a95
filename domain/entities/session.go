package entities

import "errors"

// SessionState is the current phase of the turn-taking loop.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionStarting   SessionState = "starting"
	SessionListening  SessionState = "listening"
	SessionProcessing SessionState = "processing"
	SessionSpeaking   SessionState = "speaking"
	SessionPaused     SessionState = "paused"
	SessionEnded      SessionState = "ended"
)

// ErrInvalidTransition is returned when a session transition violates
// the turn-taking state machine.
var ErrInvalidTransition = errors.New("invalid session transition")

// Session holds the live conversation state. It is owned exclusively
// by the session controller; nothing else mutates it.
type Session struct {
	State      SessionState
	LastStatus string
}

// NewSession creates a session in the idle state.
func NewSession() *Session {
	return &Session{State: SessionIdle}
}

// Active reports whether a conversation is in progress.
func (s *Session) Active() bool {
	return s.State != SessionIdle && s.State != SessionEnded
}

// Paused reports whether assistant speech is currently paused.
func (s *Session) Paused() bool {
	return s.State == SessionPaused
}

// transitions lists the legal moves of the turn-taking machine. Ended
// is reachable from any active state and is handled separately.
var transitions = map[SessionState][]SessionState{
	SessionIdle:       {SessionStarting},
	SessionEnded:      {SessionStarting},
	SessionStarting:   {SessionListening},
	SessionListening:  {SessionProcessing},
	SessionProcessing: {SessionSpeaking, SessionListening},
	SessionSpeaking:   {SessionListening, SessionPaused},
	SessionPaused:     {SessionSpeaking},
}

// TransitionTo moves the session to the next state, rejecting moves
// the state machine does not allow.
func (s *Session) TransitionTo(next SessionState) error {
	if next == SessionEnded {
		if !s.Active() {
			return ErrInvalidTransition
		}
		s.State = SessionEnded
		return nil
	}
	for _, allowed := range transitions[s.State] {
		if allowed == next {
			s.State = next
			return nil
		}
	}
	return ErrInvalidTransition
}

// SetStatus records the most recent user-visible status line.
func (s *Session) SetStatus(status string) {
	s.LastStatus = status
}

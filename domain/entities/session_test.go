package entities

import (
	"testing"
)

func TestNewSessionStartsIdle(t *testing.T) {
	session := NewSession()

	if session.State != SessionIdle {
		t.Errorf("Expected state %s, got %s", SessionIdle, session.State)
	}
	if session.Active() {
		t.Error("Idle session should not be active")
	}
	if session.Paused() {
		t.Error("Idle session should not be paused")
	}
}

func TestTurnTakingLoop(t *testing.T) {
	session := NewSession()

	steps := []SessionState{
		SessionStarting,
		SessionListening,
		SessionProcessing,
		SessionSpeaking,
		SessionListening,
		SessionProcessing,
		SessionSpeaking,
	}
	for _, next := range steps {
		if err := session.TransitionTo(next); err != nil {
			t.Fatalf("Transition to %s failed: %v", next, err)
		}
	}

	if !session.Active() {
		t.Error("Session in the loop should be active")
	}
}

func TestPausedOnlyFromSpeaking(t *testing.T) {
	session := NewSession()
	if err := session.TransitionTo(SessionStarting); err != nil {
		t.Fatal(err)
	}
	if err := session.TransitionTo(SessionListening); err != nil {
		t.Fatal(err)
	}

	// Listening cannot pause
	if err := session.TransitionTo(SessionPaused); err == nil {
		t.Error("Expected pause from listening to be rejected")
	}

	if err := session.TransitionTo(SessionProcessing); err != nil {
		t.Fatal(err)
	}
	if err := session.TransitionTo(SessionSpeaking); err != nil {
		t.Fatal(err)
	}
	if err := session.TransitionTo(SessionPaused); err != nil {
		t.Errorf("Expected pause from speaking to be allowed, got %v", err)
	}
	if !session.Paused() {
		t.Error("Session should report paused")
	}
	if err := session.TransitionTo(SessionSpeaking); err != nil {
		t.Errorf("Expected resume to speaking to be allowed, got %v", err)
	}
}

func TestEndedReachableFromAnyActiveState(t *testing.T) {
	for _, state := range []SessionState{
		SessionStarting, SessionListening, SessionProcessing, SessionSpeaking, SessionPaused,
	} {
		session := &Session{State: state}
		if err := session.TransitionTo(SessionEnded); err != nil {
			t.Errorf("Expected ended to be reachable from %s, got %v", state, err)
		}
	}

	idle := NewSession()
	if err := idle.TransitionTo(SessionEnded); err == nil {
		t.Error("Expected ended to be unreachable from idle")
	}
}

func TestSessionRestartableAfterEnd(t *testing.T) {
	session := &Session{State: SessionEnded}
	if err := session.TransitionTo(SessionStarting); err != nil {
		t.Errorf("Expected restart from ended to be allowed, got %v", err)
	}
}

func TestMessageValidation(t *testing.T) {
	msg := NewMessage(RoleUser, "Hello")
	if err := msg.Validate(); err != nil {
		t.Errorf("Valid message should not have validation errors, got: %v", err)
	}
	if msg.ID == "" {
		t.Error("Expected message ID to be assigned")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Expected message timestamp to be set")
	}

	msg.Text = "   "
	if err := msg.Validate(); err == nil {
		t.Error("Blank message should have validation error")
	}

	msg.Text = "hi"
	msg.Role = Role("doll")
	if err := msg.Validate(); err == nil {
		t.Error("Unknown role should have validation error")
	}
}

func TestHistoryEntry(t *testing.T) {
	entry := NewHistoryEntry(HistoryRoleUser, "Hello")
	if err := entry.Validate(); err != nil {
		t.Errorf("Valid entry should not have validation errors, got: %v", err)
	}
	if entry.Text() != "Hello" {
		t.Errorf("Expected text Hello, got %s", entry.Text())
	}

	entry.Role = "assistant"
	if err := entry.Validate(); err == nil {
		t.Error("Entry with non-wire role should have validation error")
	}

	entry = HistoryEntry{Role: HistoryRoleModel}
	if err := entry.Validate(); err == nil {
		t.Error("Entry without parts should have validation error")
	}
}

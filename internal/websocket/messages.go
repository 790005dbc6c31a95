package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/elaralearn/voicelab/server/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Outbound event types streamed to observing clients.
const (
	MessageTypeSessionStatus MessageType = "session_status"
	MessageTypeMessage       MessageType = "message"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypeError         MessageType = "error"
)

// Inbound command types from clients.
const (
	CommandStartSession   = "start_session"
	CommandStopSession    = "stop_session"
	CommandInterrupt      = "interrupt"
	CommandPause          = "pause"
	CommandResume         = "resume"
	CommandStartListening = "start_listening"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// SessionStatusMessage announces a state transition with its
// user-visible status line.
type SessionStatusMessage struct {
	BaseMessage
	State  entities.SessionState `json:"state"`
	Status string                `json:"status"`
}

// ConversationMessage carries one appended conversation log entry.
type ConversationMessage struct {
	BaseMessage
	Message entities.Message `json:"message"`
}

// SpeakingStartMessage announces that assistant playback began.
type SpeakingStartMessage struct {
	BaseMessage
}

// SpeakingEndMessage announces that assistant playback finished.
type SpeakingEndMessage struct {
	BaseMessage
	Interrupted bool `json:"interrupted"`
}

// ErrorMessage reports a rejected command back to its sender.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// CommandMessage is the envelope for inbound client commands.
type CommandMessage struct {
	Type string `json:"type"`
}

// ParseCommand decodes a client control message.
func ParseCommand(payload []byte) (string, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return "", fmt.Errorf("invalid JSON format: %w", err)
	}
	switch cmd.Type {
	case CommandStartSession, CommandStopSession, CommandInterrupt,
		CommandPause, CommandResume, CommandStartListening:
		return cmd.Type, nil
	default:
		return "", fmt.Errorf("unsupported command type: %s", cmd.Type)
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

// NewSessionStatusMessage creates a session status event.
func NewSessionStatusMessage(state entities.SessionState, status string) *SessionStatusMessage {
	return &SessionStatusMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSessionStatus, Timestamp: now()},
		State:       state,
		Status:      status,
	}
}

// NewConversationMessage creates a log-append event.
func NewConversationMessage(msg entities.Message) *ConversationMessage {
	return &ConversationMessage{
		BaseMessage: BaseMessage{Type: MessageTypeMessage, Timestamp: now()},
		Message:     msg,
	}
}

// NewSpeakingStartMessage creates a playback-start event.
func NewSpeakingStartMessage() *SpeakingStartMessage {
	return &SpeakingStartMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSpeakingStart, Timestamp: now()},
	}
}

// NewSpeakingEndMessage creates a playback-end event.
func NewSpeakingEndMessage(interrupted bool) *SpeakingEndMessage {
	return &SpeakingEndMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSpeakingEnd, Timestamp: now()},
		Interrupted: interrupted,
	}
}

// NewErrorMessage creates a standardized error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeError, Timestamp: now()},
		Code:        code,
		Message:     message,
	}
}

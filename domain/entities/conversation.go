package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in the conversation log. Messages are
// append-only: once created they are never mutated.
type Message struct {
	ID              string    `json:"id" bson:"_id"`
	Role            Role      `json:"role" bson:"role"`
	Text            string    `json:"text" bson:"text"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
	CodeBlock       string    `json:"code_block,omitempty" bson:"code_block,omitempty"`
	CodeExplanation string    `json:"code_explanation,omitempty" bson:"code_explanation,omitempty"`
}

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Validate validates the message data.
func (m Message) Validate() error {
	if m.ID == "" {
		return errors.New("message id is required")
	}
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return errors.New("invalid message role")
	}
	if strings.TrimSpace(m.Text) == "" {
		return errors.New("message text is required")
	}
	return nil
}

// History roles match the wire format of the query service.
const (
	HistoryRoleUser  = "user"
	HistoryRoleModel = "model"
)

// HistoryEntry is one element of the context sent to the query
// service. The history list is append-only except when the service
// returns an authoritative history, which replaces the local copy
// wholesale.
type HistoryEntry struct {
	Role  string   `json:"role" bson:"role"`
	Parts []string `json:"parts" bson:"parts"`
}

// NewHistoryEntry builds a single-part history entry.
func NewHistoryEntry(role, text string) HistoryEntry {
	return HistoryEntry{Role: role, Parts: []string{text}}
}

// Text joins the entry's parts into one string.
func (e HistoryEntry) Text() string {
	return strings.Join(e.Parts, " ")
}

// Validate validates the history entry.
func (e HistoryEntry) Validate() error {
	if e.Role != HistoryRoleUser && e.Role != HistoryRoleModel {
		return errors.New("invalid history role")
	}
	if len(e.Parts) == 0 {
		return errors.New("history entry has no parts")
	}
	return nil
}

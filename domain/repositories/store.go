package repositories

import (
	"context"

	"github.com/elaralearn/voicelab/server/domain/entities"
)

// ConversationStore persists the message log and the query-facing
// history as two independently keyed collections so a reload resumes
// exactly where the user left off. Malformed or absent data loads as
// empty collections, never an error.
type ConversationStore interface {
	// Load restores both collections for the session key.
	Load(ctx context.Context) (log []entities.Message, history []entities.HistoryEntry, err error)
	// AppendMessage persists one message to the log.
	AppendMessage(ctx context.Context, msg entities.Message) error
	// AppendHistory persists one history entry.
	AppendHistory(ctx context.Context, entry entities.HistoryEntry) error
	// ReplaceHistory swaps in an authoritative history from the query
	// service, discarding the local copy.
	ReplaceHistory(ctx context.Context, history []entities.HistoryEntry) error
	// Reset clears both collections.
	Reset(ctx context.Context) error
}

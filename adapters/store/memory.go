package store

import (
	"context"
	"sync"

	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
)

// MemoryStore is an in-process ConversationStore used in development
// and tests. Data survives for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	log     []entities.Message
	history []entities.HistoryEntry
}

var _ repositories.ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements repositories.ConversationStore.
func (s *MemoryStore) Load(ctx context.Context) ([]entities.Message, []entities.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := make([]entities.Message, len(s.log))
	copy(log, s.log)
	history := make([]entities.HistoryEntry, len(s.history))
	copy(history, s.history)
	return log, history, nil
}

// AppendMessage implements repositories.ConversationStore.
func (s *MemoryStore) AppendMessage(ctx context.Context, msg entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, msg)
	return nil
}

// AppendHistory implements repositories.ConversationStore.
func (s *MemoryStore) AppendHistory(ctx context.Context, entry entities.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

// ReplaceHistory implements repositories.ConversationStore.
func (s *MemoryStore) ReplaceHistory(ctx context.Context, history []entities.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = make([]entities.HistoryEntry, len(history))
	copy(s.history, history)
	return nil
}

// Reset implements repositories.ConversationStore.
func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
	s.history = nil
	return nil
}

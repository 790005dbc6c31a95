package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/elaralearn/voicelab/server/domain/entities"
	"github.com/elaralearn/voicelab/server/domain/repositories"
)

const (
	logCollection     = "conversation_log"
	historyCollection = "api_history"
)

// MongoStore persists the conversation log and the query-facing
// history as two independently keyed collections, so a reload resumes
// exactly where the user left off.
type MongoStore struct {
	log        *mongo.Collection
	history    *mongo.Collection
	sessionKey string
	logger     *zap.Logger
}

var _ repositories.ConversationStore = (*MongoStore)(nil)

// messageDoc wraps a message with its session key and an insertion
// sequence used to restore order.
type messageDoc struct {
	SessionKey string           `bson:"session_key"`
	Seq        int64            `bson:"seq"`
	Message    entities.Message `bson:"message"`
}

type historyDoc struct {
	SessionKey string                `bson:"session_key"`
	Seq        int64                 `bson:"seq"`
	Entry      entities.HistoryEntry `bson:"entry"`
}

// NewMongoStore creates a store scoped to one session key.
func NewMongoStore(db *mongo.Database, sessionKey string, logger *zap.Logger) *MongoStore {
	return &MongoStore{
		log:        db.Collection(logCollection),
		history:    db.Collection(historyCollection),
		sessionKey: sessionKey,
		logger:     logger,
	}
}

// Load implements repositories.ConversationStore. Malformed documents
// are skipped rather than failing the load; an absent session yields
// empty collections.
func (s *MongoStore) Load(ctx context.Context) ([]entities.Message, []entities.HistoryEntry, error) {
	filter := bson.M{"session_key": s.sessionKey}
	opts := options.Find().SetSort(bson.M{"seq": 1})

	var log []entities.Message
	cursor, err := s.log.Find(ctx, filter, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversation log: %w", err)
	}
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			s.logger.Warn("Skipping malformed log document", zap.Error(err))
			continue
		}
		log = append(log, doc.Message)
	}
	if err := cursor.Close(ctx); err != nil {
		s.logger.Warn("Cursor close failed", zap.Error(err))
	}

	var history []entities.HistoryEntry
	cursor, err = s.history.Find(ctx, filter, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load api history: %w", err)
	}
	for cursor.Next(ctx) {
		var doc historyDoc
		if err := cursor.Decode(&doc); err != nil {
			s.logger.Warn("Skipping malformed history document", zap.Error(err))
			continue
		}
		history = append(history, doc.Entry)
	}
	if err := cursor.Close(ctx); err != nil {
		s.logger.Warn("Cursor close failed", zap.Error(err))
	}

	return log, history, nil
}

// AppendMessage implements repositories.ConversationStore.
func (s *MongoStore) AppendMessage(ctx context.Context, msg entities.Message) error {
	_, err := s.log.InsertOne(ctx, messageDoc{
		SessionKey: s.sessionKey,
		Seq:        time.Now().UnixNano(),
		Message:    msg,
	})
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// AppendHistory implements repositories.ConversationStore.
func (s *MongoStore) AppendHistory(ctx context.Context, entry entities.HistoryEntry) error {
	_, err := s.history.InsertOne(ctx, historyDoc{
		SessionKey: s.sessionKey,
		Seq:        time.Now().UnixNano(),
		Entry:      entry,
	})
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// ReplaceHistory implements repositories.ConversationStore. The
// authoritative history from the query service replaces the persisted
// copy wholesale.
func (s *MongoStore) ReplaceHistory(ctx context.Context, history []entities.HistoryEntry) error {
	filter := bson.M{"session_key": s.sessionKey}
	if _, err := s.history.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to clear api history: %w", err)
	}
	if len(history) == 0 {
		return nil
	}

	base := time.Now().UnixNano()
	docs := make([]interface{}, len(history))
	for i, entry := range history {
		docs[i] = historyDoc{
			SessionKey: s.sessionKey,
			Seq:        base + int64(i),
			Entry:      entry,
		}
	}
	if _, err := s.history.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to write api history: %w", err)
	}
	return nil
}

// Reset implements repositories.ConversationStore.
func (s *MongoStore) Reset(ctx context.Context) error {
	filter := bson.M{"session_key": s.sessionKey}
	var errs []error
	if _, err := s.log.DeleteMany(ctx, filter); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.history.DeleteMany(ctx, filter); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

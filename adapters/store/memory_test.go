package store

import (
	"context"
	"testing"

	"github.com/elaralearn/voicelab/server/domain/entities"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	messages := []entities.Message{
		entities.NewMessage(entities.RoleAssistant, "Welcome"),
		entities.NewMessage(entities.RoleUser, "Hello"),
		entities.NewMessage(entities.RoleAssistant, "Hi there!"),
	}
	for _, msg := range messages {
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
	}
	if err := s.AppendHistory(ctx, entities.NewHistoryEntry(entities.HistoryRoleUser, "Hello")); err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}
	if err := s.AppendHistory(ctx, entities.NewHistoryEntry(entities.HistoryRoleModel, "Hi there!")); err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	log, history, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(log) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(log))
	}
	for i, msg := range messages {
		if log[i].ID != msg.ID || log[i].Text != msg.Text {
			t.Errorf("Message %d does not round-trip: %+v vs %+v", i, log[i], msg)
		}
	}
	if len(history) != 2 || history[0].Role != entities.HistoryRoleUser || history[1].Role != entities.HistoryRoleModel {
		t.Errorf("History does not round-trip: %+v", history)
	}
}

func TestMemoryStoreLoadIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.AppendMessage(ctx, entities.NewMessage(entities.RoleUser, "original")); err != nil {
		t.Fatal(err)
	}

	log, _, _ := s.Load(ctx)
	log[0].Text = "mutated"

	reloaded, _, _ := s.Load(ctx)
	if reloaded[0].Text != "original" {
		t.Error("Load must return a copy, not the backing slice")
	}
}

func TestMemoryStoreReplaceHistory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.AppendHistory(ctx, entities.NewHistoryEntry(entities.HistoryRoleUser, "old"))

	replacement := []entities.HistoryEntry{
		entities.NewHistoryEntry(entities.HistoryRoleUser, "new user"),
		entities.NewHistoryEntry(entities.HistoryRoleModel, "new model"),
	}
	if err := s.ReplaceHistory(ctx, replacement); err != nil {
		t.Fatalf("ReplaceHistory failed: %v", err)
	}

	_, history, _ := s.Load(ctx)
	if len(history) != 2 || history[0].Text() != "new user" {
		t.Errorf("History not replaced: %+v", history)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.AppendMessage(ctx, entities.NewMessage(entities.RoleUser, "hi"))
	_ = s.AppendHistory(ctx, entities.NewHistoryEntry(entities.HistoryRoleUser, "hi"))

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	log, history, _ := s.Load(ctx)
	if len(log) != 0 || len(history) != 0 {
		t.Errorf("Expected empty collections after reset, got %d/%d", len(log), len(history))
	}
}

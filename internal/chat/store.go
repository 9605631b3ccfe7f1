// Package chat is the persistence boundary for the chat relay that shares
// the signaling transport. The relay persists a message before broadcasting
// it; what backs the store is someone else's concern.
package chat

import (
	"context"
	"sync"
	"time"
)

// Message is one persisted chat message.
type Message struct {
	RoomID string
	From   string
	Body   string
	SentAt time.Time
}

// Store persists chat messages.
type Store interface {
	Save(ctx context.Context, msg Message) error
}

// MemoryStore keeps messages in memory, newest last. Default store when no
// external persistence is wired in.
type MemoryStore struct {
	mu       sync.Mutex
	messages map[string][]Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string][]Message)}
}

func (s *MemoryStore) Save(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], msg)
	return nil
}

// History returns the stored messages for a room in arrival order.
func (s *MemoryStore) History(roomID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages[roomID]))
	copy(out, s.messages[roomID])
	return out
}

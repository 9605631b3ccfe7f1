// Package metadata tracks per-room participant counts on an external
// room-metadata record. The signaling core only mutates the counter; it does
// not own or validate the record.
package metadata

import (
	"context"
	"sync"
)

// Store mutates the participant counter for a room.
type Store interface {
	// Incr increments the room's participant count and returns the new value.
	Incr(ctx context.Context, roomID string) (int64, error)

	// Decr decrements the room's participant count and returns the new
	// value. The count never goes below zero.
	Decr(ctx context.Context, roomID string) (int64, error)
}

// MemoryStore is an in-process Store. It is the default when no external
// backend is configured, and what the tests use.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int64)}
}

func (s *MemoryStore) Incr(_ context.Context, roomID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[roomID]++
	return s.counts[roomID], nil
}

func (s *MemoryStore) Decr(_ context.Context, roomID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[roomID] > 0 {
		s.counts[roomID]--
	}
	n := s.counts[roomID]
	if n == 0 {
		delete(s.counts, roomID)
	}
	return n, nil
}

// Count returns the current participant count for a room.
func (s *MemoryStore) Count(roomID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[roomID]
}

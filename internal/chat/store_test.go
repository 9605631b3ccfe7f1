package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreKeepsArrivalOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.Save(ctx, Message{RoomID: "r1", From: "a", Body: "first", SentAt: now}))
	require.NoError(t, s.Save(ctx, Message{RoomID: "r1", From: "b", Body: "second", SentAt: now}))
	require.NoError(t, s.Save(ctx, Message{RoomID: "r2", From: "a", Body: "elsewhere", SentAt: now}))

	history := s.History("r1")
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Body)
	assert.Equal(t, "second", history[1].Body)
	assert.Len(t, s.History("r2"), 1)
	assert.Empty(t, s.History("r3"))
}

func TestHistoryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Save(ctx, Message{RoomID: "r1", From: "a", Body: "original"}))

	history := s.History("r1")
	history[0].Body = "mutated"

	assert.Equal(t, "original", s.History("r1")[0].Body)
}

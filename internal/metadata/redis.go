package metadata

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps participant counts in Redis so the webapp and other
// services can read room occupancy without talking to the relay.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to Redis using a URL of the form
// redis://[user:pass@]host:port/db.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func participantKey(roomID string) string {
	return "room:" + roomID + ":participants"
}

func (s *RedisStore) Incr(ctx context.Context, roomID string) (int64, error) {
	return s.rdb.Incr(ctx, participantKey(roomID)).Result()
}

// decrScript decrements without going below zero and deletes the key at
// zero, so abandoned rooms leave nothing behind.
var decrScript = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n <= 1 then
	redis.call("DEL", KEYS[1])
	return 0
end
return redis.call("DECR", KEYS[1])
`)

func (s *RedisStore) Decr(ctx context.Context, roomID string) (int64, error) {
	return decrScript.Run(ctx, s.rdb, []string{participantKey(roomID)}).Int64()
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

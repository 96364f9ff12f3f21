// Package presence remembers when users were last connected.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records last-seen timestamps. Online state itself lives in the realtime hub.
type Store interface {
	Touch(ctx context.Context, userID int, at time.Time) error
	LastSeen(ctx context.Context, userID int) (*time.Time, error)
}

const defaultTTL = 30 * 24 * time.Hour

// RedisStore keeps last-seen times as unix milliseconds under presence:last_seen:<id>.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, ttl: defaultTTL}, nil
}

func Key(userID int) string {
	return "presence:last_seen:" + strconv.Itoa(userID)
}

func (s *RedisStore) Touch(ctx context.Context, userID int, at time.Time) error {
	return s.client.Set(ctx, Key(userID), at.UnixMilli(), s.ttl).Err()
}

func (s *RedisStore) LastSeen(ctx context.Context, userID int) (*time.Time, error) {
	ms, err := s.client.Get(ctx, Key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// NewStore returns a redis-backed store, or a noop one when redis is not configured or unreachable.
func NewStore(ctx context.Context, addr, password string, db int) Store {
	if addr == "" {
		log.Printf("presence disabled, using noop: empty redis addr")
		return Noop{}
	}
	store, err := NewRedisStore(ctx, addr, password, db)
	if err != nil {
		log.Printf("presence disabled, using noop: %v", err)
		return Noop{}
	}
	log.Printf("presence connected redis=%s db=%d", addr, db)
	return store
}

// Noop forgets everything.
type Noop struct{}

func (Noop) Touch(context.Context, int, time.Time) error { return nil }

func (Noop) LastSeen(context.Context, int) (*time.Time, error) { return nil, nil }

// Package session provides Redis-backed cookie session storage. Sessions
// are keyed by the sha256 of the opaque cookie token; anonymous visitors
// get a session too so CSRF tokens and flash messages work before login.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"givinggrid/api/internal/util"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session token resolves to nothing,
// either because it never existed or because it expired.
var ErrNotFound = errors.New("session not found")

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"level"` // success, error, warning, info
	Message string `json:"message"`
}

// Record is the payload stored per session.
type Record struct {
	UserID    int64     `json:"user_id"` // 0 for anonymous sessions
	CSRFToken string    `json:"csrf_token"`
	Flashes   []Flash   `json:"flashes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore implements session storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "sess:", ttl: ttl}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "sess:", ttl: ttl}
}

// key generates the Redis key for a session token
func (s *RedisStore) key(token string) string {
	return s.prefix + util.HashToken(token)
}

// Create stores a fresh session record and returns the opaque token for
// the cookie. The record always carries a CSRF token.
func (s *RedisStore) Create(ctx context.Context, userID int64) (string, Record, error) {
	token := util.NewToken()
	rec := Record{
		UserID:    userID,
		CSRFToken: util.NewToken(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.write(ctx, token, rec); err != nil {
		return "", Record{}, err
	}
	return token, rec, nil
}

// Get retrieves a session record. A missing or expired session returns
// ErrNotFound; reads slide the TTL forward.
func (s *RedisStore) Get(ctx context.Context, token string) (Record, error) {
	jsonData, err := s.client.Get(ctx, s.key(token)).Result()
	if err == redis.Nil {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(jsonData), &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal session: %w", err)
	}

	_ = s.client.Expire(ctx, s.key(token), s.ttl).Err()
	return rec, nil
}

// Destroy deletes a session. Deleting an absent session is not an error.
func (s *RedisStore) Destroy(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// PushFlash appends a one-shot message to the session's flash queue.
func (s *RedisStore) PushFlash(ctx context.Context, token string, flash Flash) error {
	rec, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	rec.Flashes = append(rec.Flashes, flash)
	return s.write(ctx, token, rec)
}

// PopFlashes returns the pending flashes and clears the queue.
func (s *RedisStore) PopFlashes(ctx context.Context, token string) ([]Flash, error) {
	rec, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	flashes := rec.Flashes
	if len(flashes) == 0 {
		return nil, nil
	}
	rec.Flashes = nil
	if err := s.write(ctx, token, rec); err != nil {
		return nil, err
	}
	return flashes, nil
}

func (s *RedisStore) write(ctx context.Context, token string, rec Record) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

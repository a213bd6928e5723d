package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCreateAndGet(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()

	token, rec, err := store.Create(ctx, 42)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if token == "" {
		t.Fatal("empty session token")
	}
	if rec.CSRFToken == "" {
		t.Fatal("session created without CSRF token")
	}

	got, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != 42 {
		t.Errorf("expected user ID 42, got %d", got.UserID)
	}
	if got.CSRFToken != rec.CSRFToken {
		t.Error("CSRF token changed across Get")
	}
}

func TestGetExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()

	token, _, err := store.Create(ctx, 1)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Fast-forward past the TTL in miniredis
	s.FastForward(2 * time.Hour)

	_, err = store.Get(ctx, token)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
}

func TestGetNonExistentSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	_, err := store.Get(context.Background(), "non-existent-token")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDestroy(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()

	token, _, err := store.Create(ctx, 7)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.Get(ctx, token); err != nil {
		t.Fatalf("Get before destroy failed: %v", err)
	}

	if err := store.Destroy(ctx, token); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}

	if _, err := store.Get(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after destroy, got %v", err)
	}

	// Destroying again must not error
	if err := store.Destroy(ctx, token); err != nil {
		t.Errorf("Destroy of absent session failed: %v", err)
	}
}

func TestFlashQueueIsOneShot(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()

	token, _, err := store.Create(ctx, 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.PushFlash(ctx, token, Flash{Level: "success", Message: "Listing created."}); err != nil {
		t.Fatalf("PushFlash failed: %v", err)
	}
	if err := store.PushFlash(ctx, token, Flash{Level: "warning", Message: "Check your email."}); err != nil {
		t.Fatalf("PushFlash failed: %v", err)
	}

	flashes, err := store.PopFlashes(ctx, token)
	if err != nil {
		t.Fatalf("PopFlashes failed: %v", err)
	}
	if len(flashes) != 2 {
		t.Fatalf("expected 2 flashes, got %d", len(flashes))
	}
	if flashes[0].Level != "success" || flashes[1].Message != "Check your email." {
		t.Errorf("flashes out of order: %+v", flashes)
	}

	// Second pop must come back empty
	flashes, err = store.PopFlashes(ctx, token)
	if err != nil {
		t.Fatalf("second PopFlashes failed: %v", err)
	}
	if len(flashes) != 0 {
		t.Errorf("expected empty flash queue, got %d", len(flashes))
	}
}

func TestSessionIsolation(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()

	token1, _, err := store.Create(ctx, 1)
	if err != nil {
		t.Fatalf("Create session 1 failed: %v", err)
	}
	token2, _, err := store.Create(ctx, 2)
	if err != nil {
		t.Fatalf("Create session 2 failed: %v", err)
	}

	rec1, err := store.Get(ctx, token1)
	if err != nil {
		t.Fatalf("Get token1 failed: %v", err)
	}
	if rec1.UserID != 1 {
		t.Errorf("expected user 1, got %d", rec1.UserID)
	}

	if err := store.Destroy(ctx, token1); err != nil {
		t.Fatalf("Destroy token1 failed: %v", err)
	}

	rec2, err := store.Get(ctx, token2)
	if err != nil {
		t.Fatalf("Get token2 after destroy failed: %v", err)
	}
	if rec2.UserID != 2 {
		t.Errorf("expected user 2, got %d", rec2.UserID)
	}
}

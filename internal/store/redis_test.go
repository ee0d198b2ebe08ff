package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/eldtechnologies/whiteboard/internal/models"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisLatestSessionCache(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	if snap, err := s.GetLatestSession(ctx, "R"); err != nil || snap != nil {
		t.Fatalf("expected miss, got (%v, %v)", snap, err)
	}

	want := &models.Snapshot{
		ID:        7,
		RoomID:    "R",
		Data:      "data:image/png;base64,AAAA",
		Username:  strPtr("alice"),
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := s.SetLatestSession(ctx, want); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL(latestSessionKey("R")); ttl != latestSessionTTL {
		t.Fatalf("expected ttl %v, got %v", latestSessionTTL, ttl)
	}

	got, err := s.GetLatestSession(ctx, "R")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != want.ID || got.Data != want.Data || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if got.Username == nil || *got.Username != "alice" {
		t.Fatalf("expected attribution to survive, got %v", got.Username)
	}

	if err := s.InvalidateLatestSession(ctx, "R"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if snap, err := s.GetLatestSession(ctx, "R"); err != nil || snap != nil {
		t.Fatalf("expected miss after invalidation, got (%v, %v)", snap, err)
	}
}

func TestRedisCacheExpires(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()

	if err := s.SetLatestSession(ctx, &models.Snapshot{ID: 1, RoomID: "R", Data: "x"}); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(latestSessionTTL + time.Second)

	if snap, err := s.GetLatestSession(ctx, "R"); err != nil || snap != nil {
		t.Fatalf("expected expiry, got (%v, %v)", snap, err)
	}
}

func TestRedisCorruptEntry(t *testing.T) {
	s, mr := newTestRedis(t)
	if err := mr.Set(latestSessionKey("R"), "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetLatestSession(context.Background(), "R"); err == nil {
		t.Fatal("expected decode error for a corrupt entry")
	}
}

func TestRedisPingAndClient(t *testing.T) {
	s, _ := newTestRedis(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if s.Client() == nil {
		t.Fatal("expected underlying client")
	}
	var none *RedisStore
	if none.Client() != nil {
		t.Fatal("nil store must report a nil client")
	}
}

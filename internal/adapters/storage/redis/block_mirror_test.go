package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/drullandev/trust-engine/internal/core/domain"
)

func newTestMirror(t *testing.T) (*BlockMirror, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, ""), mr
}

func TestBlockMirror_PublishSetsExpiringKey(t *testing.T) {
	mirror, mr := newTestMirror(t)
	now := time.Now()
	mirror.now = func() time.Time { return now }
	ctx := context.Background()

	until := now.Add(30 * time.Second)
	if err := mirror.Publish(ctx, domain.BlockEvent{Identity: "10.0.0.1", Until: until}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if ttl := mr.TTL(DefaultPrefix + "10.0.0.1"); ttl != 30*time.Second {
		t.Fatalf("expected ttl matching remaining block time, got %v", ttl)
	}
	blocked, err := mirror.IsBlocked(ctx, "10.0.0.1")
	if err != nil || !blocked {
		t.Fatalf("expected mirrored block, blocked=%v err=%v", blocked, err)
	}
	got, ok, err := mirror.BlockedUntil(ctx, "10.0.0.1")
	if err != nil || !ok || !got.Equal(until) {
		t.Fatalf("expected until=%v, got %v ok=%v err=%v", until, got, ok, err)
	}

	mr.FastForward(31 * time.Second)
	blocked, err = mirror.IsBlocked(ctx, "10.0.0.1")
	if err != nil || blocked {
		t.Fatalf("expected mirrored block to expire, blocked=%v err=%v", blocked, err)
	}
}

func TestBlockMirror_UnblockAndExpiredEventsDelete(t *testing.T) {
	mirror, mr := newTestMirror(t)
	ctx := context.Background()

	if err := mirror.Publish(ctx, domain.BlockEvent{Identity: "a", Until: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := mirror.Publish(ctx, domain.BlockEvent{Identity: "a"}); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if mr.Exists(DefaultPrefix + "a") {
		t.Fatalf("expected unblock to delete the key")
	}

	if err := mirror.Publish(ctx, domain.BlockEvent{Identity: "b", Until: time.Now().Add(-time.Second)}); err != nil {
		t.Fatalf("publish expired: %v", err)
	}
	if mr.Exists(DefaultPrefix + "b") {
		t.Fatalf("expired block must not be mirrored")
	}

	if _, ok, err := mirror.BlockedUntil(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected no entry for unknown identity, ok=%v err=%v", ok, err)
	}
}

func TestBlockMirror_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  5 * time.Millisecond,
		ReadTimeout:  5 * time.Millisecond,
		WriteTimeout: 5 * time.Millisecond,
		MaxRetries:   0,
	})
	mirror := NewWithClient(client, "x:")
	defer mirror.Close()

	err := mirror.Publish(context.Background(), domain.BlockEvent{Identity: "a", Until: time.Now().Add(time.Minute)})
	if err == nil {
		t.Fatalf("expected publish to fail when redis is down")
	}
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing address to be rejected")
	}
}

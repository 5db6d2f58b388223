package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestWindow(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewWindow(client, "dispatch:rate", 2, time.Minute)

	// The script receives time from the limiter, not from Redis, so the clock is driven here.
	clock := time.UnixMilli(1_700_000_000_000)
	limiter.now = func() time.Time { return clock }

	allowed, _, err := limiter.Allow(ctx)
	if err != nil || !allowed {
		t.Fatalf("expected first event allowed got allowed=%v err=%v", allowed, err)
	}
	clock = clock.Add(10 * time.Second)
	allowed, _, _ = limiter.Allow(ctx)
	if !allowed {
		t.Fatalf("expected second event allowed")
	}
	allowed, retryAfter, _ := limiter.Allow(ctx)
	if allowed {
		t.Fatalf("expected third event to be rejected")
	}
	if retryAfter != 50*time.Second {
		t.Fatalf("expected retry after 50s got %v", retryAfter)
	}

	clock = clock.Add(51 * time.Second)
	allowed, _, _ = limiter.Allow(ctx)
	if !allowed {
		t.Fatalf("expected event allowed once the oldest left the window")
	}
	allowed, _, _ = limiter.Allow(ctx)
	if allowed {
		t.Fatalf("expected window to be full again")
	}
}

func TestWindowSharedAcrossLimiters(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := NewWindow(client, "shared", 1, time.Minute)
	b := NewWindow(client, "shared", 1, time.Minute)

	if allowed, _, err := a.Allow(ctx); err != nil || !allowed {
		t.Fatalf("expected first limiter allowed got allowed=%v err=%v", allowed, err)
	}
	if allowed, _, _ := b.Allow(ctx); allowed {
		t.Fatalf("expected second limiter to share the window")
	}
}

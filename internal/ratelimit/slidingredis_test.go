package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	limiter := Limiter{Client: client, Prefix: "test:"}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if remaining != max-(i+1) {
			t.Fatalf("unexpected remaining: %d", remaining)
		}
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("expected third request to be rejected")
	}
	if remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", remaining)
	}

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, max)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed {
		t.Fatal("expected request after window to be allowed")
	}
}

func TestLimiterRejectedRequestsDoNotExtendWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	now := time.Unix(1_700_000_000, 0)
	limiter := Limiter{Client: client, Prefix: "test:", Now: func() time.Time { return now }}
	ctx := context.Background()
	window := 10 * time.Second

	allowed, _, reset, err := limiter.Allow(ctx, "ip:1", window, 1)
	if err != nil || !allowed {
		t.Fatalf("expected first event allowed, got %v %v", allowed, err)
	}
	if !reset.Equal(now.Add(window)) {
		t.Fatalf("unexpected reset %v", reset)
	}

	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		if allowed, _, _, _ := limiter.Allow(ctx, "ip:1", window, 1); allowed {
			t.Fatalf("expected rejection at +%ds", i+1)
		}
	}
	members, err := client.ZCard(ctx, "test:ip:1").Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if members != 1 {
		t.Fatalf("rejected events must not be recorded, got %d members", members)
	}

	now = now.Add(5 * time.Second)
	if allowed, _, _, _ := limiter.Allow(ctx, "ip:1", window, 1); !allowed {
		t.Fatal("expected event allowed once the first left the window")
	}
}

func TestLimiterWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "k", time.Second, 3)
	if err != nil || !allowed || remaining != 3 {
		t.Fatalf("expected pass-through, got %v %d %v", allowed, remaining, err)
	}
}

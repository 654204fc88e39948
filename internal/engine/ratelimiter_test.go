package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRL(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	rl := NewRateLimiter(client, logger)
	return rl, mr
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	// Limit of 5 per second — first 5 should all be allowed
	for i := 0; i < 5; i++ {
		if !rl.Allow(ctx, "ep-1", 5) {
			t.Errorf("request %d should be allowed (limit=5)", i+1)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	// Fill up the limit
	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "ep-1", 3)
	}

	// Next request should be blocked
	if rl.Allow(ctx, "ep-1", 3) {
		t.Error("request should be blocked when over limit")
	}
}

func TestRateLimiter_ZeroLimit_AllowsAll(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	// Zero limit means no rate limiting
	for i := 0; i < 100; i++ {
		if !rl.Allow(ctx, "ep-1", 0) {
			t.Errorf("request %d should be allowed with limit=0 (unlimited)", i+1)
		}
	}
}

func TestRateLimiter_IsolationBetweenEndpoints(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	// Fill up ep-1's limit
	for i := 0; i < 2; i++ {
		rl.Allow(ctx, "ep-1", 2)
	}

	// ep-1 should be blocked
	if rl.Allow(ctx, "ep-1", 2) {
		t.Error("ep-1 should be blocked")
	}

	// ep-2 should still be allowed
	if !rl.Allow(ctx, "ep-2", 2) {
		t.Error("ep-2 should be allowed, rate limits are per-endpoint")
	}
}

func TestRateLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	rl, mr := setupTestRL(t)
	ctx := context.Background()

	mr.Close()

	// Redis being unreachable must not stall deliveries
	if !rl.Allow(ctx, "ep-1", 1) {
		t.Error("limiter should fail open when redis is unavailable")
	}
}

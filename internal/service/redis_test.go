package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestClaimLockExcludesSecondHolder(t *testing.T) {
	client, _ := setupTestRedis(t)
	lock := NewClaimLock(client, 30*time.Second)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := lock.Acquire(ctx, 1, 2); !errors.Is(err, domain.ErrClaimInFlight) {
		t.Fatalf("second Acquire() error = %v, want ErrClaimInFlight", err)
	}
	if _, err := lock.Acquire(ctx, 1, 3); err != nil {
		t.Errorf("Acquire() other task error = %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release error = %v", err)
	}
	if _, err := lock.Acquire(ctx, 1, 2); err != nil {
		t.Errorf("Acquire() after release error = %v", err)
	}
}

func TestClaimLockStaleReleaseKeepsNewHolder(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewClaimLock(client, time.Second)
	ctx := context.Background()

	staleRelease, err := lock.Acquire(ctx, 1, 2)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := lock.Acquire(ctx, 1, 2); err != nil {
		t.Fatalf("Acquire() after expiry error = %v", err)
	}
	if err := staleRelease(ctx); err != nil {
		t.Fatalf("stale release error = %v", err)
	}
	if !mr.Exists(claimLockKey(1, 2)) {
		t.Error("stale release removed the new holder's lock")
	}
}

func TestClaimLockWrap(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewClaimLock(client, 30*time.Second)
	ctx := context.Background()
	s := completedSession(t)

	var calls atomic.Int32
	settler := lock.Wrap(SettlerFunc(func(context.Context, *WatchSession) (decimal.Decimal, error) {
		calls.Add(1)
		if !mr.Exists(claimLockKey(s.UserID, s.Task().ID)) {
			t.Error("lock not held during settlement")
		}
		return decimal.NewFromInt(5), nil
	}))

	if _, err := settler.Settle(ctx, s); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if mr.Exists(claimLockKey(s.UserID, s.Task().ID)) {
		t.Error("lock not released after settlement")
	}

	release, err := lock.Acquire(ctx, s.UserID, s.Task().ID)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release(ctx)

	if _, err := settler.Settle(ctx, s); !errors.Is(err, domain.ErrClaimInFlight) {
		t.Errorf("Settle() with lock held error = %v, want ErrClaimInFlight", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("inner settler calls = %d, want 1", got)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewRateLimiter(client, 3)
	now := time.Date(2025, 3, 1, 12, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ok, count, err := limiter.Allow(ctx, 99)
		if err != nil || !ok || count != int64(i) {
			t.Fatalf("Allow() #%d = %v, %d, %v", i, ok, count, err)
		}
	}
	if ok, _, _ := limiter.Allow(ctx, 99); ok {
		t.Error("fourth event in the window was allowed")
	}
	if ok, _, _ := limiter.Allow(ctx, 100); !ok {
		t.Error("other chat was limited")
	}

	now = now.Add(time.Minute)
	if ok, count, _ := limiter.Allow(ctx, 99); !ok || count != 1 {
		t.Errorf("next window Allow() = %v, %d", ok, count)
	}
}

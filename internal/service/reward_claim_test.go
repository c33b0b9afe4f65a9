package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

type recordingListener struct {
	mu        sync.Mutex
	succeeded []decimal.Decimal
	failed    []error
}

func (l *recordingListener) OnClaimSucceeded(_ context.Context, _ *WatchSession, newBalance decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.succeeded = append(l.succeeded, newBalance)
}

func (l *recordingListener) OnClaimFailed(_ context.Context, _ *WatchSession, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, err)
}

func completedSession(t *testing.T) *WatchSession {
	t.Helper()
	rec := &tickerRecorder{}
	s := NewWatchSession(7, 70, time.Second, rec.factory, WatchHooks{})
	task := watchTask(3, 1)
	task.RewardAmount = decimal.NewFromInt(25)
	if err := s.Start(task); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Tick()
	if s.State() != domain.WatchCompleted {
		t.Fatalf("session state = %s, want completed", s.State())
	}
	return s
}

func TestClaimRejectsIncompleteSession(t *testing.T) {
	var calls atomic.Int32
	settler := SettlerFunc(func(context.Context, *WatchSession) (decimal.Decimal, error) {
		calls.Add(1)
		return decimal.Zero, nil
	})
	c := NewRewardClaimCoordinator(settler, nil, time.Second, nil)

	rec := &tickerRecorder{}
	s := NewWatchSession(1, 10, time.Second, rec.factory, WatchHooks{})
	if err := s.Start(watchTask(1, 30)); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	_, err := c.Claim(context.Background(), s)
	var stateErr *domain.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Claim() error = %v, want InvalidStateError", err)
	}
	if calls.Load() != 0 {
		t.Error("settler was called for a running session")
	}
	if got := c.Status(s.ID); got != domain.ClaimNotStarted {
		t.Errorf("Status() = %s, want not_started", got)
	}
}

func TestClaimSettlesExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	settler := SettlerFunc(func(context.Context, *WatchSession) (decimal.Decimal, error) {
		calls.Add(1)
		return decimal.NewFromInt(125), nil
	})
	listener := &recordingListener{}
	c := NewRewardClaimCoordinator(settler, listener, time.Second, nil)
	s := completedSession(t)

	balance, err := c.Claim(context.Background(), s)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(125)) {
		t.Errorf("balance = %s, want 125", balance)
	}
	if got := c.Status(s.ID); got != domain.ClaimSucceeded {
		t.Errorf("Status() = %s, want succeeded", got)
	}

	_, err = c.Claim(context.Background(), s)
	var stateErr *domain.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("second Claim() error = %v, want InvalidStateError", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("settler calls = %d, want 1", got)
	}
	if len(listener.succeeded) != 1 || len(listener.failed) != 0 {
		t.Errorf("listener succeeded=%d failed=%d", len(listener.succeeded), len(listener.failed))
	}
}

func TestClaimFailureAllowsRetry(t *testing.T) {
	var calls atomic.Int32
	settler := SettlerFunc(func(context.Context, *WatchSession) (decimal.Decimal, error) {
		if calls.Add(1) == 1 {
			return decimal.Zero, errors.New("connection reset by peer")
		}
		return decimal.NewFromInt(25), nil
	})
	listener := &recordingListener{}
	c := NewRewardClaimCoordinator(settler, listener, time.Second, nil)
	s := completedSession(t)

	_, err := c.Claim(context.Background(), s)
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Claim() error = %v, want StoreError", err)
	}
	if storeErr.Message != "connection reset by peer" {
		t.Errorf("StoreError.Message = %q", storeErr.Message)
	}
	if got := c.Status(s.ID); got != domain.ClaimFailed {
		t.Errorf("Status() = %s, want failed", got)
	}
	if len(listener.failed) != 1 {
		t.Fatalf("OnClaimFailed calls = %d, want 1", len(listener.failed))
	}

	if _, err := c.Claim(context.Background(), s); err != nil {
		t.Fatalf("retry Claim() error = %v", err)
	}
	attempt, ok := c.Attempt(s.ID)
	if !ok || attempt.Status != domain.ClaimSucceeded || attempt.Attempts != 2 || attempt.LastErr != nil {
		t.Errorf("attempt = %+v", attempt)
	}
}

func TestClaimRejectsSecondClaimWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	settler := SettlerFunc(func(context.Context, *WatchSession) (decimal.Decimal, error) {
		close(entered)
		<-release
		return decimal.NewFromInt(25), nil
	})
	c := NewRewardClaimCoordinator(settler, nil, time.Second, nil)
	s := completedSession(t)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Claim(context.Background(), s)
		errc <- err
	}()
	<-entered

	if got := c.Status(s.ID); got != domain.ClaimInFlight {
		t.Errorf("Status() = %s, want in_flight", got)
	}
	_, err := c.Claim(context.Background(), s)
	var stateErr *domain.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Errorf("concurrent Claim() error = %v, want InvalidStateError", err)
	}

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("first Claim() error = %v", err)
	}
}

func TestClaimTimeoutCountsAsFailure(t *testing.T) {
	settler := SettlerFunc(func(ctx context.Context, _ *WatchSession) (decimal.Decimal, error) {
		<-ctx.Done()
		return decimal.Zero, ctx.Err()
	})
	c := NewRewardClaimCoordinator(settler, nil, 20*time.Millisecond, nil)
	s := completedSession(t)

	_, err := c.Claim(context.Background(), s)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Claim() error = %v, want deadline exceeded", err)
	}
	if got := c.Status(s.ID); got != domain.ClaimFailed {
		t.Errorf("Status() = %s, want failed", got)
	}
}

func TestClaimForget(t *testing.T) {
	settler := SettlerFunc(func(context.Context, *WatchSession) (decimal.Decimal, error) {
		return decimal.NewFromInt(1), nil
	})
	c := NewRewardClaimCoordinator(settler, nil, time.Second, nil)
	s := completedSession(t)

	if _, err := c.Claim(context.Background(), s); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	c.Forget(s.ID)
	if got := c.Status(s.ID); got != domain.ClaimNotStarted {
		t.Errorf("Status() after Forget = %s, want not_started", got)
	}
}

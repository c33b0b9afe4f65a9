package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/metrics"
	"github.com/shopspring/decimal"
)

// Settler credits the reward for a completed session and returns the new
// balance.
type Settler interface {
	Settle(ctx context.Context, s *WatchSession) (decimal.Decimal, error)
}

type SettlerFunc func(ctx context.Context, s *WatchSession) (decimal.Decimal, error)

func (f SettlerFunc) Settle(ctx context.Context, s *WatchSession) (decimal.Decimal, error) {
	return f(ctx, s)
}

type ClaimListener interface {
	OnClaimSucceeded(ctx context.Context, s *WatchSession, newBalance decimal.Decimal)
	OnClaimFailed(ctx context.Context, s *WatchSession, err error)
}

type ClaimAttempt struct {
	SessionID string
	Status    domain.ClaimStatus
	LastErr   error
	Attempts  int
}

// RewardClaimCoordinator settles each completed session at most once.
// A failed attempt may be retried; a second claim while one is in flight is
// rejected, not queued.
type RewardClaimCoordinator struct {
	settler  Settler
	listener ClaimListener
	timeout  time.Duration
	metrics  *metrics.Metrics

	mu       sync.Mutex
	attempts map[string]*ClaimAttempt
}

func NewRewardClaimCoordinator(settler Settler, listener ClaimListener, timeout time.Duration, m *metrics.Metrics) *RewardClaimCoordinator {
	return &RewardClaimCoordinator{
		settler:  settler,
		listener: listener,
		timeout:  timeout,
		metrics:  m,
		attempts: make(map[string]*ClaimAttempt),
	}
}

func (c *RewardClaimCoordinator) Claim(ctx context.Context, s *WatchSession) (decimal.Decimal, error) {
	if state := s.State(); state != domain.WatchCompleted {
		return decimal.Zero, &domain.InvalidStateError{Op: "claim reward", Reason: fmt.Sprintf("watch session is %s", state)}
	}

	c.mu.Lock()
	attempt, ok := c.attempts[s.ID]
	if !ok {
		attempt = &ClaimAttempt{SessionID: s.ID}
		c.attempts[s.ID] = attempt
	}
	switch attempt.Status {
	case domain.ClaimInFlight:
		c.mu.Unlock()
		return decimal.Zero, &domain.InvalidStateError{Op: "claim reward", Reason: domain.ErrClaimInFlight.Error()}
	case domain.ClaimSucceeded:
		c.mu.Unlock()
		return decimal.Zero, &domain.InvalidStateError{Op: "claim reward", Reason: "reward already claimed"}
	}
	attempt.Status = domain.ClaimInFlight
	attempt.Attempts++
	c.mu.Unlock()

	settleCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		settleCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	task := s.Task()
	newBalance, err := c.settler.Settle(settleCtx, s)

	c.mu.Lock()
	if err != nil {
		attempt.Status = domain.ClaimFailed
		attempt.LastErr = err
	} else {
		attempt.Status = domain.ClaimSucceeded
		attempt.LastErr = nil
	}
	c.mu.Unlock()

	if err != nil {
		var storeErr *domain.StoreError
		if !errors.As(err, &storeErr) {
			storeErr = domain.NewStoreError("settle reward", err)
		}
		slog.Error("reward settlement failed",
			"error", err,
			"session_id", s.ID,
			"user_id", s.UserID,
			"task_id", task.ID,
		)
		c.metrics.RewardClaim(metrics.ResultFailed, task.RewardAmount)
		if c.listener != nil {
			c.listener.OnClaimFailed(ctx, s, storeErr)
		}
		return decimal.Zero, storeErr
	}

	slog.Info("reward settled",
		"session_id", s.ID,
		"user_id", s.UserID,
		"task_id", task.ID,
		"reward", task.RewardAmount.String(),
	)
	c.metrics.RewardClaim(metrics.ResultSuccess, task.RewardAmount)
	if c.listener != nil {
		c.listener.OnClaimSucceeded(ctx, s, newBalance)
	}
	return newBalance, nil
}

func (c *RewardClaimCoordinator) Status(sessionID string) domain.ClaimStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.attempts[sessionID]; ok {
		return a.Status
	}
	return domain.ClaimNotStarted
}

// Attempt returns a copy of the attempt record for sessionID.
func (c *RewardClaimCoordinator) Attempt(sessionID string) (ClaimAttempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.attempts[sessionID]
	if !ok {
		return ClaimAttempt{SessionID: sessionID}, false
	}
	return *a, true
}

// Forget drops the attempt record once its surface is gone.
func (c *RewardClaimCoordinator) Forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, sessionID)
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

const claimLockPrefix = "watchearn:claim:"

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ClaimLock serializes reward settlement for a user and task across bot
// replicas.
type ClaimLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewClaimLock(rdb *redis.Client, ttl time.Duration) *ClaimLock {
	return &ClaimLock{rdb: rdb, ttl: ttl}
}

func claimLockKey(userID, taskID int64) string {
	return fmt.Sprintf("%s%d:%d", claimLockPrefix, userID, taskID)
}

// Acquire takes the lock or fails with domain.ErrClaimInFlight when another
// holder has it. The returned func releases it.
func (l *ClaimLock) Acquire(ctx context.Context, userID, taskID int64) (func(context.Context) error, error) {
	key := claimLockKey(userID, taskID)
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire claim lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrClaimInFlight
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}, nil
}

// Wrap returns a Settler that holds the lock around next.
func (l *ClaimLock) Wrap(next Settler) Settler {
	return SettlerFunc(func(ctx context.Context, s *WatchSession) (decimal.Decimal, error) {
		task := s.Task()
		release, err := l.Acquire(ctx, s.UserID, task.ID)
		if err != nil {
			return decimal.Zero, err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(ctx); err != nil {
				slog.Warn("release claim lock", "error", err, "user_id", s.UserID, "task_id", task.ID)
			}
		}()

		return next.Settle(ctx, s)
	})
}

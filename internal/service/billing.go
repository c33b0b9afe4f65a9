package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/repository"
	"github.com/shopspring/decimal"
)

type BillingService struct {
	db      *pgxpool.Pool
	queries *repository.Queries
}

func NewBillingService(db *pgxpool.Pool, queries *repository.Queries) *BillingService {
	return &BillingService{db: db, queries: queries}
}

// Settle implements Settler for watch sessions.
func (s *BillingService) Settle(ctx context.Context, ws *WatchSession) (decimal.Decimal, error) {
	return s.SettleWatchReward(ctx, ws.UserID, ws.Task(), ws.ID)
}

// SettleWatchReward records the completion of task by userID and credits the
// reward in one transaction. Settling the same session twice is a no-op that
// returns the current balance; completing the task in another session gives
// ErrTaskAlreadyDone.
func (s *BillingService) SettleWatchReward(ctx context.Context, userID int64, task domain.Task, sessionID string) (decimal.Decimal, error) {
	newBalance, err := s.settle(ctx, userID, task, sessionID)
	if err == nil || !repository.IsUniqueViolation(err) {
		return newBalance, err
	}

	prev, lookupErr := s.queries.GetTaskCompletion(ctx, task.ID, userID)
	if lookupErr != nil {
		return decimal.Zero, fmt.Errorf("get task completion: %w", lookupErr)
	}
	if prev.SessionID != sessionID {
		return decimal.Zero, domain.ErrTaskAlreadyDone
	}

	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get user: %w", err)
	}
	return user.Balance, nil
}

func (s *BillingService) settle(ctx context.Context, userID int64, task domain.Task, sessionID string) (decimal.Decimal, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.queries.WithTx(tx)

	if _, err := qtx.GetUserForUpdate(ctx, userID); err != nil {
		if repository.IsNoRows(err) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("lock user: %w", err)
	}

	err = qtx.CreateTaskCompletion(ctx, repository.CreateTaskCompletionParams{
		TaskID:    task.ID,
		UserID:    userID,
		SessionID: sessionID,
		Reward:    task.RewardAmount,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("record completion: %w", err)
	}

	newBalance, err := qtx.UpdateUserBalance(ctx, userID, task.RewardAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("update balance: %w", err)
	}

	_, err = qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
		UserID:      userID,
		Amount:      task.RewardAmount,
		TxType:      domain.TxTypeCredit,
		Description: fmt.Sprintf("Watch reward: %s", task.Title),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("create transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit: %w", err)
	}
	return newBalance, nil
}

// CreditUser adds funds to user balance.
func (s *BillingService) CreditUser(ctx context.Context, userID int64, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.queries.WithTx(tx)

	newBalance, err := qtx.UpdateUserBalance(ctx, userID, amount)
	if err != nil {
		if repository.IsNoRows(err) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("update balance: %w", err)
	}

	_, err = qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
		UserID:      userID,
		Amount:      amount,
		TxType:      domain.TxTypeCredit,
		Description: description,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("create transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit: %w", err)
	}
	return newBalance, nil
}

// DebitUser atomically deducts from user balance and records the transaction.
func (s *BillingService) DebitUser(ctx context.Context, userID int64, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.queries.WithTx(tx)

	// Lock user row and check balance
	user, err := qtx.GetUserForUpdate(ctx, userID)
	if err != nil {
		if repository.IsNoRows(err) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("lock user: %w", err)
	}
	if user.Balance.LessThan(amount) {
		return decimal.Zero, &domain.InsufficientBalanceError{Balance: user.Balance, Amount: amount}
	}

	newBalance, err := qtx.UpdateUserBalance(ctx, userID, amount.Neg())
	if err != nil {
		return decimal.Zero, fmt.Errorf("update balance: %w", err)
	}

	_, err = qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
		UserID:      userID,
		Amount:      amount,
		TxType:      domain.TxTypeDebit,
		Description: description,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("create transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit: %w", err)
	}
	return newBalance, nil
}

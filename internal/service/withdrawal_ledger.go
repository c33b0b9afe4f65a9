package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/repository"
	"github.com/shopspring/decimal"
)

// WithdrawalLedger is the Postgres WithdrawalStore. A request holds its
// amount from the balance until review; rejection refunds the hold.
type WithdrawalLedger struct {
	db      *pgxpool.Pool
	queries *repository.Queries
}

func NewWithdrawalLedger(db *pgxpool.Pool, queries *repository.Queries) *WithdrawalLedger {
	return &WithdrawalLedger{db: db, queries: queries}
}

func (l *WithdrawalLedger) InsertWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, method domain.PaymentMethod, phone string) (domain.Withdrawal, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return domain.Withdrawal{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := l.queries.WithTx(tx)

	user, err := qtx.GetUserForUpdate(ctx, userID)
	if err != nil {
		if repository.IsNoRows(err) {
			return domain.Withdrawal{}, domain.ErrUserNotFound
		}
		return domain.Withdrawal{}, fmt.Errorf("lock user: %w", err)
	}
	if user.Balance.LessThan(amount) {
		return domain.Withdrawal{}, &domain.InsufficientBalanceError{Balance: user.Balance, Amount: amount}
	}

	w, err := qtx.CreateWithdrawal(ctx, repository.CreateWithdrawalParams{
		ID:            uuid.New().String(),
		UserID:        userID,
		Amount:        amount,
		PaymentMethod: method,
		PhoneNumber:   phone,
	})
	if err != nil {
		return domain.Withdrawal{}, fmt.Errorf("create withdrawal: %w", err)
	}

	if _, err := qtx.UpdateUserBalance(ctx, userID, amount.Neg()); err != nil {
		return domain.Withdrawal{}, fmt.Errorf("hold balance: %w", err)
	}

	_, err = qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
		UserID:      userID,
		Amount:      amount,
		TxType:      domain.TxTypeDebit,
		Description: fmt.Sprintf("Withdrawal %s via %s", w.ID, method.DisplayName()),
	})
	if err != nil {
		return domain.Withdrawal{}, fmt.Errorf("create transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Withdrawal{}, fmt.Errorf("commit: %w", err)
	}
	return w, nil
}

func (l *WithdrawalLedger) QueryWithdrawals(ctx context.Context, userID int64, limit int) ([]domain.Withdrawal, error) {
	list, err := l.queries.ListWithdrawalsByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return list, nil
}

func (l *WithdrawalLedger) ListPending(ctx context.Context, limit int) ([]domain.Withdrawal, error) {
	list, err := l.queries.ListWithdrawalsByStatus(ctx, domain.WithdrawalPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending withdrawals: %w", err)
	}
	return list, nil
}

// Review moves a pending request to approved or rejected. Only pending
// requests can be reviewed.
func (l *WithdrawalLedger) Review(ctx context.Context, id string, status domain.WithdrawalStatus, reviewerTelegramID int64) (domain.Withdrawal, error) {
	if status != domain.WithdrawalApproved && status != domain.WithdrawalRejected {
		return domain.Withdrawal{}, &domain.InvalidStateError{Op: "review withdrawal", Reason: fmt.Sprintf("cannot set status %q", status)}
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.Withdrawal{}, domain.ErrWithdrawalNotFound
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return domain.Withdrawal{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := l.queries.WithTx(tx)

	current, err := qtx.GetWithdrawalForUpdate(ctx, id)
	if err != nil {
		if repository.IsNoRows(err) {
			return domain.Withdrawal{}, domain.ErrWithdrawalNotFound
		}
		return domain.Withdrawal{}, fmt.Errorf("lock withdrawal: %w", err)
	}
	if current.Status != domain.WithdrawalPending {
		return domain.Withdrawal{}, domain.ErrWithdrawalReviewed
	}

	w, err := qtx.UpdateWithdrawalStatus(ctx, id, status, reviewerTelegramID)
	if err != nil {
		return domain.Withdrawal{}, fmt.Errorf("update withdrawal: %w", err)
	}

	if status == domain.WithdrawalRejected {
		if _, err := qtx.UpdateUserBalance(ctx, w.UserID, w.Amount); err != nil {
			return domain.Withdrawal{}, fmt.Errorf("refund balance: %w", err)
		}
		_, err = qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
			UserID:      w.UserID,
			Amount:      w.Amount,
			TxType:      domain.TxTypeCredit,
			Description: fmt.Sprintf("Withdrawal %s rejected, refund", w.ID),
		})
		if err != nil {
			return domain.Withdrawal{}, fmt.Errorf("create transaction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Withdrawal{}, fmt.Errorf("commit: %w", err)
	}
	return w, nil
}

package repository

import (
	"context"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

const withdrawalColumns = `id::text, user_id, amount, payment_method, phone_number, status, requested_at, reviewed_at, reviewed_by`

func scanWithdrawal(row interface{ Scan(...any) error }) (domain.Withdrawal, error) {
	var w domain.Withdrawal
	var method, status string
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Amount,
		&method,
		&w.PhoneNumber,
		&status,
		&w.RequestedAt,
		&w.ReviewedAt,
		&w.ReviewedBy,
	)
	w.PaymentMethod = domain.PaymentMethod(method)
	w.Status = domain.WithdrawalStatus(status)
	return w, err
}

func collectWithdrawals(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]domain.Withdrawal, error) {
	list := []domain.Withdrawal{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

type CreateWithdrawalParams struct {
	ID            string
	UserID        int64
	Amount        decimal.Decimal
	PaymentMethod domain.PaymentMethod
	PhoneNumber   string
}

// CreateWithdrawal inserts a pending request; requested_at is set by the database.
func (q *Queries) CreateWithdrawal(ctx context.Context, arg CreateWithdrawalParams) (domain.Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, `
		INSERT INTO withdrawals (id, user_id, amount, payment_method, phone_number, status)
		VALUES ($1::uuid, $2, $3, $4, $5, 'pending')
		RETURNING `+withdrawalColumns,
		arg.ID, arg.UserID, arg.Amount, string(arg.PaymentMethod), arg.PhoneNumber,
	))
}

func (q *Queries) ListWithdrawalsByUser(ctx context.Context, userID int64, limit int) ([]domain.Withdrawal, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2`, userID, int32(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

func (q *Queries) ListWithdrawalsByStatus(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]domain.Withdrawal, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE status = $1
		ORDER BY requested_at ASC
		LIMIT $2`, string(status), int32(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

func (q *Queries) GetWithdrawalForUpdate(ctx context.Context, id string) (domain.Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1::uuid FOR UPDATE`, id))
}

func (q *Queries) UpdateWithdrawalStatus(ctx context.Context, id string, status domain.WithdrawalStatus, reviewedBy int64) (domain.Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, `
		UPDATE withdrawals SET status = $2, reviewed_at = NOW(), reviewed_by = $3
		WHERE id = $1::uuid
		RETURNING `+withdrawalColumns,
		id, string(status), reviewedBy,
	))
}

func (q *Queries) CountWithdrawalsByStatus(ctx context.Context, status domain.WithdrawalStatus) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawals WHERE status = $1`, string(status)).Scan(&n)
	return n, err
}

package repository

import (
	"context"
	"time"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

const userColumns = `id, telegram_id, is_admin, first_name, username, balance, blocked, fraud_flag, last_interaction, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.TelegramID,
		&u.IsAdmin,
		&u.FirstName,
		&u.Username,
		&u.Balance,
		&u.Blocked,
		&u.FraudFlag,
		&u.LastInteraction,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (q *Queries) GetUserByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserForUpdate locks the user row for the rest of the transaction.
func (q *Queries) GetUserForUpdate(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

type CreateUserParams struct {
	TelegramID int64
	FirstName  string
	Username   string
	IsAdmin    bool
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, `
		INSERT INTO users (telegram_id, first_name, username, is_admin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO UPDATE SET updated_at = NOW()
		RETURNING `+userColumns,
		arg.TelegramID, arg.FirstName, arg.Username, arg.IsAdmin,
	))
}

func (q *Queries) UpdateUserInfo(ctx context.Context, id int64, firstName, username string, isAdmin bool) error {
	_, err := q.db.Exec(ctx, `
		UPDATE users SET first_name = $2, username = $3, is_admin = $4, updated_at = NOW()
		WHERE id = $1`, id, firstName, username, isAdmin)
	return err
}

func (q *Queries) UpdateUserLastInteraction(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `UPDATE users SET last_interaction = NOW() WHERE id = $1`, id)
	return err
}

// UpdateUserBalance adds delta (which may be negative) and returns the new balance.
func (q *Queries) UpdateUserBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.db.QueryRow(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance`, id, delta).Scan(&balance)
	return balance, err
}

func (q *Queries) SetUserBlocked(ctx context.Context, telegramID int64, blocked bool) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE users SET blocked = $2, updated_at = NOW() WHERE telegram_id = $1`, telegramID, blocked)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) CountTotalUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (q *Queries) CountUsersCreatedAfter(ctx context.Context, after time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE created_at >= $1`, after).Scan(&n)
	return n, err
}

package repository

import (
	"context"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateTransactionParams.Amount is unsigned; the stored sign follows TxType.
type CreateTransactionParams struct {
	UserID      int64
	Amount      decimal.Decimal
	TxType      domain.TxType
	Description string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	amount, err := arg.TxType.Signed(arg.Amount)
	if err != nil {
		return 0, err
	}

	var id int64
	err = q.db.QueryRow(ctx, `
		INSERT INTO transactions (user_id, amount, tx_type, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		arg.UserID, amount, string(arg.TxType), arg.Description,
	).Scan(&id)
	return id, err
}

func (q *Queries) SumTransactions(ctx context.Context, txType domain.TxType) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE tx_type = $1`, string(txType)).Scan(&sum)
	return sum, err
}

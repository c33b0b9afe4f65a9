package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TxType is the direction of a ledger entry. Entries are stored signed:
// credits positive, debits negative.
type TxType string

const (
	TxTypeDebit  TxType = "debit"
	TxTypeCredit TxType = "credit"
)

// Signed returns amount with the sign of t.
func (t TxType) Signed(amount decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case TxTypeCredit:
		return amount.Abs(), nil
	case TxTypeDebit:
		return amount.Abs().Neg(), nil
	}
	return decimal.Zero, fmt.Errorf("unknown transaction type %q", string(t))
}

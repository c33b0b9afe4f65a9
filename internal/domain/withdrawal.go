package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// WithdrawalStatuses lists every status value. Label must cover all of them.
var WithdrawalStatuses = []WithdrawalStatus{
	WithdrawalPending,
	WithdrawalApproved,
	WithdrawalRejected,
}

// Label returns the display text for a status. Unknown values are an error
// rather than falling through to a default label.
func (s WithdrawalStatus) Label() (string, error) {
	switch s {
	case WithdrawalPending:
		return "awaiting review", nil
	case WithdrawalApproved:
		return "approved", nil
	case WithdrawalRejected:
		return "rejected", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, string(s))
}

type PaymentMethod string

const (
	PaymentUnitel   PaymentMethod = "unitel"
	PaymentAfricell PaymentMethod = "africell"
)

// DisplayName renders a provider as shown on buttons, e.g. "Unitel Money".
func (m PaymentMethod) DisplayName() string {
	s := string(m)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:] + " Money"
}

type Withdrawal struct {
	ID            string
	UserID        int64
	Amount        decimal.Decimal
	PaymentMethod PaymentMethod
	PhoneNumber   string
	Status        WithdrawalStatus
	RequestedAt   time.Time
	ReviewedAt    *time.Time
	ReviewedBy    *int64
}

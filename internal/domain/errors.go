package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserNotFound        = errors.New("user not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskAlreadyDone     = errors.New("task already completed")
	ErrClaimInFlight       = errors.New("claim already in flight")
	ErrSessionActive       = errors.New("another watch session is running")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrWithdrawalReviewed  = errors.New("withdrawal already reviewed")
	ErrUnknownStatus       = errors.New("unknown withdrawal status")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// ValidationError is a local, recoverable input error for one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InsufficientBalanceError is kept apart from ValidationError so callers can
// show a balance message instead of a range message.
type InsufficientBalanceError struct {
	Balance decimal.Decimal
	Amount  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s", e.Amount.StringFixed(2), e.Balance.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidStateError rejects an operation the current state does not allow.
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// StoreError wraps a failed remote call. Message carries the remote message
// verbatim when one is available.
type StoreError struct {
	Op      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func NewStoreError(op string, err error) *StoreError {
	se := &StoreError{Op: op, Err: err}
	if err != nil {
		se.Message = err.Error()
	}
	return se
}

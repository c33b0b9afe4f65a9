package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/metrics"
	"github.com/shopspring/decimal"
)

type WithdrawalPolicy struct {
	Min         decimal.Decimal
	Max         decimal.Decimal
	PhoneMinLen int
	PhoneMaxLen int
	Methods     []domain.PaymentMethod
}

func DefaultWithdrawalPolicy() WithdrawalPolicy {
	return WithdrawalPolicy{
		Min:         decimal.NewFromInt(500),
		Max:         decimal.NewFromInt(100000),
		PhoneMinLen: config.PhoneMinLen,
		PhoneMaxLen: config.PhoneMaxLen,
		Methods:     []domain.PaymentMethod{domain.PaymentUnitel, domain.PaymentAfricell},
	}
}

func WithdrawalPolicyFromConfig(cfg *config.Config) WithdrawalPolicy {
	p := DefaultWithdrawalPolicy()
	p.Min = decimal.NewFromFloat(cfg.MinWithdrawal)
	p.Max = decimal.NewFromFloat(cfg.MaxWithdrawal)
	if len(cfg.PaymentMethods) > 0 {
		p.Methods = p.Methods[:0:0]
		for _, m := range cfg.PaymentMethods {
			p.Methods = append(p.Methods, domain.PaymentMethod(strings.ToLower(strings.TrimSpace(m))))
		}
	}
	return p
}

func (p WithdrawalPolicy) Supports(m domain.PaymentMethod) bool {
	return slices.Contains(p.Methods, m)
}

// ParseMethod matches a provider name case-insensitively.
func (p WithdrawalPolicy) ParseMethod(text string) (domain.PaymentMethod, error) {
	m := domain.PaymentMethod(strings.ToLower(strings.TrimSpace(text)))
	if !p.Supports(m) {
		return "", &domain.ValidationError{Field: "payment_method", Message: fmt.Sprintf("unsupported payment method %q", text)}
	}
	return m, nil
}

// ParseAmount accepts a finite positive number such as "1500" or "1500,50".
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, config.CurrencyLabel), config.CurrencyLabel))
	s = strings.ReplaceAll(s, ",", ".")

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Field: "amount", Message: "enter a valid number"}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &domain.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if !wholeCents(amount) {
		return decimal.Zero, centsError()
	}
	return amount, nil
}

// wholeCents reports whether amount fits the two decimal places balances are
// stored with.
func wholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(2))
}

func centsError() *domain.ValidationError {
	return &domain.ValidationError{Field: "amount", Message: "amount can have at most 2 decimal places"}
}

type WithdrawalInput struct {
	Amount        decimal.Decimal
	PaymentMethod domain.PaymentMethod
	PhoneNumber   string
}

// WithdrawalStore persists withdrawal requests. QueryWithdrawals returns the
// newest first.
type WithdrawalStore interface {
	InsertWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, method domain.PaymentMethod, phone string) (domain.Withdrawal, error)
	QueryWithdrawals(ctx context.Context, userID int64, limit int) ([]domain.Withdrawal, error)
}

type SubmitListener interface {
	OnSubmitSucceeded(ctx context.Context, w domain.Withdrawal)
	OnSubmitFailed(ctx context.Context, userID int64, input WithdrawalInput, err error)
}

// WithdrawalManager validates and submits withdrawal requests and serves the
// per-user request history.
type WithdrawalManager struct {
	store    WithdrawalStore
	policy   WithdrawalPolicy
	listener SubmitListener
	timeout  time.Duration
	metrics  *metrics.Metrics

	mu      sync.Mutex
	history map[int64][]domain.Withdrawal
}

func NewWithdrawalManager(store WithdrawalStore, policy WithdrawalPolicy, listener SubmitListener, timeout time.Duration, m *metrics.Metrics) *WithdrawalManager {
	return &WithdrawalManager{
		store:    store,
		policy:   policy,
		listener: listener,
		timeout:  timeout,
		metrics:  m,
		history:  make(map[int64][]domain.Withdrawal),
	}
}

func (m *WithdrawalManager) Policy() WithdrawalPolicy {
	return m.policy
}

// Validate returns every violation in a fixed order: positive, cents,
// minimum, maximum, phone, method, balance. balance is never modified.
func (m *WithdrawalManager) Validate(in WithdrawalInput, balance decimal.Decimal) []error {
	p := m.policy
	var errs []error

	if !in.Amount.IsPositive() {
		errs = append(errs, &domain.ValidationError{Field: "amount", Message: "amount must be positive"})
	}
	if !wholeCents(in.Amount) {
		errs = append(errs, centsError())
	}
	if in.Amount.LessThan(p.Min) {
		errs = append(errs, &domain.ValidationError{Field: "amount", Message: fmt.Sprintf("minimum withdrawal is %s %s", config.CurrencyLabel, p.Min.StringFixed(2))})
	}
	if in.Amount.GreaterThan(p.Max) {
		errs = append(errs, &domain.ValidationError{Field: "amount", Message: fmt.Sprintf("maximum withdrawal is %s %s", config.CurrencyLabel, p.Max.StringFixed(2))})
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.PhoneNumber)); n < p.PhoneMinLen || n > p.PhoneMaxLen {
		errs = append(errs, &domain.ValidationError{Field: "phone_number", Message: fmt.Sprintf("phone number must be %d to %d characters", p.PhoneMinLen, p.PhoneMaxLen)})
	}
	if !p.Supports(in.PaymentMethod) {
		errs = append(errs, &domain.ValidationError{Field: "payment_method", Message: fmt.Sprintf("unsupported payment method %q", in.PaymentMethod)})
	}
	if in.Amount.GreaterThan(balance) {
		errs = append(errs, &domain.InsufficientBalanceError{Balance: balance, Amount: in.Amount})
	}
	return errs
}

func (m *WithdrawalManager) ValidateFirst(in WithdrawalInput, balance decimal.Decimal) error {
	if errs := m.Validate(in, balance); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Submit validates in against balance and stores a pending request. Store
// failures are returned as *domain.StoreError and are not retried.
func (m *WithdrawalManager) Submit(ctx context.Context, userID int64, in WithdrawalInput, balance decimal.Decimal) (domain.Withdrawal, error) {
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := m.ValidateFirst(in, balance); err != nil {
		m.metrics.WithdrawalRequest(metrics.ResultRejected)
		return domain.Withdrawal{}, err
	}

	storeCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	w, err := m.store.InsertWithdrawal(storeCtx, userID, in.Amount, in.PaymentMethod, in.PhoneNumber)
	if err != nil {
		storeErr := domain.NewStoreError("submit withdrawal", err)
		slog.Error("withdrawal submit failed", "error", err, "user_id", userID, "amount", in.Amount.String())
		m.metrics.WithdrawalRequest(metrics.ResultFailed)
		if m.listener != nil {
			m.listener.OnSubmitFailed(ctx, userID, in, storeErr)
		}
		return domain.Withdrawal{}, storeErr
	}

	slog.Info("withdrawal requested",
		"withdrawal_id", w.ID,
		"user_id", userID,
		"amount", w.Amount.String(),
		"method", string(w.PaymentMethod),
	)
	m.metrics.WithdrawalRequest(metrics.ResultSuccess)
	if m.listener != nil {
		m.listener.OnSubmitSucceeded(ctx, w)
	}
	return w, nil
}

// ListHistory returns up to limit requests, newest first. On a fetch error it
// logs and returns the last list it saw for the user, or an empty list.
func (m *WithdrawalManager) ListHistory(ctx context.Context, userID int64, limit int) []domain.Withdrawal {
	if limit <= 0 {
		limit = config.WithdrawalHistoryLimit
	}

	storeCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	list, err := m.store.QueryWithdrawals(storeCtx, userID, limit)
	if err != nil {
		slog.Error("fetch withdrawal history", "error", err, "user_id", userID)
		m.mu.Lock()
		defer m.mu.Unlock()
		cached := m.history[userID]
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return append([]domain.Withdrawal{}, cached...)
	}
	if list == nil {
		list = []domain.Withdrawal{}
	}

	m.mu.Lock()
	m.history[userID] = slices.Clone(list)
	m.mu.Unlock()
	return list
}

// Classify maps a status to its display label.
func Classify(status domain.WithdrawalStatus) (string, error) {
	return status.Label()
}

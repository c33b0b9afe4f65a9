package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

type memWithdrawalStore struct {
	mu        sync.Mutex
	rows      []domain.Withdrawal
	inserts   int
	insertErr error
	queryErr  error
	base      time.Time
}

func newMemWithdrawalStore() *memWithdrawalStore {
	return &memWithdrawalStore{base: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *memWithdrawalStore) InsertWithdrawal(_ context.Context, userID int64, amount decimal.Decimal, method domain.PaymentMethod, phone string) (domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertErr != nil {
		return domain.Withdrawal{}, s.insertErr
	}
	w := domain.Withdrawal{
		ID:            fmt.Sprintf("w-%d", len(s.rows)+1),
		UserID:        userID,
		Amount:        amount,
		PaymentMethod: method,
		PhoneNumber:   phone,
		Status:        domain.WithdrawalPending,
		RequestedAt:   s.base.Add(time.Duration(len(s.rows)) * time.Minute),
	}
	s.rows = append(s.rows, w)
	return w, nil
}

func (s *memWithdrawalStore) QueryWithdrawals(_ context.Context, userID int64, limit int) ([]domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []domain.Withdrawal
	for _, w := range s.rows {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingSubmitListener struct {
	succeeded []domain.Withdrawal
	failed    []error
}

func (l *recordingSubmitListener) OnSubmitSucceeded(_ context.Context, w domain.Withdrawal) {
	l.succeeded = append(l.succeeded, w)
}

func (l *recordingSubmitListener) OnSubmitFailed(_ context.Context, _ int64, _ WithdrawalInput, err error) {
	l.failed = append(l.failed, err)
}

func kz(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1500", want: "1500"},
		{in: " 1500,50 ", want: "1500.5"},
		{in: "Kz 700", want: "700"},
		{in: "0.01", want: "0.01"},
		{in: "500.500", want: "500.5"},
		{in: "500.005", wantErr: true},
		{in: "1500,001", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "NaN", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				var vErr *domain.ValidationError
				if !errors.As(err, &vErr) || vErr.Field != "amount" {
					t.Fatalf("ParseAmount(%q) error = %v, want amount ValidationError", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.in, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithdrawalValidate(t *testing.T) {
	m := NewWithdrawalManager(newMemWithdrawalStore(), DefaultWithdrawalPolicy(), nil, time.Second, nil)

	tests := []struct {
		name         string
		input        WithdrawalInput
		balance      decimal.Decimal
		wantField    string
		insufficient bool
	}{
		{"below minimum", WithdrawalInput{kz(499), domain.PaymentUnitel, "923456789"}, kz(10000), "amount", false},
		{"at minimum", WithdrawalInput{kz(500), domain.PaymentUnitel, "923456789"}, kz(10000), "", false},
		{"at maximum", WithdrawalInput{kz(100000), domain.PaymentAfricell, "923456789"}, kz(200000), "", false},
		{"above maximum", WithdrawalInput{kz(100001), domain.PaymentUnitel, "923456789"}, kz(200000), "amount", false},
		{"zero amount", WithdrawalInput{kz(0), domain.PaymentUnitel, "923456789"}, kz(10000), "amount", false},
		{"phone too short", WithdrawalInput{kz(1000), domain.PaymentUnitel, "12345678"}, kz(10000), "phone_number", false},
		{"phone too long", WithdrawalInput{kz(1000), domain.PaymentUnitel, "1234567890123456"}, kz(10000), "phone_number", false},
		{"phone at max length", WithdrawalInput{kz(1000), domain.PaymentUnitel, "123456789012345"}, kz(10000), "", false},
		{"unsupported method", WithdrawalInput{kz(1000), "mpesa", "923456789"}, kz(10000), "payment_method", false},
		{"over balance", WithdrawalInput{kz(600), domain.PaymentUnitel, "923456789"}, kz(500), "", true},
		{"sub-cent amount", WithdrawalInput{decimal.RequireFromString("500.005"), domain.PaymentUnitel, "923456789"}, decimal.RequireFromString("500.01"), "amount", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateFirst(tt.input, tt.balance)

			switch {
			case tt.insufficient:
				var balErr *domain.InsufficientBalanceError
				if !errors.As(err, &balErr) {
					t.Fatalf("error = %v, want InsufficientBalanceError", err)
				}
				var vErr *domain.ValidationError
				if errors.As(err, &vErr) {
					t.Error("insufficient balance reported as a ValidationError")
				}
			case tt.wantField != "":
				var vErr *domain.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("error = %v, want ValidationError", err)
				}
				if vErr.Field != tt.wantField {
					t.Errorf("field = %q, want %q", vErr.Field, tt.wantField)
				}
			default:
				if err != nil {
					t.Errorf("error = %v, want nil", err)
				}
			}
		})
	}
}

func TestWithdrawalValidateOrder(t *testing.T) {
	m := NewWithdrawalManager(newMemWithdrawalStore(), DefaultWithdrawalPolicy(), nil, time.Second, nil)

	errs := m.Validate(WithdrawalInput{Amount: kz(0), PaymentMethod: "cash", PhoneNumber: "1"}, kz(-1))
	if len(errs) != 5 {
		t.Fatalf("got %d errors, want 5: %v", len(errs), errs)
	}

	wantFields := []string{"amount", "amount", "phone_number", "payment_method"}
	for i, want := range wantFields {
		var vErr *domain.ValidationError
		if !errors.As(errs[i], &vErr) || vErr.Field != want {
			t.Errorf("errs[%d] = %v, want field %q", i, errs[i], want)
		}
	}
	if !errors.Is(errs[4], domain.ErrInsufficientBalance) {
		t.Errorf("last error = %v, want insufficient balance", errs[4])
	}
}

func TestWithdrawalSubmitAndHistory(t *testing.T) {
	store := newMemWithdrawalStore()
	listener := &recordingSubmitListener{}
	m := NewWithdrawalManager(store, DefaultWithdrawalPolicy(), listener, time.Second, nil)
	ctx := context.Background()
	balance := kz(2000)

	w, err := m.Submit(ctx, 42, WithdrawalInput{Amount: kz(1000), PaymentMethod: domain.PaymentUnitel, PhoneNumber: " 923456789 "}, balance)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if w.Status != domain.WithdrawalPending {
		t.Errorf("status = %s, want pending", w.Status)
	}
	if w.PhoneNumber != "923456789" {
		t.Errorf("phone = %q, want trimmed", w.PhoneNumber)
	}
	if !balance.Equal(kz(2000)) {
		t.Errorf("balance mutated to %s", balance)
	}
	if len(listener.succeeded) != 1 {
		t.Errorf("OnSubmitSucceeded calls = %d, want 1", len(listener.succeeded))
	}

	history := m.ListHistory(ctx, 42, 0)
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	label, err := Classify(history[0].Status)
	if err != nil || label != "awaiting review" {
		t.Errorf("Classify() = %q, %v", label, err)
	}
	if history[0].PaymentMethod != domain.PaymentUnitel || !history[0].Amount.Equal(kz(1000)) {
		t.Errorf("history[0] = %+v", history[0])
	}
}

func TestWithdrawalSubmitValidationSkipsStore(t *testing.T) {
	store := newMemWithdrawalStore()
	listener := &recordingSubmitListener{}
	m := NewWithdrawalManager(store, DefaultWithdrawalPolicy(), listener, time.Second, nil)

	_, err := m.Submit(context.Background(), 42, WithdrawalInput{Amount: kz(600), PaymentMethod: domain.PaymentUnitel, PhoneNumber: "923456789"}, kz(500))
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("Submit() error = %v, want insufficient balance", err)
	}
	if store.inserts != 0 {
		t.Errorf("store inserts = %d, want 0", store.inserts)
	}
	if len(listener.failed) != 0 || len(listener.succeeded) != 0 {
		t.Error("listener fired for a validation failure")
	}
}

func TestWithdrawalSubmitStoreErrorVerbatim(t *testing.T) {
	store := newMemWithdrawalStore()
	store.insertErr = errors.New(`new row for relation "withdrawals" violates check constraint`)
	listener := &recordingSubmitListener{}
	m := NewWithdrawalManager(store, DefaultWithdrawalPolicy(), listener, time.Second, nil)

	_, err := m.Submit(context.Background(), 42, WithdrawalInput{Amount: kz(1000), PaymentMethod: domain.PaymentAfricell, PhoneNumber: "923456789"}, kz(2000))
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Submit() error = %v, want StoreError", err)
	}
	if storeErr.Message != store.insertErr.Error() {
		t.Errorf("Message = %q, want %q", storeErr.Message, store.insertErr.Error())
	}
	if store.inserts != 1 {
		t.Errorf("store inserts = %d, want exactly 1", store.inserts)
	}
	if len(listener.failed) != 1 {
		t.Errorf("OnSubmitFailed calls = %d, want 1", len(listener.failed))
	}
}

func TestWithdrawalHistoryDefaultLimitAndOrder(t *testing.T) {
	store := newMemWithdrawalStore()
	m := NewWithdrawalManager(store, DefaultWithdrawalPolicy(), nil, time.Second, nil)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if _, err := m.Submit(ctx, 1, WithdrawalInput{Amount: kz(int64(500 + i)), PaymentMethod: domain.PaymentUnitel, PhoneNumber: "923456789"}, kz(1_000_000)); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	history := m.ListHistory(ctx, 1, 0)
	if len(history) != config.WithdrawalHistoryLimit {
		t.Fatalf("history length = %d, want %d", len(history), config.WithdrawalHistoryLimit)
	}
	for i := 1; i < len(history); i++ {
		if history[i].RequestedAt.After(history[i-1].RequestedAt) {
			t.Fatalf("history not newest first at %d", i)
		}
	}
	if !history[0].Amount.Equal(kz(511)) {
		t.Errorf("newest amount = %s, want 511", history[0].Amount)
	}
}

func TestWithdrawalHistoryDegradesToStaleList(t *testing.T) {
	store := newMemWithdrawalStore()
	m := NewWithdrawalManager(store, DefaultWithdrawalPolicy(), nil, time.Second, nil)
	ctx := context.Background()

	if got := m.ListHistory(ctx, 1, 10); got == nil || len(got) != 0 {
		t.Fatalf("empty history = %#v, want empty non-nil slice", got)
	}

	if _, err := m.Submit(ctx, 1, WithdrawalInput{Amount: kz(700), PaymentMethod: domain.PaymentUnitel, PhoneNumber: "923456789"}, kz(1000)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	fresh := m.ListHistory(ctx, 1, 10)

	store.queryErr = errors.New("connection refused")
	stale := m.ListHistory(ctx, 1, 10)
	if len(stale) != len(fresh) || stale[0].ID != fresh[0].ID {
		t.Errorf("stale history = %+v, want %+v", stale, fresh)
	}

	if got := m.ListHistory(ctx, 2, 10); got == nil || len(got) != 0 {
		t.Errorf("unknown user history = %#v, want empty", got)
	}
}

func TestWithdrawalPolicyFromConfig(t *testing.T) {
	cfg := &config.Config{
		MinWithdrawal:  1000,
		MaxWithdrawal:  5000,
		PaymentMethods: []string{" Unitel "},
	}
	p := WithdrawalPolicyFromConfig(cfg)

	if !p.Min.Equal(kz(1000)) || !p.Max.Equal(kz(5000)) {
		t.Errorf("limits = [%s, %s]", p.Min, p.Max)
	}
	if !p.Supports(domain.PaymentUnitel) || p.Supports(domain.PaymentAfricell) {
		t.Errorf("methods = %v", p.Methods)
	}
	if m, err := p.ParseMethod("UNITEL"); err != nil || m != domain.PaymentUnitel {
		t.Errorf("ParseMethod() = %q, %v", m, err)
	}
	if _, err := p.ParseMethod("africell"); err == nil {
		t.Error("ParseMethod(africell) succeeded for a disabled provider")
	}
}

func TestClassifyUnknownStatus(t *testing.T) {
	if _, err := Classify("frozen"); !errors.Is(err, domain.ErrUnknownStatus) {
		t.Errorf("Classify(frozen) error = %v, want ErrUnknownStatus", err)
	}
	for _, s := range domain.WithdrawalStatuses {
		if _, err := Classify(s); err != nil {
			t.Errorf("Classify(%s) error = %v", s, err)
		}
	}
}

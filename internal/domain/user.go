package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID              int64
	TelegramID      int64
	IsAdmin         bool
	FirstName       string
	Username        string
	Balance         decimal.Decimal
	Blocked         bool
	FraudFlag       bool
	LastInteraction time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AccessDenied reports whether screening has locked the account out.
func (u *User) AccessDenied() bool {
	return u.Blocked || u.FraudFlag
}

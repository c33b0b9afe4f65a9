package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Task is a watchable catalog entry. Sessions hold a copy, so a task never
// changes under a running session.
type Task struct {
	ID              int64
	Title           string
	ChannelLabel    string
	MediaReference  string // opaque; resolved into playable media by the client
	RequiredSeconds int
	RewardAmount    decimal.Decimal
	Active          bool
	CreatedAt       time.Time
}

func (t *Task) Validate() error {
	if t.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if t.MediaReference == "" {
		return &ValidationError{Field: "media_reference", Message: "media reference is required"}
	}
	if t.RequiredSeconds <= 0 {
		return &ValidationError{Field: "required_seconds", Message: "required seconds must be positive"}
	}
	if t.RewardAmount.IsNegative() {
		return &ValidationError{Field: "reward_amount", Message: "reward must not be negative"}
	}
	return nil
}

type TaskCompletion struct {
	ID          int64
	TaskID      int64
	UserID      int64
	SessionID   string
	Reward      decimal.Decimal
	CompletedAt time.Time
}

package config

import "time"

const (
	// Watch session cadence
	TickInterval = 1 * time.Second

	// Progress message refresh period (in ticks); Telegram rate-limits message edits
	ProgressEditEvery = 5

	// Phone number length bounds (characters)
	PhoneMinLen = 9
	PhoneMaxLen = 15

	// Withdrawal history page size
	WithdrawalHistoryLimit = 10

	// Pending withdrawals shown to admins
	PendingWithdrawalsLimit = 20

	// Currency label used in messages
	CurrencyLabel = "Kz"

	// Task list cache duration
	TaskCacheDuration = 1 * time.Minute

	// Claim lock TTL; must outlive SETTLEMENT_TIMEOUT
	ClaimLockTTL = 30 * time.Second

	// Rate limits (messages per minute per chat)
	RateLimitPerMinute = 20

	// Telegram limits
	MaxTelegramMessageLen = 4096

	// Media page fetch timeout
	MediaFetchTimeout = 15 * time.Second

	// Tasks per page in /tasks
	TasksPerPage = 6
)

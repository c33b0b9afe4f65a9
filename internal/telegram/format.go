package telegram

import (
	"fmt"
	"strings"

	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

// FormatKz renders an amount as "Kz 1234.50".
func FormatKz(amount decimal.Decimal) string {
	return config.CurrencyLabel + " " + amount.StringFixed(2)
}

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// ProgressBar draws a fixed-width bar followed by the percentage.
func ProgressBar(fraction float64, width int) string {
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction * float64(width))
	return fmt.Sprintf("%s%s %d%%",
		strings.Repeat("▓", filled),
		strings.Repeat("░", width-filled),
		int(fraction*100),
	)
}

func StatusIcon(status domain.WithdrawalStatus) string {
	switch status {
	case domain.WithdrawalPending:
		return "⏳"
	case domain.WithdrawalApproved:
		return "✅"
	case domain.WithdrawalRejected:
		return "❌"
	}
	return "❔"
}

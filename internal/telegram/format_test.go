package telegram

import (
	"strings"
	"testing"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

func TestFormatKz(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234.5", "Kz 1234.50"},
		{"0", "Kz 0.00"},
		{"75.505", "Kz 75.51"},
	}
	for _, tt := range tests {
		if got := FormatKz(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatKz(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{9, "0:09"},
		{60, "1:00"},
		{185, "3:05"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.seconds); got != tt.want {
			t.Errorf("FormatRemaining(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		fraction float64
		want     string
	}{
		{0, "░░░░░░░░░░ 0%"},
		{0.5, "▓▓▓▓▓░░░░░ 50%"},
		{1, "▓▓▓▓▓▓▓▓▓▓ 100%"},
		{1.7, "▓▓▓▓▓▓▓▓▓▓ 100%"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.fraction, 10); got != tt.want {
			t.Errorf("ProgressBar(%v) = %q, want %q", tt.fraction, got, tt.want)
		}
	}
}

func TestStatusIconCoversAllStatuses(t *testing.T) {
	for _, s := range domain.WithdrawalStatuses {
		if StatusIcon(s) == "❔" {
			t.Errorf("StatusIcon(%s) has no icon", s)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	parts := SplitMessage(text, 10)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2: %q", len(parts), parts)
	}
	if parts[0] != strings.Repeat("a", 8)+"\n" || parts[1] != strings.Repeat("b", 8) {
		t.Errorf("parts = %q", parts)
	}

	if got := SplitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("SplitMessage(short) = %q", got)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := EscapeMarkdown("a_b*c`d[e"); got != `a\_b\*c\`+"`"+`d\[e` {
		t.Errorf("EscapeMarkdown() = %q", got)
	}
}

func TestPaginationRow(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		total int
		want  []string
	}{
		{"first", 0, 3, []string{"cur", "tasks_page_1"}},
		{"middle", 1, 3, []string{"tasks_page_0", "cur", "tasks_page_2"}},
		{"last", 2, 3, []string{"tasks_page_1", "cur"}},
		{"single", 0, 1, []string{"cur"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := PaginationRow(tt.page, tt.total, "tasks_page")
			if len(row) != len(tt.want) {
				t.Fatalf("len(row) = %d, want %d", len(row), len(tt.want))
			}
			for i, btn := range row {
				if btn.CallbackData != tt.want[i] {
					t.Errorf("button %d data = %q, want %q", i, btn.CallbackData, tt.want[i])
				}
			}
		})
	}
}

func TestWithdrawalRequestText(t *testing.T) {
	w := domain.Withdrawal{
		ID:            "w-1",
		UserID:        7,
		Amount:        decimal.RequireFromString("1500"),
		PaymentMethod: domain.PaymentUnitel,
		PhoneNumber:   "923456789",
	}

	tests := []struct {
		name       string
		telegramID int64
		wantUser   string
	}{
		{"known owner", 700, "*User:* `700`"},
		{"unknown owner", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := withdrawalRequestText(tt.telegramID, w)
			if tt.wantUser == "" {
				if strings.Contains(got, "*User:*") {
					t.Errorf("text has a user line for an unknown owner: %q", got)
				}
			} else if !strings.Contains(got, tt.wantUser) {
				t.Errorf("text = %q, want %q", got, tt.wantUser)
			}
			if strings.Contains(got, "`7`") {
				t.Errorf("text shows the internal user id: %q", got)
			}
			if !strings.Contains(got, "Kz 1500.00") || !strings.Contains(got, "`w-1`") {
				t.Errorf("text = %q, missing amount or id", got)
			}
		})
	}
}

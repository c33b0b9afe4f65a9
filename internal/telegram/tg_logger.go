package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
)

// TelegramLogger mirrors money events to topics of a log chat.
type TelegramLogger struct {
	bot *bot.Bot
	cfg *config.Config
}

func NewTelegramLogger(b *bot.Bot, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{bot: b, cfg: cfg}
}

type LogType string

const (
	LogTypeError        LogType = "error"
	LogTypeRegistration LogType = "registration"
	LogTypeTaskReward   LogType = "taskReward"
	LogTypeWithdrawal   LogType = "withdrawal"
)

func (l *TelegramLogger) Log(logType LogType, message string) {
	if l == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.getTopicID(logType)
	if topicID == 0 {
		return
	}

	// Truncate if too long
	if len([]rune(message)) > config.MaxTelegramMessageLen {
		message = string([]rune(message)[:config.MaxTelegramMessageLen-20]) + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := l.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            message,
		ParseMode:       "Markdown",
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (l *TelegramLogger) LogError(err error, context string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		context, err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

func (l *TelegramLogger) LogRegistration(telegramID int64, name, username string) {
	msg := fmt.Sprintf("👤 *New Registration*\n\n*ID:* `%d`\n*Name:* %s\n*Username:* @%s",
		telegramID, EscapeMarkdown(name), EscapeMarkdown(username))
	l.Log(LogTypeRegistration, msg)
}

func (l *TelegramLogger) LogTaskReward(telegramID int64, task domain.Task, sessionID string) {
	msg := fmt.Sprintf("🎬 *Watch Reward*\n\n*User:* `%d`\n*Task:* %s\n*Reward:* %s\n*Session:* `%s`",
		telegramID, EscapeMarkdown(task.Title), FormatKz(task.RewardAmount), sessionID)
	l.Log(LogTypeTaskReward, msg)
}

// LogWithdrawalRequest reports a new pending withdrawal. A zero telegramID
// means the owner is unknown and the user line is left out.
func (l *TelegramLogger) LogWithdrawalRequest(telegramID int64, w domain.Withdrawal) {
	l.Log(LogTypeWithdrawal, withdrawalRequestText(telegramID, w))
}

func withdrawalRequestText(telegramID int64, w domain.Withdrawal) string {
	var user string
	if telegramID != 0 {
		user = fmt.Sprintf("*User:* `%d`\n", telegramID)
	}
	return fmt.Sprintf("💸 *Withdrawal Request*\n\n%s*Amount:* %s\n*Method:* %s\n*Phone:* `%s`\n*ID:* `%s`",
		user, FormatKz(w.Amount), w.PaymentMethod.DisplayName(), w.PhoneNumber, w.ID)
}

func (l *TelegramLogger) LogWithdrawalReview(reviewerID int64, w domain.Withdrawal) {
	msg := fmt.Sprintf("%s *Withdrawal %s*\n\n*ID:* `%s`\n*Amount:* %s\n*Reviewer:* `%d`",
		StatusIcon(w.Status), w.Status, w.ID, FormatKz(w.Amount), reviewerID)
	l.Log(LogTypeWithdrawal, msg)
}

func (l *TelegramLogger) getTopicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeRegistration:
		return l.cfg.LogTopicRegistration
	case LogTypeTaskReward:
		return l.cfg.LogTopicTaskReward
	case LogTypeWithdrawal:
		return l.cfg.LogTopicWithdrawal
	default:
		return 0
	}
}

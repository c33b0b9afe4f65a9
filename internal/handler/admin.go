package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/middleware"
	"github.com/set-night/watchearn/internal/service"
	tg "github.com/set-night/watchearn/internal/telegram"
	"github.com/shopspring/decimal"
)

// adminArgs returns the command arguments when the sender is an admin.
func adminArgs(ctx context.Context, update *models.Update) (*domain.User, []string, bool) {
	if update.Message == nil {
		return nil, nil, false
	}
	user := middleware.GetUser(ctx)
	if user == nil || !user.IsAdmin {
		return nil, nil, false
	}
	return user, strings.Fields(update.Message.Text)[1:], true
}

type addTaskArgs struct {
	videoID string
	reward  decimal.Decimal
	seconds int // 0 means take the video duration
}

// parseAddTaskArgs reads <video id|link> <reward> [seconds].
func parseAddTaskArgs(args []string) (addTaskArgs, error) {
	if len(args) < 2 || len(args) > 3 {
		return addTaskArgs{}, errors.New("usage: /addtask <video id|link> <reward> [seconds]")
	}

	videoID, err := service.ExtractVideoID(args[0])
	if err != nil {
		return addTaskArgs{}, err
	}
	reward, err := decimal.NewFromString(strings.ReplaceAll(args[1], ",", "."))
	if err != nil || reward.IsNegative() {
		return addTaskArgs{}, fmt.Errorf("invalid reward %q", args[1])
	}

	out := addTaskArgs{videoID: videoID, reward: reward}
	if len(args) == 3 {
		out.seconds, err = strconv.Atoi(args[2])
		if err != nil || out.seconds <= 0 {
			return addTaskArgs{}, fmt.Errorf("invalid seconds %q", args[2])
		}
	}
	return out, nil
}

func (h *Handler) handleAddTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	_, args, ok := adminArgs(ctx, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	in, err := parseAddTaskArgs(args)
	if err != nil {
		h.reply(ctx, b, chatID, "❌ "+tg.EscapeMarkdown(err.Error()))
		return
	}

	task := domain.Task{
		Title:           "Video " + in.videoID,
		MediaReference:  in.videoID,
		RequiredSeconds: in.seconds,
		RewardAmount:    in.reward,
	}

	resolveCtx, cancel := context.WithTimeout(ctx, config.MediaFetchTimeout)
	info, err := h.media.Resolve(resolveCtx, in.videoID)
	cancel()
	switch {
	case err == nil:
		task.Title = info.Title
		task.ChannelLabel = info.Channel
		if task.RequiredSeconds == 0 {
			task.RequiredSeconds = int(info.Duration / time.Second)
		}
	case in.seconds == 0:
		slog.Error("resolve video", "error", err, "video_id", in.videoID)
		h.reply(ctx, b, chatID, "❌ Could not read the video page. Pass the watch time in seconds explicitly.")
		return
	default:
		slog.Warn("resolve video, using fallback title", "error", err, "video_id", in.videoID)
	}

	saved, err := h.taskService.Save(ctx, task)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			h.reply(ctx, b, chatID, "❌ "+userMessage(err))
			return
		}
		slog.Error("save task", "error", err, "video_id", in.videoID)
		h.reply(ctx, b, chatID, "❌ Could not save the task.")
		return
	}

	h.reply(ctx, b, chatID, fmt.Sprintf("✅ Task #%d saved\n\n🎬 %s\n📺 %s\n⏱ %s\n💰 %s",
		saved.ID,
		tg.EscapeMarkdown(saved.Title),
		tg.EscapeMarkdown(saved.ChannelLabel),
		tg.FormatRemaining(saved.RequiredSeconds),
		tg.FormatKz(saved.RewardAmount),
	))
}

func (h *Handler) handleDelTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	_, args, ok := adminArgs(ctx, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	if len(args) != 1 {
		h.reply(ctx, b, chatID, "Usage: /deltask <task id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, b, chatID, "❌ Invalid task id.")
		return
	}

	if err := h.taskService.Deactivate(ctx, id); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			h.reply(ctx, b, chatID, "❌ Task not found.")
			return
		}
		slog.Error("deactivate task", "error", err, "task_id", id)
		h.reply(ctx, b, chatID, "❌ Could not remove the task.")
		return
	}
	h.reply(ctx, b, chatID, fmt.Sprintf("✅ Task #%d removed from the list.", id))
}

func (h *Handler) handlePending(ctx context.Context, b *bot.Bot, update *models.Update) {
	if _, _, ok := adminArgs(ctx, update); !ok {
		return
	}
	chatID := update.Message.Chat.ID

	list, err := h.ledger.ListPending(ctx, config.PendingWithdrawalsLimit)
	if err != nil {
		slog.Error("list pending withdrawals", "error", err)
		h.reply(ctx, b, chatID, "❌ Could not load pending withdrawals.")
		return
	}
	if err := tg.SendLongMessage(ctx, b, chatID, renderPending(list)); err != nil {
		slog.Error("send pending withdrawals", "error", err)
	}
}

func renderPending(list []domain.Withdrawal) string {
	if len(list) == 0 {
		return "✅ No pending withdrawals."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⏳ *Pending withdrawals (%d):*\n\n", len(list)))
	for _, w := range list {
		sb.WriteString(fmt.Sprintf("`%s`\n%s · %s `%s` · user %d · %s\n\n",
			w.ID,
			tg.FormatKz(w.Amount),
			w.PaymentMethod.DisplayName(),
			w.PhoneNumber,
			w.UserID,
			w.RequestedAt.Format("2006-01-02 15:04"),
		))
	}
	sb.WriteString("/approve <id> or /reject <id>")
	return sb.String()
}

func (h *Handler) handleApprove(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.reviewWithdrawal(ctx, b, update, domain.WithdrawalApproved)
}

func (h *Handler) handleReject(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.reviewWithdrawal(ctx, b, update, domain.WithdrawalRejected)
}

func (h *Handler) reviewWithdrawal(ctx context.Context, b *bot.Bot, update *models.Update, status domain.WithdrawalStatus) {
	admin, args, ok := adminArgs(ctx, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	if len(args) != 1 {
		h.reply(ctx, b, chatID, "Usage: /approve <id> or /reject <id>")
		return
	}

	w, err := h.ledger.Review(ctx, args[0], status, admin.TelegramID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrWithdrawalNotFound):
			h.reply(ctx, b, chatID, "❌ Withdrawal not found.")
		case errors.Is(err, domain.ErrWithdrawalReviewed):
			h.reply(ctx, b, chatID, "❌ This withdrawal has already been reviewed.")
		default:
			slog.Error("review withdrawal", "error", err, "withdrawal_id", args[0])
			h.reply(ctx, b, chatID, "❌ Could not update the withdrawal.")
		}
		return
	}

	h.metrics.WithdrawalReview(string(w.Status))
	h.tgLogger.LogWithdrawalReview(admin.TelegramID, w)
	h.reply(ctx, b, chatID, fmt.Sprintf("%s Withdrawal `%s` is now %s.", tg.StatusIcon(w.Status), w.ID, statusLabel(w.Status)))

	owner, err := h.userService.GetByID(ctx, w.UserID)
	if err != nil {
		slog.Error("load withdrawal owner", "error", err, "user_id", w.UserID)
		return
	}
	h.reply(ctx, b, owner.TelegramID, reviewNotice(w))
}

func reviewNotice(w domain.Withdrawal) string {
	if w.Status == domain.WithdrawalRejected {
		return fmt.Sprintf("❌ Your withdrawal of %s was rejected. The amount has been returned to your balance.", tg.FormatKz(w.Amount))
	}
	return fmt.Sprintf("✅ Your withdrawal of %s to %s was approved.", tg.FormatKz(w.Amount), w.PaymentMethod.DisplayName())
}

func (h *Handler) handleBlock(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.setBlocked(ctx, b, update, true)
}

func (h *Handler) handleUnblock(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.setBlocked(ctx, b, update, false)
}

func (h *Handler) setBlocked(ctx context.Context, b *bot.Bot, update *models.Update, blocked bool) {
	_, args, ok := adminArgs(ctx, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	if len(args) != 1 {
		h.reply(ctx, b, chatID, "Usage: /block <telegram id> or /unblock <telegram id>")
		return
	}
	telegramID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(ctx, b, chatID, "❌ Invalid Telegram id.")
		return
	}

	if err := h.userService.SetBlocked(ctx, telegramID, blocked); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.reply(ctx, b, chatID, "❌ User not found.")
			return
		}
		slog.Error("set blocked", "error", err, "telegram_id", telegramID)
		h.reply(ctx, b, chatID, "❌ Could not update the user.")
		return
	}

	word := "unblocked"
	if blocked {
		word = "blocked"
	}
	slog.Info("user access changed", "telegram_id", telegramID, "blocked", blocked)
	h.reply(ctx, b, chatID, fmt.Sprintf("✅ User `%d` %s.", telegramID, word))
}

// parseAdjustArgs reads <telegram id> <signed amount>, e.g. "12345 -150".
func parseAdjustArgs(args []string) (int64, decimal.Decimal, error) {
	if len(args) != 2 {
		return 0, decimal.Zero, errors.New("usage: /adjust <telegram id> <+amount|-amount>")
	}
	telegramID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("invalid telegram id %q", args[0])
	}
	delta, err := decimal.NewFromString(strings.ReplaceAll(args[1], ",", "."))
	if err != nil || delta.IsZero() {
		return 0, decimal.Zero, fmt.Errorf("invalid amount %q", args[1])
	}
	return telegramID, delta, nil
}

// handleAdjust corrects a user's balance by a signed amount.
func (h *Handler) handleAdjust(ctx context.Context, b *bot.Bot, update *models.Update) {
	admin, args, ok := adminArgs(ctx, update)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	telegramID, delta, err := parseAdjustArgs(args)
	if err != nil {
		h.reply(ctx, b, chatID, "❌ "+tg.EscapeMarkdown(err.Error()))
		return
	}

	target, err := h.userService.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.reply(ctx, b, chatID, "❌ User not found.")
			return
		}
		slog.Error("load user", "error", err, "telegram_id", telegramID)
		h.reply(ctx, b, chatID, "❌ Could not load the user.")
		return
	}

	description := fmt.Sprintf("Balance adjustment by admin %d", admin.TelegramID)
	var newBalance decimal.Decimal
	if delta.IsPositive() {
		newBalance, err = h.billingService.CreditUser(ctx, target.ID, delta, description)
	} else {
		newBalance, err = h.billingService.DebitUser(ctx, target.ID, delta.Neg(), description)
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			h.reply(ctx, b, chatID, "❌ "+userMessage(err))
			return
		}
		slog.Error("adjust balance", "error", err, "telegram_id", telegramID)
		h.reply(ctx, b, chatID, "❌ Could not adjust the balance.")
		return
	}

	slog.Info("balance adjusted", "telegram_id", telegramID, "delta", delta.String(), "admin_id", admin.TelegramID)
	h.reply(ctx, b, chatID, fmt.Sprintf("✅ User `%d` balance: %s", telegramID, tg.FormatKz(newBalance)))
}

func (h *Handler) handleStat(ctx context.Context, b *bot.Bot, update *models.Update) {
	if _, _, ok := adminArgs(ctx, update); !ok {
		return
	}
	chatID := update.Message.Chat.ID

	totalUsers, _ := h.queries.CountTotalUsers(ctx)

	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	todayUsers, _ := h.queries.CountUsersCreatedAfter(ctx, todayStart)
	monthUsers, _ := h.queries.CountUsersCreatedAfter(ctx, monthStart)
	completions, _ := h.queries.CountTaskCompletions(ctx)
	pending, _ := h.queries.CountWithdrawalsByStatus(ctx, domain.WithdrawalPending)
	credited, _ := h.queries.SumTransactions(ctx, domain.TxTypeCredit)
	debited, _ := h.queries.SumTransactions(ctx, domain.TxTypeDebit)

	text := fmt.Sprintf(
		"📊 *Statistics*\n\n"+
			"👥 *Users:*\n"+
			"Total: %d\n"+
			"Today: %d\n"+
			"This month: %d\n\n"+
			"🎬 *Watching:*\n"+
			"Rewards paid: %d\n"+
			"Active sessions: %d\n\n"+
			"💸 *Money:*\n"+
			"Credited: %s\n"+
			"Debited: %s\n"+
			"Pending withdrawals: %d",
		totalUsers,
		todayUsers,
		monthUsers,
		completions,
		h.tracker.Active(),
		tg.FormatKz(credited),
		tg.FormatKz(debited.Abs()),
		pending,
	)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
}

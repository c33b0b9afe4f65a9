package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/middleware"
	tg "github.com/set-night/watchearn/internal/telegram"
)

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != models.ChatTypePrivate {
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	chatID := update.Message.Chat.ID
	if err := h.userService.UpdateLastInteraction(ctx, user.ID); err != nil {
		slog.Error("update last interaction", "error", err, "user_id", user.ID)
	}

	text := fmt.Sprintf(
		"👋 Hi, *%s*!\n\n"+
			"Watch sponsored videos, earn rewards and withdraw them to your mobile money account.\n\n"+
			"%s\n\n"+
			"📋 *Commands:*\n"+
			"/tasks — Videos to watch\n"+
			"/balance — Your balance\n"+
			"/withdraw — Request a withdrawal\n"+
			"/history — Your withdrawal requests",
		tg.EscapeMarkdown(user.FirstName),
		h.balanceText(user),
	)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: h.balanceKeyboard(user),
	})
}

func (h *Handler) handleBalance(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        h.balanceText(user),
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: h.balanceKeyboard(user),
	})
}

func (h *Handler) balanceText(user *domain.User) string {
	text := fmt.Sprintf("💰 *Balance:* %s", tg.FormatKz(user.Balance))
	if minAmount := h.withdrawals.Policy().Min; user.Balance.LessThan(minAmount) {
		text += fmt.Sprintf("\n_You need at least %s to request a withdrawal._", tg.FormatKz(minAmount))
	}
	return text
}

// balanceKeyboard disables the withdraw button below the minimum withdrawal.
func (h *Handler) balanceKeyboard(user *domain.User) *models.InlineKeyboardMarkup {
	withdraw := tg.InlineButton("💸 Withdraw", "withdraw_open")
	if user.Balance.LessThan(h.withdrawals.Policy().Min) {
		withdraw = tg.NoopButton("🔒 Withdraw")
	}

	return tg.InlineKeyboard(
		tg.ButtonRow(tg.InlineButton("🎬 Watch videos", "tasks_page_0")),
		tg.ButtonRow(withdraw, tg.InlineButton("📜 History", "withdrawals_list")),
	)
}

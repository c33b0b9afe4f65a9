package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/balance", bot.MatchTypePrefix, h.handleBalance)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/tasks", bot.MatchTypePrefix, h.handleTasks)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/withdraw", bot.MatchTypePrefix, h.handleWithdraw)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypePrefix, h.handleWithdrawals)

	// Admin commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/addtask", bot.MatchTypePrefix, h.handleAddTask)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/deltask", bot.MatchTypePrefix, h.handleDelTask)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/pending", bot.MatchTypePrefix, h.handlePending)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/approve", bot.MatchTypePrefix, h.handleApprove)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/reject", bot.MatchTypePrefix, h.handleReject)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/block", bot.MatchTypePrefix, h.handleBlock)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/unblock", bot.MatchTypePrefix, h.handleUnblock)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/adjust", bot.MatchTypePrefix, h.handleAdjust)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/stat", bot.MatchTypePrefix, h.handleStat)

	// Task and watch callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "tasks_page_", bot.MatchTypePrefix, h.handleTasksPage)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "task_", bot.MatchTypePrefix, h.handleSelectTask)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "watch_cancel", bot.MatchTypeExact, h.handleWatchCancel)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "watch_claim", bot.MatchTypeExact, h.handleWatchClaim)

	// Withdrawal callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "withdraw_m_", bot.MatchTypePrefix, h.handleWithdrawMethod)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "withdraw_open", bot.MatchTypeExact, h.handleWithdrawOpen)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "withdrawals_list", bot.MatchTypeExact, h.handleWithdrawalsList)

	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "cur", bot.MatchTypeExact, h.handleNoop)
}

// HandleText routes plain (non-command) text, which is only expected while a
// withdrawal form is open.
func (h *Handler) HandleText(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != models.ChatTypePrivate {
		return
	}
	h.handleWithdrawFormReply(ctx, b, update)
}

// handleNoop is a no-op callback handler used for pagination indicators and other
// non-interactive inline buttons. It simply acknowledges the callback query.
func (h *Handler) handleNoop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})
	}
}

func callbackChatID(update *models.Update) int64 {
	if update.CallbackQuery == nil || update.CallbackQuery.Message.Message == nil {
		return 0
	}
	return update.CallbackQuery.Message.Message.Chat.ID
}

func callbackMessageID(update *models.Update) int {
	if update.CallbackQuery == nil || update.CallbackQuery.Message.Message == nil {
		return 0
	}
	return update.CallbackQuery.Message.Message.ID
}

func (h *Handler) answer(ctx context.Context, b *bot.Bot, update *models.Update, text string, alert bool) {
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: update.CallbackQuery.ID,
		Text:            text,
		ShowAlert:       alert,
	})
}

func (h *Handler) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/middleware"
	"github.com/set-night/watchearn/internal/service"
	tg "github.com/set-night/watchearn/internal/telegram"
)

// handleWithdraw opens the withdraw form, or submits directly when called as
// /withdraw <method> <amount> <phone>.
func (h *Handler) handleWithdraw(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Chat.Type != models.ChatTypePrivate {
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	args := strings.Fields(update.Message.Text)[1:]
	if len(args) == 0 {
		h.sendWithdrawMenu(ctx, b, chatID, user)
		return
	}

	method, err := h.withdrawals.Policy().ParseMethod(args[0])
	if err != nil {
		h.reply(ctx, b, chatID, userMessage(err)+"\n\n"+h.withdrawUsage())
		return
	}
	in, err := parseWithdrawForm(method, strings.Join(args[1:], " "))
	if err != nil {
		h.reply(ctx, b, chatID, userMessage(err)+"\n\n"+h.withdrawUsage())
		return
	}
	h.submitWithdrawal(ctx, b, chatID, user, in)
}

func (h *Handler) handleWithdrawOpen(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	h.answer(ctx, b, update, "", false)
	h.sendWithdrawMenu(ctx, b, callbackChatID(update), user)
}

func (h *Handler) sendWithdrawMenu(ctx context.Context, b *bot.Bot, chatID int64, user *domain.User) {
	policy := h.withdrawals.Policy()
	if user.Balance.LessThan(policy.Min) {
		h.reply(ctx, b, chatID, h.balanceText(user))
		return
	}

	var rows [][]models.InlineKeyboardButton
	for _, m := range policy.Methods {
		rows = append(rows, tg.ButtonRow(tg.InlineButton("📱 "+m.DisplayName(), "withdraw_m_"+string(m))))
	}

	text := fmt.Sprintf("💸 *Withdrawal*\n\n💰 Balance: %s\n📉 Minimum: %s\n📈 Maximum: %s\n\nChoose a payment method:",
		tg.FormatKz(user.Balance), tg.FormatKz(policy.Min), tg.FormatKz(policy.Max))

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: tg.InlineKeyboard(rows...),
	})
}

func (h *Handler) handleWithdrawMethod(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	method, err := h.withdrawals.Policy().ParseMethod(strings.TrimPrefix(update.CallbackQuery.Data, "withdraw_m_"))
	if err != nil {
		h.answer(ctx, b, update, "This payment method is not available.", true)
		return
	}
	h.answer(ctx, b, update, "", false)

	chatID := callbackChatID(update)
	h.mu.Lock()
	h.forms[chatID] = method
	h.mu.Unlock()

	text := fmt.Sprintf("📱 *%s*\n\nSend the amount and your phone number in one message, e.g.:\n`1500 923456789`",
		method.DisplayName())
	if err := tg.EditMessage(ctx, b, chatID, callbackMessageID(update), text, nil); err != nil {
		h.reply(ctx, b, chatID, text)
	}
}

// handleWithdrawFormReply consumes the "<amount> <phone>" reply of an open
// withdraw form. Text outside a form is ignored.
func (h *Handler) handleWithdrawFormReply(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	h.mu.Lock()
	method, ok := h.forms[chatID]
	h.mu.Unlock()
	if !ok {
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	in, err := parseWithdrawForm(method, update.Message.Text)
	if err != nil {
		// The form stays open for another try.
		h.reply(ctx, b, chatID, "⚠️ "+userMessage(err)+"\n\nSend the amount and phone number, e.g. `1500 923456789`.")
		return
	}

	h.mu.Lock()
	delete(h.forms, chatID)
	h.mu.Unlock()

	h.submitWithdrawal(ctx, b, chatID, user, in)
}

// parseWithdrawForm reads "<amount> <phone>".
func parseWithdrawForm(method domain.PaymentMethod, text string) (service.WithdrawalInput, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return service.WithdrawalInput{}, &domain.ValidationError{Field: "form", Message: "send the amount and the phone number separated by a space"}
	}
	amount, err := service.ParseAmount(fields[0])
	if err != nil {
		return service.WithdrawalInput{}, err
	}
	return service.WithdrawalInput{
		Amount:        amount,
		PaymentMethod: method,
		PhoneNumber:   fields[1],
	}, nil
}

func (h *Handler) submitWithdrawal(ctx context.Context, b *bot.Bot, chatID int64, user *domain.User, in service.WithdrawalInput) {
	// The cached user may predate a reward credited in this chat.
	fresh, err := h.userService.GetByID(ctx, user.ID)
	if err != nil {
		slog.Error("reload user", "error", err, "user_id", user.ID)
		h.reply(ctx, b, chatID, "⚠️ Could not load your balance. Please try again later.")
		return
	}

	w, err := h.withdrawals.Submit(ctx, fresh.ID, in, fresh.Balance)
	if err != nil {
		h.reply(ctx, b, chatID, "⚠️ "+userMessage(err))
		return
	}

	h.reply(ctx, b, chatID, fmt.Sprintf(
		"✅ *Withdrawal requested*\n\n💵 Amount: %s\n📱 %s: `%s`\n%s Status: %s\n\nThe amount is held from your balance until the request is reviewed.",
		tg.FormatKz(w.Amount),
		w.PaymentMethod.DisplayName(),
		w.PhoneNumber,
		tg.StatusIcon(w.Status),
		statusLabel(w.Status),
	))
	h.sendHistory(ctx, b, chatID, fresh.ID)
}

func (h *Handler) handleWithdrawals(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	h.sendHistory(ctx, b, update.Message.Chat.ID, user.ID)
}

func (h *Handler) handleWithdrawalsList(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	h.answer(ctx, b, update, "", false)
	h.sendHistory(ctx, b, callbackChatID(update), user.ID)
}

func (h *Handler) sendHistory(ctx context.Context, b *bot.Bot, chatID, userID int64) {
	list := h.withdrawals.ListHistory(ctx, userID, config.WithdrawalHistoryLimit)
	if err := tg.SendLongMessage(ctx, b, chatID, renderHistory(list)); err != nil {
		slog.Error("send withdrawal history", "error", err, "user_id", userID)
	}
}

func renderHistory(list []domain.Withdrawal) string {
	if len(list) == 0 {
		return "📜 You have no withdrawal requests yet."
	}

	var sb strings.Builder
	sb.WriteString("📜 *Your withdrawal requests:*\n\n")
	for _, w := range list {
		sb.WriteString(fmt.Sprintf("%s %s · %s · %s\n   _%s_\n",
			tg.StatusIcon(w.Status),
			tg.FormatKz(w.Amount),
			w.PaymentMethod.DisplayName(),
			statusLabel(w.Status),
			w.RequestedAt.Format("2006-01-02 15:04"),
		))
	}
	return sb.String()
}

func statusLabel(status domain.WithdrawalStatus) string {
	label, err := service.Classify(status)
	if err != nil {
		slog.Warn("unlabelled withdrawal status", "status", string(status))
		return string(status)
	}
	return label
}

func (h *Handler) withdrawUsage() string {
	var names []string
	for _, m := range h.withdrawals.Policy().Methods {
		names = append(names, string(m))
	}
	return fmt.Sprintf("Usage: `/withdraw <%s> <amount> <phone>`", strings.Join(names, "|"))
}

// OnSubmitSucceeded implements service.SubmitListener.
func (h *Handler) OnSubmitSucceeded(ctx context.Context, w domain.Withdrawal) {
	h.tgLogger.LogWithdrawalRequest(h.submitterTelegramID(ctx, w), w)
}

// submitterTelegramID resolves the Telegram id of the withdrawal's owner, or 0
// when it cannot be found.
func (h *Handler) submitterTelegramID(ctx context.Context, w domain.Withdrawal) int64 {
	if user := middleware.GetUser(ctx); user != nil && user.ID == w.UserID {
		return user.TelegramID
	}
	if h.userService == nil {
		return 0
	}
	user, err := h.userService.GetByID(ctx, w.UserID)
	if err != nil {
		slog.Warn("resolve withdrawal owner", "user_id", w.UserID, "error", err)
		return 0
	}
	return user.TelegramID
}

// OnSubmitFailed implements service.SubmitListener.
func (h *Handler) OnSubmitFailed(ctx context.Context, userID int64, in service.WithdrawalInput, err error) {
	if errors.Is(err, domain.ErrInsufficientBalance) {
		return
	}
	h.tgLogger.LogError(err, fmt.Sprintf("withdrawal submit: user %d, %s via %s", userID, tg.FormatKz(in.Amount), in.PaymentMethod))
}

// userMessage turns a service error into chat text.
func userMessage(err error) string {
	var (
		validationErr *domain.ValidationError
		balanceErr    *domain.InsufficientBalanceError
		storeErr      *domain.StoreError
	)
	switch {
	case errors.As(err, &validationErr):
		return capitalize(validationErr.Message) + "."
	case errors.As(err, &balanceErr):
		return fmt.Sprintf("Insufficient balance: you have %s.", tg.FormatKz(balanceErr.Balance))
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "Insufficient balance."
	case errors.As(err, &storeErr):
		return "Request failed: " + storeErr.Message
	}
	return "Something went wrong. Please try again later."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

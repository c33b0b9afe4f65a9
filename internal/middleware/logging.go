package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// slowUpdate is the handling time above which an update is logged at warn
// level.
const slowUpdate = 3 * time.Second

// Logging returns middleware that logs what each update was and how long it
// took to handle.
func Logging() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			attrs := updateAttrs(update)

			next(ctx, b, update)

			elapsed := time.Since(start)
			attrs = append(attrs, "duration", elapsed)
			if elapsed > slowUpdate {
				slog.Warn("slow update", attrs...)
				return
			}
			slog.Debug("update processed", attrs...)
		}
	}
}

func updateAttrs(update *models.Update) []any {
	switch {
	case update.Message != nil:
		attrs := []any{"type", "message", "chat_id", update.Message.Chat.ID}
		if update.Message.From != nil {
			attrs = append(attrs, "user_id", update.Message.From.ID)
		}
		return attrs
	case update.CallbackQuery != nil:
		attrs := []any{"type", "callback_query", "user_id", update.CallbackQuery.From.ID, "data", update.CallbackQuery.Data}
		if msg := update.CallbackQuery.Message.Message; msg != nil {
			attrs = append(attrs, "chat_id", msg.Chat.ID)
		}
		return attrs
	}
	return []any{"type", "unknown", "update_id", update.ID}
}

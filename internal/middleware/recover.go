package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const panicReplyText = "⚠️ Something went wrong. Please try again."

// Recover returns middleware that turns a handler panic into a log entry and
// a short reply. onPanic, if set, receives the panic as an error.
func Recover(onPanic func(err error, updateID int64)) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				slog.Error("panic recovered in handler",
					"panic", r,
					"update_id", update.ID,
					"stack", string(debug.Stack()),
				)
				if onPanic != nil {
					onPanic(fmt.Errorf("panic: %v", r), update.ID)
				}

				switch {
				case update.CallbackQuery != nil:
					b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
						CallbackQueryID: update.CallbackQuery.ID,
						Text:            panicReplyText,
					})
				case update.Message != nil:
					b.SendMessage(ctx, &bot.SendMessageParams{
						ChatID: update.Message.Chat.ID,
						Text:   panicReplyText,
					})
				}
			}()
			next(ctx, b, update)
		}
	}
}

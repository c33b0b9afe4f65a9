package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/watchearn/internal/domain"
)

type ctxKey string

const UserKey ctxKey = "user"

const AccessBlockedText = "🚫 Access blocked. Your account was flagged by our security checks. Contact support if you think this is a mistake."

// GetUser extracts user from context.
func GetUser(ctx context.Context) *domain.User {
	u, ok := ctx.Value(UserKey).(*domain.User)
	if !ok {
		return nil
	}
	return u
}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

type UserFinder interface {
	FindOrCreate(ctx context.Context, telegramID int64, firstName, username string, isAdmin bool) (*domain.User, bool, error)
}

// UserLoader returns middleware that loads the user into context and stops
// updates from blocked or fraud-flagged accounts. onCreate, if set, is called
// for newly registered users.
func UserLoader(users UserFinder, cfg interface{ IsAdmin(int64) bool }, onCreate func(*domain.User)) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			var chatID int64

			if update.Message != nil {
				from = update.Message.From
				chatID = update.Message.Chat.ID
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
				if update.CallbackQuery.Message.Message != nil {
					chatID = update.CallbackQuery.Message.Message.Chat.ID
				}
			}

			if from == nil {
				next(ctx, b, update)
				return
			}

			user, created, err := users.FindOrCreate(ctx, from.ID, from.FirstName, from.Username, cfg.IsAdmin(from.ID))
			if err != nil {
				slog.Error("load user", "error", err, "telegram_id", from.ID)
				next(ctx, b, update)
				return
			}
			if created && onCreate != nil {
				onCreate(user)
			}

			if user.AccessDenied() {
				slog.Warn("access denied", "telegram_id", from.ID, "blocked", user.Blocked, "fraud_flag", user.FraudFlag)
				if update.CallbackQuery != nil {
					b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
						CallbackQueryID: update.CallbackQuery.ID,
						Text:            AccessBlockedText,
						ShowAlert:       true,
					})
				} else if chatID != 0 {
					b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: AccessBlockedText})
				}
				return
			}

			next(WithUser(ctx, user), b, update)
		}
	}
}

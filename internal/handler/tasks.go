package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/middleware"
	tg "github.com/set-night/watchearn/internal/telegram"
)

func (h *Handler) handleTasks(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	text, markup, err := h.tasksPage(ctx, user, 0)
	if err != nil {
		slog.Error("list tasks", "error", err, "user_id", user.ID)
		h.reply(ctx, b, update.Message.Chat.ID, "⚠️ Could not load videos. Please try again later.")
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: markup,
	})
}

func (h *Handler) handleTasksPage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.answer(ctx, b, update, "", false)

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	page, err := strconv.Atoi(strings.TrimPrefix(update.CallbackQuery.Data, "tasks_page_"))
	if err != nil {
		return
	}

	chatID := callbackChatID(update)
	text, markup, err := h.tasksPage(ctx, user, page)
	if err != nil {
		slog.Error("list tasks", "error", err, "user_id", user.ID)
		return
	}

	// The balance view links here with page 0; send a fresh list instead of
	// replacing that message.
	if page == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        text,
			ParseMode:   models.ParseModeMarkdownV1,
			ReplyMarkup: markup,
		})
		return
	}
	if err := tg.EditMessage(ctx, b, chatID, callbackMessageID(update), text, markup); err != nil {
		slog.Error("edit tasks page", "error", err)
	}
}

func (h *Handler) tasksPage(ctx context.Context, user *domain.User, page int) (string, *models.InlineKeyboardMarkup, error) {
	tasks, err := h.taskService.Available(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}

	if len(tasks) == 0 {
		return "🎬 No videos available right now. Check back later!", nil, nil
	}

	totalPages := (len(tasks) + config.TasksPerPage - 1) / config.TasksPerPage
	page = min(max(page, 0), totalPages-1)
	start := page * config.TasksPerPage
	end := min(start+config.TasksPerPage, len(tasks))

	var sb strings.Builder
	sb.WriteString("🎬 *Videos to watch:*\n\n")

	var rows [][]models.InlineKeyboardButton
	for _, t := range tasks[start:end] {
		sb.WriteString(fmt.Sprintf("• *%s* (%s) — %s, %s\n",
			tg.EscapeMarkdown(t.Title),
			tg.EscapeMarkdown(t.ChannelLabel),
			tg.FormatKz(t.RewardAmount),
			tg.FormatRemaining(t.RequiredSeconds),
		))
		rows = append(rows, tg.ButtonRow(
			tg.InlineButton(fmt.Sprintf("▶️ %s · %s", t.Title, tg.FormatKz(t.RewardAmount)), fmt.Sprintf("task_%d", t.ID)),
		))
	}
	if totalPages > 1 {
		rows = append(rows, tg.PaginationRow(page, totalPages, "tasks_page"))
	}

	return sb.String(), tg.InlineKeyboard(rows...), nil
}

func (h *Handler) handleSelectTask(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	taskID, err := strconv.ParseInt(strings.TrimPrefix(update.CallbackQuery.Data, "task_"), 10, 64)
	if err != nil {
		h.answer(ctx, b, update, "", false)
		return
	}

	task, err := h.taskService.Get(ctx, taskID)
	if err != nil {
		if !errors.Is(err, domain.ErrTaskNotFound) {
			slog.Error("get task", "error", err, "task_id", taskID)
		}
		h.answer(ctx, b, update, "This video is no longer available.", true)
		return
	}

	chatID := callbackChatID(update)
	if existing, ok := h.tracker.Get(chatID); ok && existing.State() == domain.WatchRunning && existing.Task().ID == task.ID {
		h.answer(ctx, b, update, "You are already watching this video.", false)
		return
	} else if ok && existing.State() != domain.WatchRunning {
		if h.claims.Status(existing.ID) == domain.ClaimInFlight {
			h.answer(ctx, b, update, "Your reward is being credited, please wait.", true)
			return
		}
		h.releaseSession(existing)
	}

	session, err := h.tracker.Open(chatID, user.ID, task, h.watchHooks())
	if err != nil {
		var stateErr *domain.InvalidStateError
		if errors.As(err, &stateErr) {
			h.answer(ctx, b, update, "Finish or cancel the video you are watching first.", true)
			return
		}
		slog.Error("open watch session", "error", err, "task_id", task.ID)
		h.answer(ctx, b, update, "Could not start the video.", true)
		return
	}
	h.answer(ctx, b, update, "", false)
	h.metrics.WatchSession("started")

	msg, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        renderWatching(session),
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: watchingKeyboard(task),
	})
	if err != nil {
		slog.Error("send watch surface", "error", err, "session_id", session.ID)
		h.tracker.Remove(session)
		return
	}

	h.attachSurface(session, &watchSurface{
		chatID:     chatID,
		messageID:  msg.ID,
		telegramID: user.TelegramID,
	})
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/service"
	tg "github.com/set-night/watchearn/internal/telegram"
	"github.com/shopspring/decimal"
)

const (
	progressBarWidth   = 12
	surfaceEditTimeout = 5 * time.Second
)

var errSurfaceClosed = errors.New("watch surface closed")

// watchSurface is the chat message that shows one session's progress.
type watchSurface struct {
	chatID     int64
	messageID  int
	telegramID int64

	mu     sync.Mutex
	closed bool
}

// draw runs fn unless the surface is closed. Draws and close are serialized,
// so nothing is drawn after close returns.
func (w *watchSurface) draw(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errSurfaceClosed
	}
	return fn()
}

func (w *watchSurface) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *watchSurface) edit(ctx context.Context, b *bot.Bot, text string, markup *models.InlineKeyboardMarkup) error {
	return w.draw(func() error {
		return tg.EditMessage(ctx, b, w.chatID, w.messageID, text, markup)
	})
}

func (h *Handler) watchHooks() service.WatchHooks {
	return service.WatchHooks{
		OnTick:      h.onWatchTick,
		OnCompleted: h.onWatchCompleted,
	}
}

// attachSurface binds the progress message to its session. A session can
// finish before the message is sent, so the completed view is drawn here too.
func (h *Handler) attachSurface(s *service.WatchSession, surface *watchSurface) {
	h.mu.Lock()
	h.surfaces[s.ID] = surface
	h.mu.Unlock()

	if s.State() == domain.WatchCompleted {
		h.drawCompleted(s, surface)
	}
}

func (h *Handler) surfaceFor(sessionID string) *watchSurface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.surfaces[sessionID]
}

// detachSurface closes the session's surface. It waits for an edit in
// progress to finish.
func (h *Handler) detachSurface(sessionID string) {
	h.mu.Lock()
	surface := h.surfaces[sessionID]
	delete(h.surfaces, sessionID)
	h.mu.Unlock()

	if surface != nil {
		surface.close()
	}
}

// releaseSession drops everything held for a session that is no longer shown.
func (h *Handler) releaseSession(s *service.WatchSession) {
	h.tracker.Remove(s)
	h.claims.Forget(s.ID)
	h.detachSurface(s.ID)
}

func (h *Handler) onWatchTick(s *service.WatchSession) {
	if s.State() != domain.WatchRunning || s.ElapsedSeconds()%config.ProgressEditEvery != 0 {
		return
	}
	surface := h.surfaceFor(s.ID)
	if surface == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), surfaceEditTimeout)
	defer cancel()
	if err := surface.edit(ctx, h.bot, renderWatching(s), watchingKeyboard(s.Task())); err != nil && !errors.Is(err, errSurfaceClosed) {
		slog.Debug("edit watch progress", "error", err, "session_id", s.ID)
	}
}

func (h *Handler) onWatchCompleted(s *service.WatchSession) {
	h.metrics.WatchSession("completed")
	slog.Info("watch session completed", "session_id", s.ID, "user_id", s.UserID, "task_id", s.Task().ID)

	if surface := h.surfaceFor(s.ID); surface != nil {
		h.drawCompleted(s, surface)
	}
}

func (h *Handler) drawCompleted(s *service.WatchSession, surface *watchSurface) {
	ctx, cancel := context.WithTimeout(context.Background(), surfaceEditTimeout)
	defer cancel()
	if err := surface.edit(ctx, h.bot, renderCompleted(s.Task()), claimKeyboard(s.Task())); err != nil && !errors.Is(err, errSurfaceClosed) {
		slog.Error("edit watch surface", "error", err, "session_id", s.ID)
	}
}

func renderWatching(s *service.WatchSession) string {
	task := s.Task()
	return fmt.Sprintf(
		"🎬 *%s*\n📺 %s\n💰 Reward: %s\n\n⏱ Remaining: %s\n%s\n\n"+
			"_Open the video and keep watching. The reward unlocks when the timer ends._",
		tg.EscapeMarkdown(task.Title),
		tg.EscapeMarkdown(task.ChannelLabel),
		tg.FormatKz(task.RewardAmount),
		tg.FormatRemaining(s.RemainingSeconds()),
		tg.ProgressBar(s.ProgressFraction(), progressBarWidth),
	)
}

func renderCompleted(task domain.Task) string {
	return fmt.Sprintf("✅ *%s*\n\nYou watched the required time. Claim your reward of %s!",
		tg.EscapeMarkdown(task.Title), tg.FormatKz(task.RewardAmount))
}

func renderClaimed(task domain.Task, newBalance decimal.Decimal) string {
	return fmt.Sprintf("🎉 *%s*\n\nReward credited: +%s\n💰 Balance: %s",
		tg.EscapeMarkdown(task.Title), tg.FormatKz(task.RewardAmount), tg.FormatKz(newBalance))
}

func watchingKeyboard(task domain.Task) *models.InlineKeyboardMarkup {
	return tg.InlineKeyboard(
		tg.ButtonRow(tg.URLButton("▶️ Open video", service.WatchURL(task.MediaReference))),
		tg.ButtonRow(tg.InlineButton("❌ Cancel", "watch_cancel")),
	)
}

func claimKeyboard(task domain.Task) *models.InlineKeyboardMarkup {
	return tg.InlineKeyboard(
		tg.ButtonRow(tg.InlineButton("💰 Claim "+tg.FormatKz(task.RewardAmount), "watch_claim")),
		tg.ButtonRow(tg.InlineButton("❌ Close", "watch_cancel")),
	)
}

func moreVideosKeyboard() *models.InlineKeyboardMarkup {
	return tg.InlineKeyboard(tg.ButtonRow(tg.InlineButton("🎬 More videos", "tasks_page_0")))
}

func (h *Handler) handleWatchCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	chatID := callbackChatID(update)
	if s, ok := h.tracker.Get(chatID); ok {
		if h.claims.Status(s.ID) == domain.ClaimInFlight {
			h.answer(ctx, b, update, "Your reward is being credited, please wait.", true)
			return
		}
		if s.State() == domain.WatchRunning {
			h.metrics.WatchSession("cancelled")
		}
		h.releaseSession(s)
	}
	h.answer(ctx, b, update, "", false)

	if err := tg.EditMessage(ctx, b, chatID, callbackMessageID(update), "❌ Video closed.", moreVideosKeyboard()); err != nil {
		slog.Debug("edit cancelled surface", "error", err)
	}
}

func (h *Handler) handleWatchClaim(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	chatID := callbackChatID(update)
	s, ok := h.tracker.Get(chatID)
	if !ok {
		h.answer(ctx, b, update, "This session has expired. Open the video again from /tasks.", true)
		return
	}

	_, err := h.claims.Claim(ctx, s)
	if err == nil {
		h.answer(ctx, b, update, "", false)
		return
	}

	var stateErr *domain.InvalidStateError
	if errors.As(err, &stateErr) {
		h.answer(ctx, b, update, claimRefusal(s, h.claims.Status(s.ID)), true)
		return
	}
	// The listener already redrew the surface with the failure.
	h.answer(ctx, b, update, "", false)
}

// claimRefusal explains why a claim was not started.
func claimRefusal(s *service.WatchSession, status domain.ClaimStatus) string {
	switch {
	case status == domain.ClaimInFlight:
		return "Your reward is being credited, please wait."
	case status == domain.ClaimSucceeded:
		return "This reward has already been credited."
	case s.State() == domain.WatchRunning:
		return fmt.Sprintf("Keep watching: %s left.", tg.FormatRemaining(s.RemainingSeconds()))
	}
	return "This session has ended. Open the video again from /tasks."
}

// OnClaimSucceeded implements service.ClaimListener.
func (h *Handler) OnClaimSucceeded(ctx context.Context, s *service.WatchSession, newBalance decimal.Decimal) {
	task := s.Task()
	h.showClaimResult(ctx, s, renderClaimed(task, newBalance), moreVideosKeyboard())

	if surface := h.surfaceFor(s.ID); surface != nil {
		h.tgLogger.LogTaskReward(surface.telegramID, task, s.ID)
	}
	h.releaseSession(s)
}

// OnClaimFailed implements service.ClaimListener. The session stays open so
// the claim can be retried, unless the task was already rewarded.
func (h *Handler) OnClaimFailed(ctx context.Context, s *service.WatchSession, err error) {
	task := s.Task()

	switch {
	case errors.Is(err, domain.ErrTaskAlreadyDone):
		h.showClaimResult(ctx, s, "ℹ️ You have already been rewarded for this video.", moreVideosKeyboard())
		h.releaseSession(s)
		return
	case errors.Is(err, domain.ErrClaimInFlight):
		h.showClaimResult(ctx, s, "⏳ Your reward is already being processed.", claimKeyboard(task))
		return
	}

	h.tgLogger.LogError(err, fmt.Sprintf("claim reward: session %s, task %d", s.ID, task.ID))
	text := fmt.Sprintf("⚠️ Could not credit your reward: %s\n\nTap Claim to try again.", tg.EscapeMarkdown(claimFailureMessage(err)))
	h.showClaimResult(ctx, s, text, claimKeyboard(task))
}

func claimFailureMessage(err error) string {
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) && storeErr.Message != "" {
		return storeErr.Message
	}
	return "service unavailable"
}

// showClaimResult edits the surface, or sends a new message if the surface
// is gone.
func (h *Handler) showClaimResult(ctx context.Context, s *service.WatchSession, text string, markup *models.InlineKeyboardMarkup) {
	if surface := h.surfaceFor(s.ID); surface != nil {
		if err := surface.edit(ctx, h.bot, text, markup); err == nil {
			return
		}
	}
	if _, err := h.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      s.ChatID,
		Text:        text,
		ParseMode:   models.ParseModeMarkdownV1,
		ReplyMarkup: markup,
	}); err != nil {
		slog.Error("send claim result", "error", err, "session_id", s.ID)
	}
}

package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/watchearn/internal/domain"
)

// Ticker is a cancellable tick source. *time.Ticker satisfies it through
// timeTicker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// WatchHooks are called synchronously with the transition that triggers
// them, outside the session lock.
type WatchHooks struct {
	OnTick      func(s *WatchSession)
	OnCompleted func(s *WatchSession)
}

// WatchSession counts watched seconds for one task on one chat surface.
type WatchSession struct {
	ID     string
	UserID int64
	ChatID int64

	interval  time.Duration
	newTicker TickerFactory
	hooks     WatchHooks

	mu      sync.Mutex
	task    domain.Task
	elapsed int
	state   domain.WatchState

	ticker      Ticker
	done        chan struct{}
	releaseOnce sync.Once
}

func NewWatchSession(userID, chatID int64, interval time.Duration, newTicker TickerFactory, hooks WatchHooks) *WatchSession {
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	return &WatchSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		ChatID:    chatID,
		interval:  interval,
		newTicker: newTicker,
		hooks:     hooks,
		state:     domain.WatchIdle,
	}
}

// Start begins counting for task. Only an idle session can be started.
func (s *WatchSession) Start(task domain.Task) error {
	s.mu.Lock()
	if s.state != domain.WatchIdle {
		state := s.state
		s.mu.Unlock()
		return &domain.InvalidStateError{Op: "start watch", Reason: fmt.Sprintf("session is %s", state)}
	}

	s.task = task
	s.elapsed = 0

	if task.RequiredSeconds <= 0 {
		s.state = domain.WatchCompleted
		s.mu.Unlock()
		s.fireCompleted()
		return nil
	}

	s.state = domain.WatchRunning
	s.ticker = s.newTicker(s.interval)
	s.done = make(chan struct{})
	ticker, done := s.ticker, s.done
	s.mu.Unlock()

	go s.run(ticker, done)
	return nil
}

func (s *WatchSession) run(ticker Ticker, done <-chan struct{}) {
	defer s.releaseTicker()
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
			if !s.advance() {
				return
			}
		}
	}
}

// Tick advances a running session by one second. It is a no-op otherwise.
func (s *WatchSession) Tick() {
	s.advance()
}

// advance reports whether the session is still running afterwards.
func (s *WatchSession) advance() bool {
	s.mu.Lock()
	if s.state != domain.WatchRunning {
		s.mu.Unlock()
		return false
	}

	s.elapsed++
	completed := s.elapsed >= s.task.RequiredSeconds
	if completed {
		s.state = domain.WatchCompleted
	}
	s.mu.Unlock()

	if s.hooks.OnTick != nil {
		s.hooks.OnTick(s)
	}
	if completed {
		s.releaseTicker()
		s.fireCompleted()
		return false
	}
	return true
}

// Stop cancels an idle or running session. A completed session stays
// completed.
func (s *WatchSession) Stop() {
	s.mu.Lock()
	if s.state == domain.WatchIdle || s.state == domain.WatchRunning {
		s.state = domain.WatchCancelled
	}
	s.mu.Unlock()

	s.releaseTicker()
}

func (s *WatchSession) releaseTicker() {
	s.mu.Lock()
	ticker, done := s.ticker, s.done
	s.mu.Unlock()
	if ticker == nil {
		return
	}

	s.releaseOnce.Do(func() {
		ticker.Stop()
		close(done)
	})
}

func (s *WatchSession) fireCompleted() {
	if s.hooks.OnCompleted != nil {
		s.hooks.OnCompleted(s)
	}
}

func (s *WatchSession) Task() domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

func (s *WatchSession) State() domain.WatchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *WatchSession) ElapsedSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// ProgressFraction is elapsed/required clamped to [0, 1].
func (s *WatchSession) ProgressFraction() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task.RequiredSeconds <= 0 {
		return 1
	}
	return min(float64(s.elapsed)/float64(s.task.RequiredSeconds), 1)
}

func (s *WatchSession) RemainingSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(s.task.RequiredSeconds-s.elapsed, 0)
}

// WatchTracker keeps at most one watch session per chat.
type WatchTracker struct {
	interval  time.Duration
	newTicker TickerFactory

	mu       sync.Mutex
	sessions map[int64]*WatchSession
}

func NewWatchTracker(interval time.Duration, newTicker TickerFactory) *WatchTracker {
	return &WatchTracker{
		interval:  interval,
		newTicker: newTicker,
		sessions:  make(map[int64]*WatchSession),
	}
}

// Open starts a session for task in chatID. Reopening the task that is
// already running returns the running session.
func (t *WatchTracker) Open(chatID, userID int64, task domain.Task, hooks WatchHooks) (*WatchSession, error) {
	t.mu.Lock()
	if existing, ok := t.sessions[chatID]; ok {
		if existing.State() == domain.WatchRunning {
			t.mu.Unlock()
			if existing.Task().ID == task.ID {
				return existing, nil
			}
			return nil, &domain.InvalidStateError{
				Op:     "open watch",
				Reason: fmt.Sprintf("%v: task %d", domain.ErrSessionActive, existing.Task().ID),
			}
		}
		existing.Stop()
	}

	s := NewWatchSession(userID, chatID, t.interval, t.newTicker, hooks)
	t.sessions[chatID] = s
	t.mu.Unlock()

	if err := s.Start(task); err != nil {
		t.mu.Lock()
		delete(t.sessions, chatID)
		t.mu.Unlock()
		return nil, err
	}

	slog.Debug("watch session opened", "session_id", s.ID, "chat_id", chatID, "task_id", task.ID)
	return s, nil
}

func (t *WatchTracker) Get(chatID int64) (*WatchSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[chatID]
	return s, ok
}

// Close stops and forgets the session in chatID, returning it if there was one.
func (t *WatchTracker) Close(chatID int64) *WatchSession {
	t.mu.Lock()
	s, ok := t.sessions[chatID]
	delete(t.sessions, chatID)
	t.mu.Unlock()

	if !ok {
		return nil
	}
	s.Stop()
	return s
}

// Remove stops s and unregisters it if it is still the session of its chat.
func (t *WatchTracker) Remove(s *WatchSession) {
	t.mu.Lock()
	if t.sessions[s.ChatID] == s {
		delete(t.sessions, s.ChatID)
	}
	t.mu.Unlock()
	s.Stop()
}

func (t *WatchTracker) Shutdown() {
	t.mu.Lock()
	sessions := t.sessions
	t.sessions = make(map[int64]*WatchSession)
	t.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	slog.Info("watch sessions stopped", "count", len(sessions))
}

func (t *WatchTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.sessions {
		if s.State() == domain.WatchRunning {
			n++
		}
	}
	return n
}

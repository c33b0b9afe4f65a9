package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/watchearn/internal/domain"
)

type apiRecorder struct {
	mu      sync.Mutex
	methods []string
}

func (r *apiRecorder) calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.methods {
		if m == method {
			n++
		}
	}
	return n
}

func newTestBot(t *testing.T) (*bot.Bot, *apiRecorder) {
	t.Helper()
	rec := &apiRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		rec.mu.Lock()
		rec.methods = append(rec.methods, method)
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if method == "sendMessage" {
			w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":10,"type":"private"}}}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New("test-token", bot.WithSkipGetMe(), bot.WithServerURL(srv.URL))
	if err != nil {
		t.Fatalf("bot.New() error = %v", err)
	}
	return b, rec
}

func messageUpdate(fromID int64) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   1,
			Chat: models.Chat{ID: 10, Type: models.ChatTypePrivate},
			From: &models.User{ID: fromID, FirstName: "Ana"},
			Text: "/start",
		},
	}
}

type fakeFinder struct {
	user    *domain.User
	created bool
	err     error
}

func (f *fakeFinder) FindOrCreate(_ context.Context, telegramID int64, firstName, username string, isAdmin bool) (*domain.User, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	u := *f.user
	u.TelegramID = telegramID
	u.IsAdmin = isAdmin
	return &u, f.created, nil
}

type adminList []int64

func (a adminList) IsAdmin(id int64) bool {
	for _, x := range a {
		if x == id {
			return true
		}
	}
	return false
}

func TestUserLoader(t *testing.T) {
	tests := []struct {
		name        string
		finder      *fakeFinder
		wantNext    bool
		wantUser    bool
		wantSent    int
		wantCreated int
	}{
		{"existing user", &fakeFinder{user: &domain.User{ID: 1}}, true, true, 0, 0},
		{"new user", &fakeFinder{user: &domain.User{ID: 2}, created: true}, true, true, 0, 1},
		{"blocked user", &fakeFinder{user: &domain.User{ID: 3, Blocked: true}}, false, false, 1, 0},
		{"fraud flagged user", &fakeFinder{user: &domain.User{ID: 4, FraudFlag: true}}, false, false, 1, 0},
		{"store error", &fakeFinder{err: errors.New("db down")}, true, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, rec := newTestBot(t)
			created := 0
			mw := UserLoader(tt.finder, adminList{42}, func(*domain.User) { created++ })

			called := false
			var got *domain.User
			mw(func(ctx context.Context, _ *bot.Bot, _ *models.Update) {
				called = true
				got = GetUser(ctx)
			})(context.Background(), b, messageUpdate(42))

			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if (got != nil) != tt.wantUser {
				t.Errorf("user in context = %v, want %v", got != nil, tt.wantUser)
			}
			if got != nil && !got.IsAdmin {
				t.Error("admin flag not applied")
			}
			if n := rec.calls("sendMessage"); n != tt.wantSent {
				t.Errorf("sendMessage calls = %d, want %d", n, tt.wantSent)
			}
			if created != tt.wantCreated {
				t.Errorf("onCreate calls = %d, want %d", created, tt.wantCreated)
			}
		})
	}
}

type fakeLimiter struct {
	allow bool
	err   error
}

func (f fakeLimiter) Allow(context.Context, int64) (bool, int64, error) {
	return f.allow, 1, f.err
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		limiter  fakeLimiter
		wantNext bool
		wantSent int
	}{
		{"allowed", fakeLimiter{allow: true}, true, 0},
		{"limited", fakeLimiter{allow: false}, false, 1},
		{"limiter error fails open", fakeLimiter{err: errors.New("redis down")}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, rec := newTestBot(t)
			called := false
			RateLimit(tt.limiter)(func(context.Context, *bot.Bot, *models.Update) {
				called = true
			})(context.Background(), b, messageUpdate(1))

			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if n := rec.calls("sendMessage"); n != tt.wantSent {
				t.Errorf("sendMessage calls = %d, want %d", n, tt.wantSent)
			}
		})
	}
}

func TestRecoverSwallowsPanic(t *testing.T) {
	b, rec := newTestBot(t)

	var reported error
	Recover(func(err error, _ int64) { reported = err })(func(context.Context, *bot.Bot, *models.Update) {
		panic("boom")
	})(context.Background(), b, messageUpdate(1))

	if reported == nil || !strings.Contains(reported.Error(), "boom") {
		t.Errorf("onPanic error = %v, want the panic value", reported)
	}
	if rec.calls("sendMessage") != 1 {
		t.Errorf("sendMessage calls = %d, want 1", rec.calls("sendMessage"))
	}
}

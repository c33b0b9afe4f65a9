package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	watchearn "github.com/set-night/watchearn"
	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/handler"
	"github.com/set-night/watchearn/internal/metrics"
	"github.com/set-night/watchearn/internal/middleware"
	"github.com/set-night/watchearn/internal/repository"
	"github.com/set-night/watchearn/internal/server"
	"github.com/set-night/watchearn/internal/service"
	"github.com/set-night/watchearn/internal/telegram"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(watchearn.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	queries := repository.New(pool)

	// Connect to Redis
	rdb, err := repository.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	m := metrics.New()

	// Initialize services
	userService := service.NewUserService(queries)
	billingService := service.NewBillingService(pool, queries)
	taskService := service.NewTaskService(queries, service.NewTaskCache(config.TaskCacheDuration))
	ledger := service.NewWithdrawalLedger(pool, queries)
	media := service.NewMediaResolver(config.MediaFetchTimeout)
	tracker := service.NewWatchTracker(config.TickInterval, nil)
	claimLock := service.NewClaimLock(rdb, config.ClaimLockTTL)
	rateLimiter := service.NewRateLimiter(rdb, config.RateLimitPerMinute)

	if cfg.TasksFile != "" {
		if _, err := taskService.SeedFromFile(ctx, cfg.TasksFile); err != nil {
			slog.Error("failed to seed tasks", "error", err, "path", cfg.TasksFile)
			os.Exit(1)
		}
	}

	m.RegisterGauge("watchearn_watch_sessions_active", "Watch sessions currently tracked.", func() float64 {
		return float64(tracker.Active())
	})

	// Ops server: health and metrics
	ops := server.NewOpsServer(cfg.Port, server.NewRouter(m.Registry, map[string]server.Check{
		"postgres": pool.Ping,
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}))
	ops.Start()

	// Handler and logger pointers for use in closures
	var (
		h        *handler.Handler
		tgLogger *telegram.TelegramLogger
	)

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(func(err error, updateID int64) {
				tgLogger.LogError(err, fmt.Sprintf("update %d", updateID))
			}),
			middleware.Logging(),
			middleware.RateLimit(rateLimiter),
			middleware.UserLoader(userService, cfg, func(u *domain.User) {
				tgLogger.LogRegistration(u.TelegramID, u.FirstName, u.Username)
			}),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil || update.Message == nil {
				return
			}
			// Skip unknown commands
			if len(update.Message.Text) > 0 && update.Message.Text[0] == '/' {
				return
			}
			h.HandleText(ctx, b, update)
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	tgLogger = telegram.NewTelegramLogger(b, cfg)

	h = handler.New(handler.Deps{
		Bot:             b,
		Cfg:             cfg,
		UserService:     userService,
		BillingService:  billingService,
		TaskService:     taskService,
		Media:           media,
		Tracker:         tracker,
		Settler:         claimLock.Wrap(billingService),
		WithdrawalStore: ledger,
		Ledger:          ledger,
		Queries:         queries,
		TgLogger:        tgLogger,
		Metrics:         m,
	})

	// Register all handlers
	h.Register()

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	tracker.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		slog.Error("ops server shutdown", "error", err)
	}

	slog.Info("bot stopped gracefully")
}

package handler

import (
	"sync"

	"github.com/go-telegram/bot"
	"github.com/set-night/watchearn/internal/config"
	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/metrics"
	"github.com/set-night/watchearn/internal/repository"
	"github.com/set-night/watchearn/internal/service"
	"github.com/set-night/watchearn/internal/telegram"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot            *bot.Bot
	cfg            *config.Config
	userService    *service.UserService
	billingService *service.BillingService
	taskService    *service.TaskService
	media          *service.MediaResolver
	tracker        *service.WatchTracker
	claims         *service.RewardClaimCoordinator
	withdrawals    *service.WithdrawalManager
	ledger         *service.WithdrawalLedger
	queries        *repository.Queries
	tgLogger       *telegram.TelegramLogger
	metrics        *metrics.Metrics

	mu       sync.Mutex
	surfaces map[string]*watchSurface       // by watch session id
	forms    map[int64]domain.PaymentMethod // withdraw form awaiting amount and phone, by chat id
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot             *bot.Bot
	Cfg             *config.Config
	UserService     *service.UserService
	BillingService  *service.BillingService
	TaskService     *service.TaskService
	Media           *service.MediaResolver
	Tracker         *service.WatchTracker
	Settler         service.Settler
	WithdrawalStore service.WithdrawalStore
	Ledger          *service.WithdrawalLedger
	Queries         *repository.Queries
	TgLogger        *telegram.TelegramLogger
	Metrics         *metrics.Metrics
}

// New creates a new Handler from the provided dependencies. The handler is
// the listener for reward claims and withdrawal submissions.
func New(deps Deps) *Handler {
	h := &Handler{
		bot:            deps.Bot,
		cfg:            deps.Cfg,
		userService:    deps.UserService,
		billingService: deps.BillingService,
		taskService:    deps.TaskService,
		media:          deps.Media,
		tracker:        deps.Tracker,
		ledger:         deps.Ledger,
		queries:        deps.Queries,
		tgLogger:       deps.TgLogger,
		metrics:        deps.Metrics,
		surfaces:       make(map[string]*watchSurface),
		forms:          make(map[int64]domain.PaymentMethod),
	}
	h.claims = service.NewRewardClaimCoordinator(deps.Settler, h, deps.Cfg.SettlementTimeout, deps.Metrics)
	h.withdrawals = service.NewWithdrawalManager(
		deps.WithdrawalStore,
		service.WithdrawalPolicyFromConfig(deps.Cfg),
		h,
		deps.Cfg.StoreTimeout,
		deps.Metrics,
	)
	return h
}

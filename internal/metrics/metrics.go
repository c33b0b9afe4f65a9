package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

// Metrics holds the bot's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	watchSessions     *prometheus.CounterVec
	rewardClaims      *prometheus.CounterVec
	rewardPaid        prometheus.Counter
	withdrawals       *prometheus.CounterVec
	withdrawalReviews *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		watchSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchearn_watch_sessions_total",
			Help: "Watch session transitions by state.",
		}, []string{"state"}),
		rewardClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchearn_reward_claims_total",
			Help: "Reward claim attempts by result.",
		}, []string{"result"}),
		rewardPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchearn_reward_paid_kz_total",
			Help: "Sum of settled rewards.",
		}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchearn_withdrawal_requests_total",
			Help: "Withdrawal submissions by result.",
		}, []string{"result"}),
		withdrawalReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchearn_withdrawal_reviews_total",
			Help: "Reviewed withdrawals by status.",
		}, []string{"status"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.watchSessions,
		m.rewardClaims,
		m.rewardPaid,
		m.withdrawals,
		m.withdrawalReviews,
	)
	return m
}

// RegisterGauge exposes a value sampled at scrape time.
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

func (m *Metrics) WatchSession(state string) {
	if m == nil {
		return
	}
	m.watchSessions.WithLabelValues(state).Inc()
}

func (m *Metrics) RewardClaim(result string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.rewardClaims.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.rewardPaid.Add(amount.InexactFloat64())
	}
}

func (m *Metrics) WithdrawalRequest(result string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(result).Inc()
}

func (m *Metrics) WithdrawalReview(status string) {
	if m == nil {
		return
	}
	m.withdrawalReviews.WithLabelValues(status).Inc()
}

const (
	ResultSuccess  = "success"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives economy events worth counting.
type Recorder interface {
	ObserveTick(duration time.Duration)
	IncTickFailures()
	AddDeposit(reason string, amount int64)
	IncDepositFailures()
	SetPendingDeposits(n int)
	IncCheckin(result string)
}

// Check-in results
const (
	CheckinClaimed     = "claimed"
	CheckinTooEarly    = "too_early"
	CheckinConfigError = "config_error"
	CheckinError       = "error"
)

// Provider records into prometheus collectors
type Provider struct {
	tickDuration    prometheus.Histogram
	tickFailures    prometheus.Counter
	deposits        *prometheus.CounterVec
	depositedAmount *prometheus.CounterVec
	depositFailures prometheus.Counter
	pendingDeposits prometheus.Gauge
	checkins        *prometheus.CounterVec
}

// ParticipantCounter reports the current number of tracked participants.
type ParticipantCounter func() (text, voice int)

// New registers the economy collectors on reg. When participants is non-nil,
// gauges for the live activity sets are registered too.
func New(reg prometheus.Registerer, participants ParticipantCounter) *Provider {
	factory := promauto.With(reg)

	p := &Provider{
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "starbucks_reward_tick_duration_seconds",
			Help:    "Duration of reward settlement ticks in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		tickFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "starbucks_reward_tick_failures_total",
			Help: "Reward ticks that hit an internal fault",
		}),
		deposits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "starbucks_deposits_total",
			Help: "Ledger deposits issued, by reason",
		}, []string{"reason"}),
		depositedAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "starbucks_deposited_amount_total",
			Help: "Starbucks deposited, by reason",
		}, []string{"reason"}),
		depositFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "starbucks_deposit_failures_total",
			Help: "Ledger deposits that failed and were queued for retry",
		}),
		pendingDeposits: factory.NewGauge(prometheus.GaugeOpts{
			Name: "starbucks_pending_deposits",
			Help: "Deposits waiting for retry",
		}),
		checkins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "starbucks_checkins_total",
			Help: "Check-in attempts, by result",
		}, []string{"result"}),
	}

	if participants != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "starbucks_text_participants",
			Help: "Users who chatted in the current interval",
		}, func() float64 {
			text, _ := participants()
			return float64(text)
		})
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "starbucks_voice_participants",
			Help: "Users connected and undeafened in voice",
		}, func() float64 {
			_, voice := participants()
			return float64(voice)
		})
	}

	return p
}

func (p *Provider) ObserveTick(duration time.Duration) {
	p.tickDuration.Observe(duration.Seconds())
}

func (p *Provider) IncTickFailures() {
	p.tickFailures.Inc()
}

func (p *Provider) AddDeposit(reason string, amount int64) {
	p.deposits.WithLabelValues(reason).Inc()
	p.depositedAmount.WithLabelValues(reason).Add(float64(amount))
}

func (p *Provider) IncDepositFailures() {
	p.depositFailures.Inc()
}

func (p *Provider) SetPendingDeposits(n int) {
	p.pendingDeposits.Set(float64(n))
}

func (p *Provider) IncCheckin(result string) {
	p.checkins.WithLabelValues(result).Inc()
}

// Noop is a no-op implementation for when metrics are disabled.
type Noop struct{}

func (Noop) ObserveTick(_ time.Duration)  {}
func (Noop) IncTickFailures()             {}
func (Noop) AddDeposit(_ string, _ int64) {}
func (Noop) IncDepositFailures()          {}
func (Noop) SetPendingDeposits(_ int)     {}
func (Noop) IncCheckin(_ string)          {}

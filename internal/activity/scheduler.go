package activity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"starbucks/internal/metrics"
	"starbucks/internal/rewards"
)

// DefaultInterval is how often activity is settled.
const DefaultInterval = time.Minute

// maxPending bounds the failed deposits kept for retry.
const maxPending = 4096

// Depositor credits expiring Starbucks to a user.
type Depositor interface {
	Deposit(ctx context.Context, userID string, amount int64, reason string) error
}

// ValueLoader loads a fresh snapshot of the reward table.
type ValueLoader interface {
	Load() (rewards.Values, error)
}

// Ticker is the subset of time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type deposit struct {
	userID string
	amount int64
	reason string
}

// Report summarizes one tick.
type Report struct {
	VoiceDeposits int
	ChatDeposits  int
	Retried       int
	Failed        int
	Pending       int
	Duration      time.Duration
}

// Scheduler settles the aggregator on a fixed interval and deposits rewards.
type Scheduler struct {
	agg     *Aggregator
	values  ValueLoader
	ledger  Depositor
	metrics metrics.Recorder
	logger  zerolog.Logger

	interval  time.Duration
	newTicker func(time.Duration) Ticker
	now       func() time.Time

	tickMu  sync.Mutex
	pending []deposit
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTicker replaces the wall-clock ticker, for tests.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(s *Scheduler) { s.newTicker = newTicker }
}

// WithClock replaces time.Now for tick duration measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler creates a scheduler. It does nothing until Run is called.
func NewScheduler(agg *Aggregator, values ValueLoader, ledger Depositor, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		agg:       agg,
		values:    values,
		ledger:    ledger,
		metrics:   metrics.Noop{},
		logger:    logger,
		interval:  DefaultInterval,
		newTicker: NewTimeTicker,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks until ctx is cancelled. A ticker drops fires while a tick is still
// running, so slow ticks are skipped rather than queued.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.newTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("reward scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reward scheduler stopped")
			return
		case <-ticker.C():
			s.Tick(ctx)
		}
	}
}

// Tick settles one interval and issues deposits. It never panics; faults are
// logged and the next tick proceeds normally.
func (s *Scheduler) Tick(ctx context.Context) (report Report) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprint(r)).Msg("reward tick failed")
			s.metrics.IncTickFailures()
		}
		report.Duration = s.now().Sub(start)
		report.Pending = len(s.pending)
		s.metrics.ObserveTick(report.Duration)
		s.metrics.SetPendingDeposits(len(s.pending))
		if report.Duration > s.interval {
			s.logger.Warn().Dur("duration", report.Duration).Dur("interval", s.interval).Msg("reward tick overran its interval")
		}
	}()

	values, err := s.values.Load()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load point values, settling with zero rewards")
		s.metrics.IncTickFailures()
		values = rewards.Values{}
	}

	tick := s.agg.Settle(values)

	queue := s.pending
	report.Retried = len(queue)
	s.pending = nil
	for _, userID := range sortedKeys(tick.Voice) {
		if amount := tick.Voice[userID]; amount > 0 {
			queue = append(queue, deposit{userID: userID, amount: amount, reason: rewards.ActionVoiceChat})
		}
	}
	for _, userID := range sortedKeys(tick.Chat) {
		if amount := tick.Chat[userID]; amount > 0 {
			queue = append(queue, deposit{userID: userID, amount: amount, reason: rewards.ActionTextChat})
		}
	}

	depositCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	var failed []deposit
	for i, d := range queue {
		if depositCtx.Err() != nil {
			failed = append(failed, queue[i:]...)
			s.logger.Warn().Int("remaining", len(queue)-i).Msg("reward tick out of time, deferring deposits")
			break
		}
		if err := s.safeDeposit(depositCtx, d); err != nil {
			s.logger.Warn().Err(err).Str("user", d.userID).Int64("amount", d.amount).Msg("deposit failed, will retry next tick")
			s.metrics.IncDepositFailures()
			failed = append(failed, d)
			continue
		}
		s.metrics.AddDeposit(d.reason, d.amount)
		if i < report.Retried {
			continue
		}
		if d.reason == rewards.ActionVoiceChat {
			report.VoiceDeposits++
		} else {
			report.ChatDeposits++
		}
	}

	if len(failed) > maxPending {
		dropped := len(failed) - maxPending
		s.logger.Error().Int("dropped", dropped).Msg("too many pending deposits, dropping oldest")
		failed = failed[dropped:]
	}
	s.pending = failed
	report.Failed = len(failed)

	if !tick.Empty() || report.Failed > 0 {
		s.logger.Debug().
			Int("voice", report.VoiceDeposits).
			Int("chat", report.ChatDeposits).
			Int("retried", report.Retried).
			Int("failed", report.Failed).
			Msg("reward tick settled")
	}
	return report
}

// safeDeposit turns a panicking ledger call into an error so the deposit stays
// queued for retry.
func (s *Scheduler) safeDeposit(ctx context.Context, d deposit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deposit panicked: %v", r)
		}
	}()
	return s.ledger.Deposit(ctx, d.userID, d.amount, d.reason)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

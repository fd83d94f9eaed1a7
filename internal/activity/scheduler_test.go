package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starbucks/internal/rewards"
)

type depositCall struct {
	UserID string
	Amount int64
	Reason string
}

type mockLedger struct {
	mu     sync.Mutex
	calls  []depositCall
	fail   map[string]bool
	panics map[string]bool
}

func (m *mockLedger) Deposit(_ context.Context, userID string, amount int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panics[userID] {
		panic("driver bug")
	}
	if m.fail[userID] {
		return errors.New("ledger unavailable")
	}
	m.calls = append(m.calls, depositCall{UserID: userID, Amount: amount, Reason: reason})
	return nil
}

func (m *mockLedger) Calls() []depositCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]depositCall(nil), m.calls...)
}

type stubLoader struct {
	values rewards.Values
	err    error
	panics bool
}

func (s stubLoader) Load() (rewards.Values, error) {
	if s.panics {
		panic("corrupt table")
	}
	return s.values, s.err
}

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { close(m.stopped) }

var defaultValues = rewards.Values{
	rewards.ActionVoiceChat: 3,
	rewards.ActionTextChat:  5,
}

func TestScheduler_EndToEnd(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	ledger := &mockLedger{}
	s := NewScheduler(agg, stubLoader{values: defaultValues}, ledger, zerolog.Nop())

	post(agg, "U1", "C1")
	join(agg, "U1", "V1")
	join(agg, "U2", "V1")

	report := s.Tick(context.Background())

	assert.Equal(t, 2, report.VoiceDeposits)
	assert.Equal(t, 1, report.ChatDeposits)
	assert.ElementsMatch(t, []depositCall{
		{UserID: "U1", Amount: 3, Reason: rewards.ActionVoiceChat},
		{UserID: "U2", Amount: 3, Reason: rewards.ActionVoiceChat},
		{UserID: "U1", Amount: 5, Reason: rewards.ActionTextChat},
	}, ledger.Calls())
}

func TestScheduler_EmptyTickDepositsNothing(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	ledger := &mockLedger{}
	s := NewScheduler(agg, stubLoader{values: defaultValues}, ledger, zerolog.Nop())

	report := s.Tick(context.Background())

	assert.Empty(t, ledger.Calls())
	assert.Equal(t, 0, report.VoiceDeposits+report.ChatDeposits+report.Failed)
}

func TestScheduler_ZeroRewardsSkipped(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	ledger := &mockLedger{}
	s := NewScheduler(agg, stubLoader{values: rewards.Values{}}, ledger, zerolog.Nop())

	post(agg, "U1", "C1")
	join(agg, "U1", "V1")
	join(agg, "U2", "V1")
	s.Tick(context.Background())

	assert.Empty(t, ledger.Calls())
}

func TestScheduler_LoadErrorSettlesWithZero(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	ledger := &mockLedger{}
	s := NewScheduler(agg, stubLoader{err: errors.New("missing file")}, ledger, zerolog.Nop())

	post(agg, "U1", "C1")
	s.Tick(context.Background())

	assert.Empty(t, ledger.Calls())
	assert.Empty(t, agg.Snapshot().Text)
}

func TestScheduler_FailedDepositsRetried(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	ledger := &mockLedger{fail: map[string]bool{"U1": true}}
	s := NewScheduler(agg, stubLoader{values: defaultValues}, ledger, zerolog.Nop())

	post(agg, "U1", "C1")
	post(agg, "U2", "C1")

	report := s.Tick(context.Background())
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Pending)
	assert.Len(t, ledger.Calls(), 1)

	ledger.mu.Lock()
	ledger.fail = nil
	ledger.mu.Unlock()

	report = s.Tick(context.Background())
	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, 0, report.Pending)
	assert.Contains(t, ledger.Calls(), depositCall{UserID: "U1", Amount: 5, Reason: rewards.ActionTextChat})
}

func TestScheduler_PanickingDepositKeepsOthers(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	ledger := &mockLedger{panics: map[string]bool{"A": true}}
	s := NewScheduler(agg, stubLoader{values: defaultValues}, ledger, zerolog.Nop())

	post(agg, "A", "C1")
	post(agg, "B", "C1")
	post(agg, "C", "C1")

	var report Report
	require.NotPanics(t, func() { report = s.Tick(context.Background()) })
	assert.Equal(t, 2, report.ChatDeposits)
	assert.Equal(t, 1, report.Pending)
	assert.ElementsMatch(t, []depositCall{
		{UserID: "B", Amount: 5, Reason: rewards.ActionTextChat},
		{UserID: "C", Amount: 5, Reason: rewards.ActionTextChat},
	}, ledger.Calls())

	ledger.mu.Lock()
	ledger.panics = nil
	ledger.mu.Unlock()

	report = s.Tick(context.Background())
	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, 0, report.Pending)
	assert.Contains(t, ledger.Calls(), depositCall{UserID: "A", Amount: 5, Reason: rewards.ActionTextChat})
}

func TestScheduler_PanicDoesNotEscape(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	s := NewScheduler(agg, stubLoader{panics: true}, &mockLedger{}, zerolog.Nop())

	assert.NotPanics(t, func() { s.Tick(context.Background()) })
}

func TestScheduler_OverrunMeasured(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 90 * time.Second)
	}
	s := NewScheduler(agg, stubLoader{values: defaultValues}, &mockLedger{}, zerolog.Nop(), WithClock(clock), WithInterval(time.Minute))

	report := s.Tick(context.Background())
	assert.Equal(t, 90*time.Second, report.Duration)
}

func TestScheduler_RunTicksUntilCancelled(t *testing.T) {
	agg := NewAggregator(guild, nil, 2)
	ledger := &mockLedger{}
	ticker := newManualTicker()
	s := NewScheduler(agg, stubLoader{values: defaultValues}, ledger, zerolog.Nop(),
		WithTicker(func(time.Duration) Ticker { return ticker }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	post(agg, "U1", "C1")
	ticker.ch <- time.Now()
	// a send only returns once the previous tick has finished
	ticker.ch <- time.Now()
	post(agg, "U1", "C1")
	ticker.ch <- time.Now()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	<-ticker.stopped

	require.Len(t, ledger.Calls(), 2)
	assert.Equal(t, "U1", ledger.Calls()[1].UserID)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(reg, nil)

	p.AddDeposit("activity_voice_chat", 3)
	p.AddDeposit("activity_voice_chat", 3)
	p.IncDepositFailures()
	p.SetPendingDeposits(2)
	p.IncCheckin(CheckinClaimed)
	p.ObserveTick(10 * time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(p.deposits.WithLabelValues("activity_voice_chat")))
	assert.Equal(t, float64(6), testutil.ToFloat64(p.depositedAmount.WithLabelValues("activity_voice_chat")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.depositFailures))
	assert.Equal(t, float64(2), testutil.ToFloat64(p.pendingDeposits))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.checkins.WithLabelValues(CheckinClaimed)))
	assert.Equal(t, 1, testutil.CollectAndCount(p.tickDuration))
}

func TestProvider_ParticipantGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, func() (int, int) { return 4, 7 })

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		if mf.GetType().String() == "GAUGE" && len(mf.GetMetric()) == 1 {
			values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(4), values["starbucks_text_participants"])
	assert.Equal(t, float64(7), values["starbucks_voice_participants"])
}

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}
	r.ObserveTick(time.Second)
	r.IncTickFailures()
	r.AddDeposit("x", 1)
	r.IncDepositFailures()
	r.SetPendingDeposits(1)
	r.IncCheckin(CheckinError)
}

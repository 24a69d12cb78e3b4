package services

import (
	"context"
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsOperations(t *testing.T) {
	f := newFixture(t, defaultFee())
	r := f.svc.metrics.Registry()

	f.deposit(t, alice, 40)
	f.deposit(t, bob, 60)
	_, err := f.svc.Deposit(carol, 0)
	require.Error(t, err)

	count := func(name string) int64 {
		c, ok := r.Get(name).(metrics.Counter)
		require.True(t, ok, name)
		return c.Count()
	}
	assert.Equal(t, int64(1), count("pool.initialize.ok"))
	assert.Equal(t, int64(2), count("pool.deposit.ok"))
	assert.Equal(t, int64(1), count("pool.deposit.rejected"))
	assert.Equal(t, int64(100), r.Get("pool.round.total").(metrics.Gauge).Value())
	assert.Equal(t, int64(2), r.Get("pool.round.depositors").(metrics.Gauge).Value())

	_, err = f.svc.DrawWinner(admin, bob)
	require.NoError(t, err)
	assert.Zero(t, r.Get("pool.round.total").(metrics.Gauge).Value())
	assert.Equal(t, int64(100), r.Get("pool.winners.outstanding").(metrics.Gauge).Value())

	timer, ok := r.Get("pool.draw.latency").(metrics.Timer)
	require.True(t, ok)
	assert.Equal(t, int64(1), timer.Count())
}

func TestMetrics_ReportStopsOnCancel(t *testing.T) {
	m := NewMetrics(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Report(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report did not return after cancel")
	}
}

package services

import (
	"context"
	"time"

	"github.com/google/logger"
	"github.com/rcrowley/go-metrics"

	"potledger/internal/models"
)

// Metrics counts pool operations in a go-metrics registry.
type Metrics struct {
	registry    metrics.Registry
	pot         metrics.Gauge
	depositors  metrics.Gauge
	outstanding metrics.Gauge
}

// NewMetrics registers the pool gauges in r. A nil r gets a private registry.
func NewMetrics(r metrics.Registry) *Metrics {
	if r == nil {
		r = metrics.NewRegistry()
	}
	return &Metrics{
		registry:    r,
		pot:         metrics.GetOrRegisterGauge("pool.round.total", r),
		depositors:  metrics.GetOrRegisterGauge("pool.round.depositors", r),
		outstanding: metrics.GetOrRegisterGauge("pool.winners.outstanding", r),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() metrics.Registry {
	return m.registry
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	metrics.GetOrRegisterTimer("pool."+op+".latency", m.registry).UpdateSince(start)
	if err != nil {
		metrics.GetOrRegisterCounter("pool."+op+".rejected", m.registry).Inc(1)
		return
	}
	metrics.GetOrRegisterCounter("pool."+op+".ok", m.registry).Inc(1)
}

func (m *Metrics) track(st *models.State) {
	m.pot.Update(clampInt64(st.Round.Total))
	m.depositors.Update(int64(st.Round.Len()))
	if owed, err := st.Winners.Outstanding(); err == nil {
		m.outstanding.Update(clampInt64(owed))
	}
}

// Report logs a snapshot of every metric each interval until ctx is done.
func (m *Metrics) Report(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.logSnapshot()
		}
	}
}

func (m *Metrics) logSnapshot() {
	m.registry.Each(func(name string, i interface{}) {
		switch v := i.(type) {
		case metrics.Counter:
			logger.Infof("metrics: %s count=%d", name, v.Count())
		case metrics.Gauge:
			logger.Infof("metrics: %s value=%d", name, v.Value())
		case metrics.Timer:
			s := v.Snapshot()
			logger.Infof("metrics: %s count=%d mean=%s p99=%s", name, s.Count(),
				time.Duration(s.Mean()), time.Duration(s.Percentile(0.99)))
		}
	})
}

func clampInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}

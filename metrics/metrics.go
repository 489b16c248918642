// Package metrics provides Prometheus collection for session-guard
// activity: guard runs by outcome, forced logouts by cause, and broadcast
// deliveries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the guard records through. A nil-safe no-op
// implementation keeps metrics optional.
type Recorder interface {
	RecordGuardRun(outcome string)
	RecordForcedLogout(cause string)
	RecordBroadcast()
}

// Collector implements Recorder over Prometheus counters.
type Collector struct {
	guardRuns     *prometheus.CounterVec
	forcedLogouts *prometheus.CounterVec
	broadcasts    prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with the
// given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		guardRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionguard_guard_runs_total",
			Help: "Guard runs partitioned by terminal state",
		}, []string{"outcome"}),
		forcedLogouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sessionguard_forced_logouts_total",
			Help: "Forced logouts partitioned by cause",
		}, []string{"cause"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessionguard_broadcasts_total",
			Help: "Session change broadcasts delivered to a guard",
		}),
	}

	reg.MustRegister(c.guardRuns, c.forcedLogouts, c.broadcasts)
	return c
}

func (c *Collector) RecordGuardRun(outcome string) {
	c.guardRuns.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordForcedLogout(cause string) {
	c.forcedLogouts.WithLabelValues(cause).Inc()
}

func (c *Collector) RecordBroadcast() {
	c.broadcasts.Inc()
}

// Handler exposes the gatherer over HTTP for scraping.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop is a Recorder that discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordGuardRun(string)     {}
func (Nop) RecordForcedLogout(string) {}
func (Nop) RecordBroadcast()          {}

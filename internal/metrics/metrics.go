// Package metrics holds the Prometheus collectors for settlement passes.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "settlement"

var (
	registry *prometheus.Registry
	once     sync.Once
)

var (
	PassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "passes_total",
		Help:      "Settlement passes by result (ok, failed, skipped)",
	}, []string{"result"})
	BetsSettledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_settled_total",
		Help:      "Bets moved out of pending, by outcome",
	}, []string{"outcome"})
	BetsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bets_skipped_total",
		Help:      "Pending bets left untouched by a pass, by reason",
	}, []string{"reason"})
	BetWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bet_write_failures_total",
		Help:      "Per-bet persistence failures",
	})
	LeagueFetchFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "league_fetch_failures_total",
		Help:      "Scores fetch failures per league",
	}, []string{"league"})
	GamesFetched = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "completed_games_fetched",
		Help:      "Completed games returned for each league on the last pass",
	}, []string{"league"})
	PendingBets = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_bets",
		Help:      "Pending bets observed at the start of the last pass",
	})
	PassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pass_duration_seconds",
		Help:      "Wall time of a settlement pass",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// InitRegistry initializes the process-wide registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			PassesTotal,
			BetsSettledTotal,
			BetsSkippedTotal,
			BetWriteFailuresTotal,
			LeagueFetchFailuresTotal,
			GamesFetched,
			PendingBets,
			PassDuration,
		)
	})
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(InitRegistry(), promhttp.HandlerOpts{})
}

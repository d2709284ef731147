// Package metrics provides Prometheus instrumentation for the gift draw
// services. It exposes counters for draw outcomes and notification delivery,
// histograms for draw cost, and a gauge for live reveal watchers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DrawsTotal counts completed draw requests, labeled by outcome:
	// "assigned", "infeasible", "invalid", "blocked", "rate_limited".
	DrawsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftdraw_draws_total",
		Help: "Total number of draw requests by outcome",
	}, []string{"outcome"})

	// DrawAttempts records how many randomized attempts a successful draw used.
	DrawAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "giftdraw_draw_attempts",
		Help:    "Randomized attempts needed per successful draw",
		Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
	})

	// DrawDuration records the time spent inside the assignment engine.
	DrawDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "giftdraw_draw_duration_seconds",
		Help:    "Assignment engine latency in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	})

	// NotificationsTotal counts notification deliveries, labeled by channel
	// ("smtp", "nats", "none", "reveal") and result ("sent", "failed").
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftdraw_notifications_total",
		Help: "Total number of notification deliveries",
	}, []string{"channel", "result"})

	// ConnectionsTotal tracks the current number of reveal WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "giftdraw_reveal_connections_total",
		Help: "Current number of active reveal WebSocket connections",
	})

	// WatchersTotal tracks connections currently watching a participant.
	WatchersTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "giftdraw_reveal_watchers",
		Help: "Current number of connections watching for an assignment",
	})

	// RevealLatency records the time from publishing an assignment to writing
	// it to a watcher.
	RevealLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "giftdraw_reveal_latency_seconds",
		Help:    "Reveal delivery latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		DrawsTotal,
		DrawAttempts,
		DrawDuration,
		NotificationsTotal,
		ConnectionsTotal,
		WatchersTotal,
		RevealLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

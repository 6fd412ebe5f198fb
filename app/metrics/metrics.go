// Package metrics declares the Prometheus collectors of the bot and serves them.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatebot_updates_handled_total",
		Help: "Updates handled, by handler and outcome",
	}, []string{"handler", "outcome"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatebot_handler_duration_seconds",
		Help:    "Time spent in update handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler"})

	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatebot_gate_decisions_total",
		Help: "Subscription gate decisions by result (allowed, denied, error)",
	}, []string{"result"})

	MembershipQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatebot_membership_queries_total",
		Help: "Channel membership lookups by cache outcome (hit, miss, error)",
	}, []string{"cache"})

	CatalogLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatebot_catalog_lookups_total",
		Help: "Catalog lookups by result (found, not_found, error)",
	}, []string{"result"})

	WorkflowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatebot_workflow_transitions_total",
		Help: "Admin workflow transitions by flow and transition",
	}, []string{"flow", "transition"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gatebot_workflow_sessions_active",
		Help: "Admin workflow sessions currently open",
	})

	BroadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatebot_broadcast_deliveries_total",
		Help: "Broadcast sends by status (delivered, failed)",
	}, []string{"status"})

	BroadcastDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gatebot_broadcast_duration_seconds",
		Help:    "Wall time of a complete broadcast",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	RegisteredUsers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatebot_users_registered_total",
		Help: "Users seen for the first time",
	})
)

var sendFailures atomic.Pointer[func() uint64]

// SendFailures mirrors the sender dispatcher failure count installed by TrackSendFailures.
var SendFailures = promauto.NewCounterFunc(prometheus.CounterOpts{
	Name: "gatebot_send_failures_total",
	Help: "Outbound Telegram calls that failed after exhausting retries",
}, func() float64 {
	if fn := sendFailures.Load(); fn != nil {
		return float64((*fn)())
	}
	return 0
})

// TrackSendFailures makes fn the source of gatebot_send_failures_total; nil detaches it.
func TrackSendFailures(fn func() uint64) {
	if fn == nil {
		sendFailures.Store(nil)
		return
	}
	sendFailures.Store(&fn)
}

// Package metrics exports Prometheus instrumentation for the tunnel
// feature.  The collectors are registered with the default registry;
// cmd/root.go serves them when a metrics address is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Notification outcomes recorded by NotificationsTotal.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
)

var (
	// ActiveSessions is the current size of the session registry.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunneld_active_sessions",
		Help: "Currently registered tunnel sessions",
	})

	// SessionsTotal counts every session ever registered.
	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunneld_sessions_total",
		Help: "Tunnel sessions registered since start",
	})

	// NotificationsTotal counts inbound notifications by outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunneld_notifications_total",
		Help: "Tunnel notifications by outcome",
	}, []string{"outcome"})

	// ConnectFailuresTotal counts sessions discarded because their
	// initial connect attempt failed.
	ConnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunneld_connect_failures_total",
		Help: "Sessions discarded after a failed initial connect",
	})

	// SubscribeRetriesTotal counts notification-channel subscribe
	// attempts that had to be retried.
	SubscribeRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunneld_subscribe_retries_total",
		Help: "Notification subscribe attempts that failed and were retried",
	})
)

// Package telemetry exposes the server's Prometheus metrics. The /metrics
// endpoint itself is mounted by internal/app.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts stored messages by kind ("direct" | "group").
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_messages_sent_total",
		Help: "Messages appended to the store, by conversation kind.",
	}, []string{"kind"})

	// CascadeDeletes counts admin/self-service cascade deletions by kind
	// ("user" | "group").
	CascadeDeletes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_cascade_deletes_total",
		Help: "Cascading deletions executed, by target kind.",
	}, []string{"kind"})

	// ReconcileRepairs counts index entries repaired by the sweep.
	ReconcileRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courier_reconcile_repairs_total",
		Help: "Index inconsistencies repaired by the reconcile sweep.",
	})

	// RequestsRejected counts requests refused by the auth gateway, by
	// reason ("unauthorized" | "forbidden" | "rate_limited").
	RequestsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_requests_rejected_total",
		Help: "Requests rejected before reaching a handler, by reason.",
	}, []string{"reason"})
)

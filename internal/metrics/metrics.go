// Package metrics exposes the console's own Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for outbound catalog API calls.
const (
	OutcomeOK           = "ok"
	OutcomeApplication  = "application"
	OutcomeTransport    = "transport"
	OutcomeAuthRequired = "auth_required"
)

var (
	// OutboundRequests counts calls the gateway makes to the catalog API.
	OutboundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libconsole",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Outbound catalog API requests by method and outcome.",
	}, []string{"method", "outcome"})

	// ActionsDispatched counts operator actions by kind and result.
	ActionsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "libconsole",
		Subsystem: "dispatch",
		Name:      "actions_total",
		Help:      "Operator actions dispatched by kind and result.",
	}, []string{"kind", "result"})
)

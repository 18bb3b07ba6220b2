package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gate outcomes.
const (
	GatePassed       = "passed"
	GateNoPassingRun = "no_passing_run"
	GateRejected     = "rejected"
)

var (
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentplane_lifecycle_transitions_total",
			Help: "Committed lifecycle transitions by entity and status pair",
		},
		[]string{"entity", "from", "to"},
	)

	PromotionGate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentplane_promotion_gate_total",
			Help: "Promotion gate evaluations by outcome",
		},
		[]string{"outcome"},
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentplane_event_publish_failures_total",
			Help: "Events recorded but not delivered to the event bus",
		},
	)
)

package model

import (
	"encoding/json"
	"time"
)

// Event types recorded by the control plane.
const (
	EventTemplateCreated       = "AgentTemplateCreated"
	EventVersionCreated        = "AgentVersionCreated"
	EventVersionSubmitted      = "AgentVersionSubmitted"
	EventVersionPromoted       = "AgentVersionPromoted"
	EventVersionRejected       = "AgentVersionRejected"
	EventVersionRetired        = "AgentVersionRetired"
	EventPolicyCreated         = "PolicyEnvelopeCreated"
	EventInstanceProvisioned   = "AgentInstanceProvisioned"
	EventInstanceStatusChanged = "AgentInstanceStatusChanged"
	EventEvaluationRecorded    = "EvaluationRunRecorded"
)

// Actor types.
const (
	ActorUser   = "user"
	ActorSystem = "system"
)

// Event is an append-only audit row.
type Event struct {
	ID         string          `json:"id" db:"event_id"`
	TenantID   string          `json:"tenant_id" db:"tenant_id"`
	EventType  string          `json:"event_type" db:"event_type"`
	ActorType  string          `json:"actor_type" db:"actor_type"`
	ActorID    string          `json:"actor_id" db:"actor_id"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
}

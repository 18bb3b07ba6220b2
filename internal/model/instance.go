package model

import "time"

type AgentInstance struct {
	ID               string    `json:"id" db:"instance_id"`
	VersionID        string    `json:"version_id" db:"version_id"`
	TenantID         string    `json:"tenant_id" db:"tenant_id"`
	Environment      string    `json:"environment" db:"environment"`
	RuntimeTarget    *string   `json:"runtime_target" db:"runtime_target"`
	PolicyEnvelopeID string    `json:"policy_envelope_id" db:"policy_envelope_id"`
	Status           string    `json:"status" db:"status"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// AgentInstanceSummary is an instance joined with its version label and
// template name, as returned by the instance list.
type AgentInstanceSummary struct {
	AgentInstance
	VersionLabel string `json:"version_label" db:"version_label"`
	TemplateName string `json:"template_name" db:"template_name"`
}

package model

import (
	"encoding/json"
	"time"
)

type PolicyEnvelope struct {
	ID                string          `json:"id" db:"policy_id"`
	TenantID          string          `json:"tenant_id" db:"tenant_id"`
	Name              string          `json:"name" db:"name"`
	AutonomyTier      int             `json:"autonomy_tier" db:"autonomy_tier"`
	AllowedTools      json.RawMessage `json:"allowed_tools" db:"allowed_tools"`
	AllowedDataScopes []string        `json:"allowed_data_scopes" db:"allowed_data_scopes"`
	RateLimits        json.RawMessage `json:"rate_limits" db:"rate_limits"`
	CostLimits        json.RawMessage `json:"cost_limits" db:"cost_limits"`
	Guardrails        json.RawMessage `json:"guardrails" db:"guardrails"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

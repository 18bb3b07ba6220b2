package request

import "encoding/json"

type CreatePolicy struct {
	Name              string          `json:"name" validate:"required,max=255"`
	AutonomyTier      *int            `json:"autonomy_tier" validate:"required,min=0"`
	AllowedTools      json.RawMessage `json:"allowed_tools" validate:"required,jsonobject"`
	AllowedDataScopes []string        `json:"allowed_data_scopes" validate:"omitempty,dive,max=255"`
	RateLimits        json.RawMessage `json:"rate_limits" validate:"optjsonobject"`
	CostLimits        json.RawMessage `json:"cost_limits" validate:"optjsonobject"`
	Guardrails        json.RawMessage `json:"guardrails" validate:"optjsonobject"`
}

package model

import "time"

type AgentTemplate struct {
	ID          string    `json:"id" db:"template_id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	OwnerOrgID  *string   `json:"owner_org_id" db:"owner_org_id"`
	Tags        []string  `json:"tags" db:"tags"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

package model

import (
	"encoding/json"
	"time"
)

// AgentVersion is an immutable build of a template. Only ReleaseStatus ever
// changes after creation.
type AgentVersion struct {
	ID                 string          `json:"id" db:"version_id"`
	TemplateID         string          `json:"template_id" db:"template_id"`
	TenantID           string          `json:"tenant_id" db:"tenant_id"`
	VersionLabel       string          `json:"version_label" db:"version_label"`
	ArtifactHash       string          `json:"artifact_hash" db:"artifact_hash"`
	ModelBundle        json.RawMessage `json:"model_bundle" db:"model_bundle"`
	PromptBundle       json.RawMessage `json:"prompt_bundle" db:"prompt_bundle"`
	ToolManifest       json.RawMessage `json:"tool_manifest" db:"tool_manifest"`
	DataScopesDeclared []string        `json:"data_scopes_declared" db:"data_scopes_declared"`
	BuildProvenance    json.RawMessage `json:"build_provenance" db:"build_provenance"`
	ReleaseStatus      string          `json:"release_status" db:"release_status"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

package request

import "encoding/json"

type CreateVersion struct {
	VersionLabel       string          `json:"version_label" validate:"required,max=128"`
	ArtifactHash       string          `json:"artifact_hash" validate:"required,max=512"`
	ModelBundle        json.RawMessage `json:"model_bundle" validate:"required,jsonobject"`
	PromptBundle       json.RawMessage `json:"prompt_bundle" validate:"required,jsonobject"`
	ToolManifest       json.RawMessage `json:"tool_manifest" validate:"required,jsonobject"`
	DataScopesDeclared []string        `json:"data_scopes_declared" validate:"omitempty,dive,max=255"`
	BuildProvenance    json.RawMessage `json:"build_provenance" validate:"optjsonobject"`
}

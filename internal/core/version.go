package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/agentplane/internal/apperr"
	"github.com/edvin/agentplane/internal/db"
	"github.com/edvin/agentplane/internal/model"
	"github.com/edvin/agentplane/internal/platform"
)

const versionColumns = `version_id, template_id, tenant_id, version_label, artifact_hash,
	model_bundle, prompt_bundle, tool_manifest, data_scopes_declared, build_provenance,
	release_status, created_at`

type VersionService struct {
	store  Store
	events *EventService
}

func NewVersionService(store Store, events *EventService) *VersionService {
	return &VersionService{store: store, events: events}
}

type CreateVersionParams struct {
	VersionLabel       string
	ArtifactHash       string
	ModelBundle        json.RawMessage
	PromptBundle       json.RawMessage
	ToolManifest       json.RawMessage
	DataScopesDeclared []string
	BuildProvenance    json.RawMessage
}

// Create adds a draft version under templateID. The template must exist in
// the caller's tenant; otherwise NotFound and nothing is written.
func (s *VersionService) Create(ctx context.Context, p Principal, templateID string, params CreateVersionParams) (*model.AgentVersion, error) {
	templateID, err := parseEntityID("template", templateID)
	if err != nil {
		return nil, err
	}

	v := &model.AgentVersion{
		ID:                 platform.NewID(),
		TemplateID:         templateID,
		TenantID:           p.TenantID,
		VersionLabel:       params.VersionLabel,
		ArtifactHash:       params.ArtifactHash,
		ModelBundle:        params.ModelBundle,
		PromptBundle:       params.PromptBundle,
		ToolManifest:       params.ToolManifest,
		DataScopesDeclared: normalizeSet(params.DataScopesDeclared),
		BuildProvenance:    params.BuildProvenance,
		ReleaseStatus:      model.ReleaseDraft,
	}

	var recorded model.Event
	err = s.store.InTenant(ctx, p.TenantID, func(q db.Querier) error {
		exists, err := existsInTenant(ctx, q, "agent_templates", "template_id", templateID, p.TenantID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("template")
		}

		err = q.QueryRow(ctx,
			`INSERT INTO agent_versions (version_id, template_id, tenant_id, version_label, artifact_hash,
			     model_bundle, prompt_bundle, tool_manifest, data_scopes_declared, build_provenance, release_status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING created_at`,
			v.ID, v.TemplateID, v.TenantID, v.VersionLabel, v.ArtifactHash,
			v.ModelBundle, v.PromptBundle, v.ToolManifest, v.DataScopesDeclared, v.BuildProvenance, v.ReleaseStatus,
		).Scan(&v.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert version: %w", err)
		}

		recorded, err = s.events.Record(ctx, q, p, model.EventVersionCreated, map[string]any{
			"version_id":    v.ID,
			"template_id":   v.TemplateID,
			"version_label": v.VersionLabel,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, recorded)
	return v, nil
}

func (s *VersionService) Get(ctx context.Context, p Principal, id string) (*model.AgentVersion, error) {
	id, err := parseEntityID("version", id)
	if err != nil {
		return nil, err
	}

	var v *model.AgentVersion
	err = s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		var err error
		v, err = getVersion(ctx, q, p.TenantID, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListByTemplate returns the versions of one template, newest first.
func (s *VersionService) ListByTemplate(ctx context.Context, p Principal, templateID string) ([]model.AgentVersion, error) {
	templateID, err := parseEntityID("template", templateID)
	if err != nil {
		return nil, err
	}

	versions := []model.AgentVersion{}
	err = s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		exists, err := existsInTenant(ctx, q, "agent_templates", "template_id", templateID, p.TenantID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("template")
		}

		rows, err := q.Query(ctx,
			`SELECT `+versionColumns+` FROM agent_versions
			 WHERE template_id = $1 AND tenant_id = $2
			 ORDER BY created_at DESC, version_id DESC`, templateID, p.TenantID,
		)
		if err != nil {
			return fmt.Errorf("list versions of template %s: %w", templateID, err)
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scanVersion(rows)
			if err != nil {
				return fmt.Errorf("scan version: %w", err)
			}
			versions = append(versions, *v)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate versions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// getVersion loads one version; forUpdate takes the row lock that serialises
// lifecycle transitions.
func getVersion(ctx context.Context, q db.Querier, tenantID, id string, forUpdate bool) (*model.AgentVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM agent_versions WHERE version_id = $1 AND tenant_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	v, err := scanVersion(q.QueryRow(ctx, query, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("version")
	}
	if err != nil {
		return nil, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}

func scanVersion(row rowScanner) (*model.AgentVersion, error) {
	var v model.AgentVersion
	err := row.Scan(&v.ID, &v.TemplateID, &v.TenantID, &v.VersionLabel, &v.ArtifactHash,
		&v.ModelBundle, &v.PromptBundle, &v.ToolManifest, &v.DataScopesDeclared, &v.BuildProvenance,
		&v.ReleaseStatus, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/agentplane/internal/apperr"
	"github.com/edvin/agentplane/internal/db"
	"github.com/edvin/agentplane/internal/model"
	"github.com/edvin/agentplane/internal/platform"
)

const templateColumns = `template_id, tenant_id, name, description, owner_org_id, tags, created_at`

type TemplateService struct {
	store  Store
	events *EventService
}

func NewTemplateService(store Store, events *EventService) *TemplateService {
	return &TemplateService{store: store, events: events}
}

type CreateTemplateParams struct {
	Name        string
	Description *string
	OwnerOrgID  *string
	Tags        []string
}

func (s *TemplateService) Create(ctx context.Context, p Principal, params CreateTemplateParams) (*model.AgentTemplate, error) {
	t := &model.AgentTemplate{
		ID:          platform.NewID(),
		TenantID:    p.TenantID,
		Name:        params.Name,
		Description: params.Description,
		OwnerOrgID:  params.OwnerOrgID,
		Tags:        normalizeSet(params.Tags),
	}

	var recorded model.Event
	err := s.store.InTenant(ctx, p.TenantID, func(q db.Querier) error {
		err := q.QueryRow(ctx,
			`INSERT INTO agent_templates (template_id, tenant_id, name, description, owner_org_id, tags)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING created_at`,
			t.ID, t.TenantID, t.Name, t.Description, t.OwnerOrgID, t.Tags,
		).Scan(&t.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert template: %w", err)
		}

		recorded, err = s.events.Record(ctx, q, p, model.EventTemplateCreated, map[string]any{
			"template_id": t.ID,
			"name":        t.Name,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, recorded)
	return t, nil
}

func (s *TemplateService) Get(ctx context.Context, p Principal, id string) (*model.AgentTemplate, error) {
	id, err := parseEntityID("template", id)
	if err != nil {
		return nil, err
	}

	var t *model.AgentTemplate
	err = s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		var err error
		t, err = getTemplate(ctx, q, p.TenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the tenant's templates, newest first.
func (s *TemplateService) List(ctx context.Context, p Principal) ([]model.AgentTemplate, error) {
	templates := []model.AgentTemplate{}
	err := s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		rows, err := q.Query(ctx,
			`SELECT `+templateColumns+` FROM agent_templates
			 WHERE tenant_id = $1
			 ORDER BY created_at DESC, template_id DESC`, p.TenantID,
		)
		if err != nil {
			return fmt.Errorf("list templates: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTemplate(rows)
			if err != nil {
				return fmt.Errorf("scan template: %w", err)
			}
			templates = append(templates, *t)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate templates: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func getTemplate(ctx context.Context, q db.Querier, tenantID, id string) (*model.AgentTemplate, error) {
	t, err := scanTemplate(q.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM agent_templates WHERE template_id = $1 AND tenant_id = $2`,
		id, tenantID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("template")
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return t, nil
}

func scanTemplate(row rowScanner) (*model.AgentTemplate, error) {
	var t model.AgentTemplate
	err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.Description, &t.OwnerOrgID, &t.Tags, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

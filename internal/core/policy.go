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

const policyColumns = `policy_id, tenant_id, name, autonomy_tier, allowed_tools, allowed_data_scopes,
	rate_limits, cost_limits, guardrails, created_at`

type PolicyService struct {
	store  Store
	events *EventService
}

func NewPolicyService(store Store, events *EventService) *PolicyService {
	return &PolicyService{store: store, events: events}
}

type CreatePolicyParams struct {
	Name              string
	AutonomyTier      int
	AllowedTools      json.RawMessage
	AllowedDataScopes []string
	RateLimits        json.RawMessage
	CostLimits        json.RawMessage
	Guardrails        json.RawMessage
}

func (s *PolicyService) Create(ctx context.Context, p Principal, params CreatePolicyParams) (*model.PolicyEnvelope, error) {
	pe := &model.PolicyEnvelope{
		ID:                platform.NewID(),
		TenantID:          p.TenantID,
		Name:              params.Name,
		AutonomyTier:      params.AutonomyTier,
		AllowedTools:      params.AllowedTools,
		AllowedDataScopes: normalizeSet(params.AllowedDataScopes),
		RateLimits:        params.RateLimits,
		CostLimits:        params.CostLimits,
		Guardrails:        params.Guardrails,
	}

	var recorded model.Event
	err := s.store.InTenant(ctx, p.TenantID, func(q db.Querier) error {
		err := q.QueryRow(ctx,
			`INSERT INTO policy_envelopes (policy_id, tenant_id, name, autonomy_tier, allowed_tools,
			     allowed_data_scopes, rate_limits, cost_limits, guardrails)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING created_at`,
			pe.ID, pe.TenantID, pe.Name, pe.AutonomyTier, pe.AllowedTools,
			pe.AllowedDataScopes, pe.RateLimits, pe.CostLimits, pe.Guardrails,
		).Scan(&pe.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert policy envelope: %w", err)
		}

		recorded, err = s.events.Record(ctx, q, p, model.EventPolicyCreated, map[string]any{
			"policy_id":     pe.ID,
			"name":          pe.Name,
			"autonomy_tier": pe.AutonomyTier,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, recorded)
	return pe, nil
}

func (s *PolicyService) Get(ctx context.Context, p Principal, id string) (*model.PolicyEnvelope, error) {
	id, err := parseEntityID("policy envelope", id)
	if err != nil {
		return nil, err
	}

	var pe *model.PolicyEnvelope
	err = s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		var err error
		pe, err = scanPolicy(q.QueryRow(ctx,
			`SELECT `+policyColumns+` FROM policy_envelopes WHERE policy_id = $1 AND tenant_id = $2`,
			id, p.TenantID,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("policy envelope")
		}
		if err != nil {
			return fmt.Errorf("get policy envelope %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pe, nil
}

func (s *PolicyService) List(ctx context.Context, p Principal) ([]model.PolicyEnvelope, error) {
	policies := []model.PolicyEnvelope{}
	err := s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		rows, err := q.Query(ctx,
			`SELECT `+policyColumns+` FROM policy_envelopes
			 WHERE tenant_id = $1
			 ORDER BY created_at DESC, policy_id DESC`, p.TenantID,
		)
		if err != nil {
			return fmt.Errorf("list policy envelopes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			pe, err := scanPolicy(rows)
			if err != nil {
				return fmt.Errorf("scan policy envelope: %w", err)
			}
			policies = append(policies, *pe)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate policy envelopes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return policies, nil
}

func scanPolicy(row rowScanner) (*model.PolicyEnvelope, error) {
	var pe model.PolicyEnvelope
	err := row.Scan(&pe.ID, &pe.TenantID, &pe.Name, &pe.AutonomyTier, &pe.AllowedTools, &pe.AllowedDataScopes,
		&pe.RateLimits, &pe.CostLimits, &pe.Guardrails, &pe.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &pe, nil
}

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/agentplane/internal/apperr"
	"github.com/edvin/agentplane/internal/db"
	"github.com/edvin/agentplane/internal/metrics"
	"github.com/edvin/agentplane/internal/model"
	"github.com/edvin/agentplane/internal/platform"
)

const instanceColumns = `instance_id, version_id, tenant_id, environment, runtime_target,
	policy_envelope_id, status, created_at, updated_at`

type InstanceService struct {
	store       Store
	events      *EventService
	transitions TransitionPolicy
}

func NewInstanceService(store Store, events *EventService, transitions TransitionPolicy) *InstanceService {
	if transitions == "" {
		transitions = StrictTransitions
	}
	return &InstanceService{store: store, events: events, transitions: transitions}
}

type CreateInstanceParams struct {
	VersionID        string
	PolicyEnvelopeID string
	Environment      string
	RuntimeTarget    *string
}

// Create provisions an instance binding a version to a policy envelope. Both
// must belong to the caller's tenant. The version's release status is not
// checked here.
func (s *InstanceService) Create(ctx context.Context, p Principal, params CreateInstanceParams) (*model.AgentInstance, error) {
	versionID, err := parseEntityID("version", params.VersionID)
	if err != nil {
		return nil, err
	}
	policyID, err := parseEntityID("policy envelope", params.PolicyEnvelopeID)
	if err != nil {
		return nil, err
	}

	inst := &model.AgentInstance{
		ID:               platform.NewID(),
		VersionID:        versionID,
		TenantID:         p.TenantID,
		Environment:      params.Environment,
		RuntimeTarget:    params.RuntimeTarget,
		PolicyEnvelopeID: policyID,
		Status:           model.InstanceProvisioning,
	}

	var recorded model.Event
	err = s.store.InTenant(ctx, p.TenantID, func(q db.Querier) error {
		exists, err := existsInTenant(ctx, q, "agent_versions", "version_id", versionID, p.TenantID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("version")
		}
		exists, err = existsInTenant(ctx, q, "policy_envelopes", "policy_id", policyID, p.TenantID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("policy envelope")
		}

		err = q.QueryRow(ctx,
			`INSERT INTO agent_instances (instance_id, version_id, tenant_id, environment, runtime_target,
			     policy_envelope_id, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING created_at, updated_at`,
			inst.ID, inst.VersionID, inst.TenantID, inst.Environment, inst.RuntimeTarget,
			inst.PolicyEnvelopeID, inst.Status,
		).Scan(&inst.CreatedAt, &inst.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert instance: %w", err)
		}

		recorded, err = s.events.Record(ctx, q, p, model.EventInstanceProvisioned, map[string]any{
			"instance_id":        inst.ID,
			"version_id":         inst.VersionID,
			"policy_envelope_id": inst.PolicyEnvelopeID,
			"environment":        inst.Environment,
			"status":             inst.Status,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, recorded)
	return inst, nil
}

func (s *InstanceService) Get(ctx context.Context, p Principal, id string) (*model.AgentInstance, error) {
	id, err := parseEntityID("instance", id)
	if err != nil {
		return nil, err
	}

	var inst *model.AgentInstance
	err = s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		var err error
		inst, err = getInstance(ctx, q, p.TenantID, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// List returns the tenant's instances, newest first, each with the label of
// its version and the name of that version's template.
func (s *InstanceService) List(ctx context.Context, p Principal) ([]model.AgentInstanceSummary, error) {
	instances := []model.AgentInstanceSummary{}
	err := s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		rows, err := q.Query(ctx,
			`SELECT i.instance_id, i.version_id, i.tenant_id, i.environment, i.runtime_target,
			        i.policy_envelope_id, i.status, i.created_at, i.updated_at,
			        v.version_label, t.name
			 FROM agent_instances i
			 JOIN agent_versions v ON v.version_id = i.version_id AND v.tenant_id = i.tenant_id
			 JOIN agent_templates t ON t.template_id = v.template_id AND t.tenant_id = v.tenant_id
			 WHERE i.tenant_id = $1
			 ORDER BY i.created_at DESC, i.instance_id DESC`, p.TenantID,
		)
		if err != nil {
			return fmt.Errorf("list instances: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var sum model.AgentInstanceSummary
			i := &sum.AgentInstance
			if err := rows.Scan(&i.ID, &i.VersionID, &i.TenantID, &i.Environment, &i.RuntimeTarget,
				&i.PolicyEnvelopeID, &i.Status, &i.CreatedAt, &i.UpdatedAt,
				&sum.VersionLabel, &sum.TemplateName); err != nil {
				return fmt.Errorf("scan instance: %w", err)
			}
			instances = append(instances, sum)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate instances: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return instances, nil
}

// UpdateStatus moves an instance to status under the configured transition
// policy. Setting the current status again is a no-op and records no event.
func (s *InstanceService) UpdateStatus(ctx context.Context, p Principal, id, status string) (*model.AgentInstance, error) {
	if !model.IsInstanceStatus(status) {
		return nil, apperr.Invalid(fmt.Sprintf("unknown instance status '%s'", status))
	}
	id, err := parseEntityID("instance", id)
	if err != nil {
		return nil, err
	}

	var inst *model.AgentInstance
	var recorded *model.Event
	var from string
	err = s.store.InTenant(ctx, p.TenantID, func(q db.Querier) error {
		current, err := getInstance(ctx, q, p.TenantID, id, true)
		if err != nil {
			return err
		}
		from = current.Status
		if from == status {
			inst = current
			return nil
		}
		if !s.transitions.Allows(from, status) {
			return instanceTransitionError(from, status)
		}

		inst, err = scanInstance(q.QueryRow(ctx,
			`UPDATE agent_instances SET status = $3, updated_at = now()
			 WHERE instance_id = $1 AND tenant_id = $2
			 RETURNING `+instanceColumns, id, p.TenantID, status,
		))
		if err != nil {
			return fmt.Errorf("update instance %s status: %w", id, err)
		}

		ev, err := s.events.Record(ctx, q, p, model.EventInstanceStatusChanged, map[string]any{
			"instance_id": id,
			"from":        from,
			"to":          status,
		})
		if err != nil {
			return err
		}
		recorded = &ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	if recorded != nil {
		metrics.LifecycleTransitions.WithLabelValues("instance", from, status).Inc()
		s.events.Publish(ctx, *recorded)
	}
	return inst, nil
}

func getInstance(ctx context.Context, q db.Querier, tenantID, id string, forUpdate bool) (*model.AgentInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM agent_instances WHERE instance_id = $1 AND tenant_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	inst, err := scanInstance(q.QueryRow(ctx, query, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("instance")
	}
	if err != nil {
		return nil, fmt.Errorf("get instance %s: %w", id, err)
	}
	return inst, nil
}

func scanInstance(row rowScanner) (*model.AgentInstance, error) {
	var i model.AgentInstance
	err := row.Scan(&i.ID, &i.VersionID, &i.TenantID, &i.Environment, &i.RuntimeTarget,
		&i.PolicyEnvelopeID, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

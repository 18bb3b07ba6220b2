package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/agentplane/internal/apperr"
	"github.com/edvin/agentplane/internal/db"
	"github.com/edvin/agentplane/internal/metrics"
	"github.com/edvin/agentplane/internal/model"
)

var versionTransitions = map[string][]string{
	model.ReleaseDraft:     {model.ReleaseCandidate},
	model.ReleaseCandidate: {model.ReleaseApproved, model.ReleaseRejected},
	model.ReleaseApproved:  {model.ReleaseRetired},
	model.ReleaseRejected:  {},
	model.ReleaseRetired:   {},
}

// CanTransitionVersion reports whether a release status may move from -> to.
func CanTransitionVersion(from, to string) bool {
	return slices.Contains(versionTransitions[from], to)
}

// TransitionPolicy decides which instance status changes are allowed.
type TransitionPolicy string

const (
	StrictTransitions     TransitionPolicy = "strict"
	PermissiveTransitions TransitionPolicy = "permissive"
)

var instanceTransitions = map[string][]string{
	model.InstanceProvisioning: {model.InstanceActive, model.InstanceQuarantined, model.InstanceRetired},
	model.InstanceActive:       {model.InstancePaused, model.InstanceQuarantined, model.InstanceRetired},
	model.InstancePaused:       {model.InstanceActive, model.InstanceQuarantined, model.InstanceRetired},
	model.InstanceQuarantined:  {model.InstancePaused, model.InstanceRetired},
	model.InstanceRetired:      {},
}

var instanceStatusOrder = []string{
	model.InstanceProvisioning,
	model.InstanceActive,
	model.InstancePaused,
	model.InstanceQuarantined,
	model.InstanceRetired,
}

// instanceSourcesFor lists the statuses the strict table allows into to.
func instanceSourcesFor(to string) []string {
	var out []string
	for _, from := range instanceStatusOrder {
		if slices.Contains(instanceTransitions[from], to) {
			out = append(out, from)
		}
	}
	return out
}

// instanceTransitionError names the status an instance must be in to reach to.
func instanceTransitionError(from, to string) error {
	sources := instanceSourcesFor(to)
	switch len(sources) {
	case 0:
		return apperr.New(apperr.KindPreconditionFailed,
			fmt.Sprintf("no instance may move to '%s' (current status '%s')", to, from))
	case 1:
		return apperr.New(apperr.KindPreconditionFailed,
			fmt.Sprintf("instance must be in '%s' status to move to '%s' (current status '%s')", sources[0], to, from))
	default:
		return apperr.New(apperr.KindPreconditionFailed,
			fmt.Sprintf("instance must be in one of '%s' status to move to '%s' (current status '%s')",
				strings.Join(sources, "', '"), to, from))
	}
}

// Allows reports whether an instance may move from -> to. Both must be known
// statuses; the permissive policy accepts any such pair.
func (p TransitionPolicy) Allows(from, to string) bool {
	if !model.IsInstanceStatus(from) || !model.IsInstanceStatus(to) {
		return false
	}
	if p == PermissiveTransitions {
		return true
	}
	return slices.Contains(instanceTransitions[from], to)
}

// EvaluationDispatcher hands a submitted version to the evaluation pipeline.
type EvaluationDispatcher interface {
	DispatchEvaluation(ctx context.Context, tenantID, versionID string) error
}

// LifecycleService moves versions through their release states. Every
// transition locks the version row, checks the current status, applies any
// guard, updates and records its event in one transaction.
type LifecycleService struct {
	store      Store
	events     *EventService
	gate       *PromotionGate
	dispatcher EvaluationDispatcher
}

func NewLifecycleService(store Store, events *EventService, gate *PromotionGate, dispatcher EvaluationDispatcher) *LifecycleService {
	return &LifecycleService{store: store, events: events, gate: gate, dispatcher: dispatcher}
}

// transitionGuard runs under the row lock before the update. Extra payload
// fields it returns are added to the transition event.
type transitionGuard func(ctx context.Context, q db.Querier, tenantID, versionID string) (map[string]any, error)

// Submit moves a draft to candidate and requests an evaluation.
func (s *LifecycleService) Submit(ctx context.Context, p Principal, versionID string) (*model.AgentVersion, error) {
	v, err := s.transition(ctx, p, versionID, model.ReleaseDraft, model.ReleaseCandidate, model.EventVersionSubmitted, nil)
	if err != nil {
		return nil, err
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.DispatchEvaluation(ctx, p.TenantID, v.ID); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("version_id", v.ID).Msg("dispatch evaluation")
		}
	}
	return v, nil
}

// Promote approves a candidate. It requires a passing evaluation run and,
// when configured, that the run's scores satisfy the promotion gate.
func (s *LifecycleService) Promote(ctx context.Context, p Principal, versionID string) (*model.AgentVersion, error) {
	return s.transition(ctx, p, versionID, model.ReleaseCandidate, model.ReleaseApproved, model.EventVersionPromoted, s.checkPromotionGate)
}

func (s *LifecycleService) Reject(ctx context.Context, p Principal, versionID string) (*model.AgentVersion, error) {
	return s.transition(ctx, p, versionID, model.ReleaseCandidate, model.ReleaseRejected, model.EventVersionRejected, nil)
}

func (s *LifecycleService) Retire(ctx context.Context, p Principal, versionID string) (*model.AgentVersion, error) {
	return s.transition(ctx, p, versionID, model.ReleaseApproved, model.ReleaseRetired, model.EventVersionRetired, nil)
}

func (s *LifecycleService) transition(ctx context.Context, p Principal, versionID, from, to, eventType string, guard transitionGuard) (*model.AgentVersion, error) {
	if !CanTransitionVersion(from, to) {
		return nil, fmt.Errorf("version transition %s -> %s is not defined", from, to)
	}
	versionID, err := parseEntityID("version", versionID)
	if err != nil {
		return nil, err
	}

	var v *model.AgentVersion
	var recorded model.Event
	err = s.store.InTenant(ctx, p.TenantID, func(q db.Querier) error {
		var current string
		err := q.QueryRow(ctx,
			`SELECT release_status FROM agent_versions
			 WHERE version_id = $1 AND tenant_id = $2
			 FOR UPDATE`, versionID, p.TenantID,
		).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("version")
		}
		if err != nil {
			return fmt.Errorf("lock version %s: %w", versionID, err)
		}
		if current != from {
			return apperr.PreconditionFailed("version", from)
		}

		payload := map[string]any{"version_id": versionID, "from": from, "to": to}
		if guard != nil {
			extra, err := guard(ctx, q, p.TenantID, versionID)
			if err != nil {
				return err
			}
			for k, val := range extra {
				payload[k] = val
			}
		}

		v, err = scanVersion(q.QueryRow(ctx,
			`UPDATE agent_versions SET release_status = $3
			 WHERE version_id = $1 AND tenant_id = $2
			 RETURNING `+versionColumns, versionID, p.TenantID, to,
		))
		if err != nil {
			return fmt.Errorf("update version %s status: %w", versionID, err)
		}

		recorded, err = s.events.Record(ctx, q, p, eventType, payload)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.LifecycleTransitions.WithLabelValues("version", from, to).Inc()
	s.events.Publish(ctx, recorded)
	return v, nil
}

// checkPromotionGate selects the most recently completed passing run and
// applies the gate expression to its scores.
func (s *LifecycleService) checkPromotionGate(ctx context.Context, q db.Querier, tenantID, versionID string) (map[string]any, error) {
	var runID string
	var scores json.RawMessage
	err := q.QueryRow(ctx,
		`SELECT run_id, summary_scores FROM evaluation_runs
		 WHERE version_id = $1 AND tenant_id = $2 AND status = 'passed' AND completed_at IS NOT NULL
		 ORDER BY completed_at DESC, run_id DESC
		 LIMIT 1`, versionID, tenantID,
	).Scan(&runID, &scores)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.PromotionGate.WithLabelValues(metrics.GateNoPassingRun).Inc()
		return nil, apperr.GateFailed("no passing evaluation found")
	}
	if err != nil {
		return nil, fmt.Errorf("find passing evaluation for version %s: %w", versionID, err)
	}

	if err := s.gate.Evaluate(scores); err != nil {
		metrics.PromotionGate.WithLabelValues(metrics.GateRejected).Inc()
		return nil, err
	}
	metrics.PromotionGate.WithLabelValues(metrics.GatePassed).Inc()
	return map[string]any{"evaluation_run_id": runID}, nil
}

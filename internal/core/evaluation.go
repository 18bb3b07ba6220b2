package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edvin/agentplane/internal/apperr"
	"github.com/edvin/agentplane/internal/db"
	"github.com/edvin/agentplane/internal/model"
	"github.com/edvin/agentplane/internal/platform"
)

const evaluationColumns = `run_id, version_id, tenant_id, status, summary_scores, completed_at, created_at`

// EvaluationService records results reported by the external evaluator. The
// lifecycle engine only ever reads them.
type EvaluationService struct {
	store  Store
	events *EventService
	now    func() time.Time
}

func NewEvaluationService(store Store, events *EventService, now func() time.Time) *EvaluationService {
	if now == nil {
		now = time.Now
	}
	return &EvaluationService{store: store, events: events, now: now}
}

type RecordEvaluationParams struct {
	Status        string
	SummaryScores json.RawMessage
	CompletedAt   *time.Time
}

// Record stores one evaluation run for versionID. Terminal runs (passed,
// failed) always carry completed_at, defaulting to now.
func (s *EvaluationService) Record(ctx context.Context, p Principal, versionID string, params RecordEvaluationParams) (*model.EvaluationRun, error) {
	if !model.IsEvaluationStatus(params.Status) {
		return nil, apperr.Invalid(fmt.Sprintf("unknown evaluation status %q", params.Status))
	}
	completedAt := params.CompletedAt
	if model.IsTerminalEvaluation(params.Status) {
		if completedAt == nil {
			now := s.now().UTC()
			completedAt = &now
		}
	} else if completedAt != nil {
		return nil, apperr.Invalid("completed_at is only allowed for passed or failed runs")
	}
	scores := params.SummaryScores
	if len(scores) == 0 || string(scores) == "null" {
		scores = json.RawMessage(`{}`)
	}

	versionID, err := parseEntityID("version", versionID)
	if err != nil {
		return nil, err
	}

	run := &model.EvaluationRun{
		ID:            platform.NewID(),
		VersionID:     versionID,
		TenantID:      p.TenantID,
		Status:        params.Status,
		SummaryScores: scores,
		CompletedAt:   completedAt,
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

		err = q.QueryRow(ctx,
			`INSERT INTO evaluation_runs (run_id, version_id, tenant_id, status, summary_scores, completed_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING created_at`,
			run.ID, run.VersionID, run.TenantID, run.Status, run.SummaryScores, run.CompletedAt,
		).Scan(&run.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert evaluation run: %w", err)
		}

		recorded, err = s.events.Record(ctx, q, p, model.EventEvaluationRecorded, map[string]any{
			"run_id":     run.ID,
			"version_id": run.VersionID,
			"status":     run.Status,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, recorded)
	return run, nil
}

// ListByVersion returns a version's runs, most recently completed first;
// runs still in progress come last.
func (s *EvaluationService) ListByVersion(ctx context.Context, p Principal, versionID string) ([]model.EvaluationRun, error) {
	versionID, err := parseEntityID("version", versionID)
	if err != nil {
		return nil, err
	}

	runs := []model.EvaluationRun{}
	err = s.store.ReadInTenant(ctx, p.TenantID, func(q db.Querier) error {
		exists, err := existsInTenant(ctx, q, "agent_versions", "version_id", versionID, p.TenantID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("version")
		}

		rows, err := q.Query(ctx,
			`SELECT `+evaluationColumns+` FROM evaluation_runs
			 WHERE version_id = $1 AND tenant_id = $2
			 ORDER BY completed_at DESC NULLS LAST, created_at DESC, run_id DESC`, versionID, p.TenantID,
		)
		if err != nil {
			return fmt.Errorf("list evaluation runs of version %s: %w", versionID, err)
		}
		defer rows.Close()

		for rows.Next() {
			var r model.EvaluationRun
			if err := rows.Scan(&r.ID, &r.VersionID, &r.TenantID, &r.Status, &r.SummaryScores, &r.CompletedAt, &r.CreatedAt); err != nil {
				return fmt.Errorf("scan evaluation run: %w", err)
			}
			runs = append(runs, r)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate evaluation runs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

package model

import (
	"encoding/json"
	"time"
)

// EvaluationRun is a result reported by the external evaluator.
type EvaluationRun struct {
	ID            string          `json:"id" db:"run_id"`
	VersionID     string          `json:"version_id" db:"version_id"`
	TenantID      string          `json:"tenant_id" db:"tenant_id"`
	Status        string          `json:"status" db:"status"`
	SummaryScores json.RawMessage `json:"summary_scores" db:"summary_scores"`
	CompletedAt   *time.Time      `json:"completed_at" db:"completed_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

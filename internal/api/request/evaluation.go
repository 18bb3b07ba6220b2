package request

import (
	"encoding/json"
	"time"
)

// RecordEvaluation is posted by the external evaluator.
type RecordEvaluation struct {
	Status        string          `json:"status" validate:"required,oneof=pending running passed failed"`
	SummaryScores json.RawMessage `json:"summary_scores" validate:"optjsonobject"`
	CompletedAt   *time.Time      `json:"completed_at"`
}

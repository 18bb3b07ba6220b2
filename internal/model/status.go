package model

// Version release statuses.
const (
	ReleaseDraft     = "draft"
	ReleaseCandidate = "candidate"
	ReleaseApproved  = "approved"
	ReleaseRejected  = "rejected"
	ReleaseRetired   = "retired"
)

// Instance statuses.
const (
	InstanceProvisioning = "provisioning"
	InstanceActive       = "active"
	InstancePaused       = "paused"
	InstanceQuarantined  = "quarantined"
	InstanceRetired      = "retired"
)

// Evaluation run statuses.
const (
	EvaluationPending = "pending"
	EvaluationRunning = "running"
	EvaluationPassed  = "passed"
	EvaluationFailed  = "failed"
)

var instanceStatuses = map[string]bool{
	InstanceProvisioning: true,
	InstanceActive:       true,
	InstancePaused:       true,
	InstanceQuarantined:  true,
	InstanceRetired:      true,
}

var evaluationStatuses = map[string]bool{
	EvaluationPending: true,
	EvaluationRunning: true,
	EvaluationPassed:  true,
	EvaluationFailed:  true,
}

// IsInstanceStatus reports whether s is a known instance status.
func IsInstanceStatus(s string) bool { return instanceStatuses[s] }

func IsEvaluationStatus(s string) bool { return evaluationStatuses[s] }

// IsTerminalEvaluation reports whether the evaluator has finished with the run.
func IsTerminalEvaluation(s string) bool {
	return s == EvaluationPassed || s == EvaluationFailed
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInstanceStatus(t *testing.T) {
	for _, s := range []string{"provisioning", "active", "paused", "quarantined", "retired"} {
		assert.True(t, IsInstanceStatus(s), s)
	}
	for _, s := range []string{"", "Active", "deleted", "draft"} {
		assert.False(t, IsInstanceStatus(s), s)
	}
}

func TestEvaluationStatuses(t *testing.T) {
	assert.True(t, IsEvaluationStatus("pending"))
	assert.True(t, IsEvaluationStatus("passed"))
	assert.False(t, IsEvaluationStatus("approved"))

	assert.True(t, IsTerminalEvaluation(EvaluationPassed))
	assert.True(t, IsTerminalEvaluation(EvaluationFailed))
	assert.False(t, IsTerminalEvaluation(EvaluationRunning))
	assert.False(t, IsTerminalEvaluation(EvaluationPending))
}

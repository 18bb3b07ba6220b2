package core

import (
	"context"
	"fmt"

	temporalclient "go.temporal.io/sdk/client"
)

const evaluateVersionWorkflow = "EvaluateAgentVersionWorkflow"

// EvaluationRequest is the argument of the evaluation workflow. The
// evaluator reports back through the evaluation-run endpoint.
type EvaluationRequest struct {
	TenantID  string `json:"tenant_id"`
	VersionID string `json:"version_id"`
}

// TemporalDispatcher starts one evaluation workflow per submitted version.
type TemporalDispatcher struct {
	tc        temporalclient.Client
	taskQueue string
}

func NewTemporalDispatcher(tc temporalclient.Client, taskQueue string) *TemporalDispatcher {
	return &TemporalDispatcher{tc: tc, taskQueue: taskQueue}
}

func (d *TemporalDispatcher) DispatchEvaluation(ctx context.Context, tenantID, versionID string) error {
	_, err := d.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        workflowID("evaluate", versionID),
		TaskQueue: d.taskQueue,
	}, evaluateVersionWorkflow, EvaluationRequest{TenantID: tenantID, VersionID: versionID})
	if err != nil {
		return fmt.Errorf("start evaluation workflow for version %s: %w", versionID, err)
	}
	return nil
}

// workflowID builds a readable workflow ID from a prefix and an entity id.
func workflowID(prefix, id string) string {
	return fmt.Sprintf("%s-%s", prefix, id)
}

package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/Lllllllleong/ingestiongateway/internal/models"
)

// WorkflowTrigger starts a Cloud Workflows execution for every finished export.
type WorkflowTrigger struct {
	client *executions.Client
	parent string
}

// NewWorkflowTrigger creates an executions client for the given workflow.
func NewWorkflowTrigger(ctx context.Context, projectID, location, workflowID string) (*WorkflowTrigger, error) {
	if projectID == "" || location == "" || workflowID == "" {
		return nil, fmt.Errorf("NewWorkflowTrigger: projectID, location and workflowID cannot be empty")
	}
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	return &WorkflowTrigger{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}, nil
}

// NotifyExport passes the export location to a new workflow execution.
func (t *WorkflowTrigger) NotifyExport(ctx context.Context, rec models.ExportRecord) error {
	payloadBytes, err := json.Marshal(map[string]interface{}{
		"fileId":       rec.FileID,
		"source":       rec.Source,
		"sourceType":   rec.SourceType,
		"bucket":       rec.Bucket,
		"storageKey":   rec.StorageKey,
		"elementCount": rec.ElementCount,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: t.parent,
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	if _, err := t.client.CreateExecution(ctx, req); err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (t *WorkflowTrigger) Close() error {
	return t.client.Close()
}

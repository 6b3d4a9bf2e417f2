package observer

import (
	"context"

	"github.com/google/uuid"

	"github.com/stratix/workflow-engine/internal/domain/repository"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
)

// DatabaseObserver persists every event as an append-only ExecutionLog row,
// giving the Control API's GetExecutionLogs operation a queryable stream
// independent of whatever structured application logging is configured.
type DatabaseObserver struct {
	name string
	repo repository.ExecutionRepository
}

// NewDatabaseObserver creates a new database observer.
func NewDatabaseObserver(repo repository.ExecutionRepository) *DatabaseObserver {
	return &DatabaseObserver{
		name: "database",
		repo: repo,
	}
}

// Name returns the observer's name.
func (o *DatabaseObserver) Name() string {
	return o.name
}

// Filter returns nil: the database observer stores every event.
func (o *DatabaseObserver) Filter() EventFilter {
	return nil
}

// OnEvent persists the event as an execution_logs row.
func (o *DatabaseObserver) OnEvent(ctx context.Context, event Event) error {
	executionID, err := uuid.Parse(event.ExecutionID)
	if err != nil {
		return nil
	}

	level := storagemodels.LogLevelInfo
	if event.Error != nil {
		level = storagemodels.LogLevelError
	}

	fields := storagemodels.JSONBMap{
		"workflow_id": event.WorkflowID,
		"status":      event.Status,
	}
	if event.NodeID != nil {
		fields["node_id"] = *event.NodeID
	}
	if event.NodeName != nil {
		fields["node_name"] = *event.NodeName
	}
	if event.NodeType != nil {
		fields["node_type"] = *event.NodeType
	}
	if event.WaveIndex != nil {
		fields["wave_index"] = *event.WaveIndex
	}
	if event.NodeCount != nil {
		fields["node_count"] = *event.NodeCount
	}
	if event.DurationMs != nil {
		fields["duration_ms"] = *event.DurationMs
	}
	if event.RetryCount != nil {
		fields["retry_count"] = *event.RetryCount
	}
	if event.Output != nil {
		fields["output"] = event.Output
	}
	if event.Metadata != nil {
		fields["metadata"] = event.Metadata
	}

	message := string(event.Type)
	if event.Message != nil {
		message = *event.Message
	}
	if event.Error != nil {
		fields["error"] = event.Error.Error()
	}

	log := &storagemodels.ExecutionLogModel{
		ExecutionID: executionID,
		Level:       level,
		Message:     message,
		Fields:      fields,
		CreatedAt:   event.Timestamp,
	}

	return o.repo.CreateLog(ctx, log)
}

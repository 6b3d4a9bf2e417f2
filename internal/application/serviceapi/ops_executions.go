package serviceapi

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stratix/workflow-engine/internal/application/engine"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
	"github.com/stratix/workflow-engine/pkg/models"
)

// ListExecutionsParams contains parameters for listing executions.
type ListExecutionsParams struct {
	Limit      int
	Offset     int
	WorkflowID *uuid.UUID
	Status     *string
}

// ListExecutionsResult contains the result of listing executions.
type ListExecutionsResult struct {
	Executions []*models.Execution
	Total      int
}

func (o *Operations) ListExecutions(ctx context.Context, params ListExecutionsParams) (*ListExecutionsResult, error) {
	var execModels []*storagemodels.ExecutionModel
	var err error

	if params.WorkflowID != nil {
		execModels, err = o.ExecutionRepo.FindByWorkflowID(ctx, *params.WorkflowID, params.Limit, params.Offset)
	} else if params.Status != nil {
		execModels, err = o.ExecutionRepo.FindByStatus(ctx, *params.Status, params.Limit, params.Offset)
	} else {
		execModels, err = o.ExecutionRepo.FindAll(ctx, params.Limit, params.Offset)
	}

	if err != nil {
		o.Logger.Error("Failed to list executions", "error", err, "limit", params.Limit, "offset", params.Offset)
		return nil, err
	}

	executions := make([]*models.Execution, len(execModels))
	for i, em := range execModels {
		executions[i] = engine.ExecutionModelToDomain(em)
	}

	return &ListExecutionsResult{
		Executions: executions,
		Total:      len(executions),
	}, nil
}

// GetExecutionParams contains parameters for getting an execution.
type GetExecutionParams struct {
	ExecutionID uuid.UUID
}

func (o *Operations) GetExecution(ctx context.Context, params GetExecutionParams) (*models.Execution, error) {
	execModel, err := o.ExecutionRepo.FindByIDWithRelations(ctx, params.ExecutionID)
	if err != nil {
		o.Logger.Error("Failed to find execution", "error", err, "execution_id", params.ExecutionID)
		return nil, err
	}

	execution := engine.ExecutionModelToDomain(execModel)

	workflowModel, err := o.WorkflowRepo.FindByIDWithRelations(ctx, execModel.WorkflowID)
	if err == nil && workflowModel != nil {
		nodeIDMap := make(map[string]string)
		nodeNameMap := make(map[string]string)
		nodeTypeMap := make(map[string]string)
		for _, node := range workflowModel.Nodes {
			nodeIDMap[node.ID.String()] = node.NodeID
			nodeNameMap[node.ID.String()] = node.Name
			nodeTypeMap[node.ID.String()] = node.Type
		}

		for _, ne := range execution.NodeExecutions {
			if logicalID, found := nodeIDMap[ne.NodeID]; found {
				ne.NodeID = logicalID
			}
			if nodeName, found := nodeNameMap[ne.NodeID]; found {
				ne.NodeName = nodeName
			} else if ne.NodeID != "" {
				for _, node := range workflowModel.Nodes {
					if node.NodeID == ne.NodeID {
						ne.NodeName = node.Name
						ne.NodeType = node.Type
						break
					}
				}
			}
			if nodeType, found := nodeTypeMap[ne.NodeID]; found {
				ne.NodeType = nodeType
			}
		}
	}

	return execution, nil
}

// StartExecutionParams contains parameters for starting an execution.
// BusinessKey / MutexKey, when set, refuse to start while another live
// instance holds the same key.
type StartExecutionParams struct {
	WorkflowID  string
	Input       map[string]any
	Name        string
	ExternalID  string
	BusinessKey string
	MutexKey    string
	Priority    int
}

func (o *Operations) StartExecution(ctx context.Context, params StartExecutionParams) (*models.Execution, error) {
	opts := engine.DefaultExecutionOptions()
	opts.Name = params.Name
	opts.ExternalID = params.ExternalID
	opts.BusinessKey = params.BusinessKey
	opts.MutexKey = params.MutexKey
	opts.Priority = params.Priority

	execution, err := o.ExecutionMgr.ExecuteAsync(ctx, params.WorkflowID, params.Input, opts)
	if err != nil {
		if errors.Is(err, models.ErrLockConflict) {
			return nil, NewConflictError("INSTANCE_KEY_CONFLICT", err.Error())
		}
		o.Logger.Error("Failed to start workflow execution", "error", err, "workflow_id", params.WorkflowID)
		return nil, err
	}

	o.Logger.Info("Workflow execution started via service API", "execution_id", execution.ID, "workflow_id", params.WorkflowID)
	return execution, nil
}

// CancelExecutionParams contains parameters for cancelling an execution.
type CancelExecutionParams struct {
	ExecutionID uuid.UUID
}

func (o *Operations) CancelExecution(ctx context.Context, params CancelExecutionParams) error {
	if err := o.ExecutionMgr.Cancel(ctx, params.ExecutionID.String()); err != nil {
		o.Logger.Error("Failed to cancel execution", "error", err, "execution_id", params.ExecutionID)
		return NewValidationError("EXECUTION_NOT_CANCELLABLE", err.Error())
	}
	return nil
}

// RetryExecutionParams contains parameters for retrying an execution.
type RetryExecutionParams struct {
	ExecutionID uuid.UUID
}

func (o *Operations) RetryExecution(ctx context.Context, params RetryExecutionParams) error {
	_, err := o.ExecutionMgr.Resume(ctx, params.ExecutionID.String())
	if err != nil {
		if errors.Is(err, models.ErrRetriesExhausted) {
			return NewConflictError("RETRIES_EXHAUSTED", err.Error())
		}
		o.Logger.Error("Failed to retry execution", "error", err, "execution_id", params.ExecutionID)
		return NewValidationError("EXECUTION_NOT_RETRYABLE", err.Error())
	}
	return nil
}

// PauseExecutionParams contains parameters for pausing an execution.
type PauseExecutionParams struct {
	ExecutionID uuid.UUID
}

func (o *Operations) PauseExecution(ctx context.Context, params PauseExecutionParams) error {
	if err := o.ExecutionMgr.Pause(ctx, params.ExecutionID.String()); err != nil {
		o.Logger.Error("Failed to pause execution", "error", err, "execution_id", params.ExecutionID)
		return NewValidationError("EXECUTION_NOT_PAUSABLE", err.Error())
	}
	return nil
}

// ResumeExecutionParams contains parameters for resuming a paused execution.
type ResumeExecutionParams struct {
	ExecutionID uuid.UUID
}

func (o *Operations) ResumeExecution(ctx context.Context, params ResumeExecutionParams) (*models.Execution, error) {
	execution, err := o.ExecutionMgr.Resume(ctx, params.ExecutionID.String())
	if err != nil {
		o.Logger.Error("Failed to resume execution", "error", err, "execution_id", params.ExecutionID)
		return nil, NewValidationError("EXECUTION_NOT_RESUMABLE", err.Error())
	}
	return execution, nil
}

type GetExecutionLogsParams struct {
	ExecutionID uuid.UUID
}

type ExecutionLogEntry struct {
	Timestamp time.Time
	NodeID    *uuid.UUID
	Level     string
	Message   string
	Data      map[string]any
}

type GetExecutionLogsResult struct {
	Logs  []ExecutionLogEntry
	Total int
}

// DeleteExecutionParams contains parameters for deleting an execution.
type DeleteExecutionParams struct {
	ExecutionID uuid.UUID
}

// DeleteExecution removes a WorkflowInstance and, by cascade,
// every NodeExecution and ExecutionLog it owns. Restricted to
// terminal instances: deleting a still-running instance out from under its
// owning engine would leave that engine renewing a lock and heartbeating
// for a row that no longer exists.
func (o *Operations) DeleteExecution(ctx context.Context, params DeleteExecutionParams) error {
	execModel, err := o.ExecutionRepo.FindByID(ctx, params.ExecutionID)
	if err != nil {
		o.Logger.Error("Failed to find execution for deletion", "error", err, "execution_id", params.ExecutionID)
		return err
	}

	if !execModel.IsTerminal() {
		return NewConflictError("EXECUTION_NOT_TERMINAL", "Only completed, failed, or cancelled executions can be deleted")
	}

	if err := o.ExecutionRepo.Delete(ctx, params.ExecutionID); err != nil {
		o.Logger.Error("Failed to delete execution", "error", err, "execution_id", params.ExecutionID)
		return err
	}
	return nil
}

func (o *Operations) GetExecutionLogs(ctx context.Context, params GetExecutionLogsParams) (*GetExecutionLogsResult, error) {
	entries, err := o.ExecutionRepo.GetLogs(ctx, params.ExecutionID)
	if err != nil {
		o.Logger.Error("Failed to get execution logs", "error", err, "execution_id", params.ExecutionID)
		return &GetExecutionLogsResult{Logs: []ExecutionLogEntry{}, Total: 0}, nil
	}

	logs := make([]ExecutionLogEntry, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, ExecutionLogEntry{
			Timestamp: entry.CreatedAt,
			NodeID:    entry.NodeID,
			Level:     entry.Level,
			Message:   entry.Message,
			Data:      map[string]any(entry.Fields),
		})
	}

	return &GetExecutionLogsResult{Logs: logs, Total: len(logs)}, nil
}

type GetNodeResultParams struct {
	ExecutionID uuid.UUID
	NodeID      string
}

func (o *Operations) GetNodeResult(ctx context.Context, params GetNodeResultParams) (*models.NodeExecution, error) {
	execModel, err := o.ExecutionRepo.FindByIDWithRelations(ctx, params.ExecutionID)
	if err != nil {
		o.Logger.Error("Failed to find execution in GetNodeResult", "error", err, "execution_id", params.ExecutionID)
		return nil, err
	}

	workflowModel, err := o.WorkflowRepo.FindByIDWithRelations(ctx, execModel.WorkflowID)
	if err != nil {
		o.Logger.Error("Failed to find workflow in GetNodeResult", "error", err, "workflow_id", execModel.WorkflowID)
		return nil, err
	}

	nodeIDMap := make(map[uuid.UUID]string)
	for _, node := range workflowModel.Nodes {
		nodeIDMap[node.ID] = node.NodeID
	}

	for _, ne := range execModel.NodeExecutions {
		if logicalID, ok := nodeIDMap[ne.NodeID]; ok && logicalID == params.NodeID {
			nodeExec := engine.NodeExecutionModelToDomain(ne)
			nodeExec.NodeID = params.NodeID
			return nodeExec, nil
		}
	}

	return nil, NewValidationError("NODE_EXECUTION_NOT_FOUND", "Node execution not found")
}

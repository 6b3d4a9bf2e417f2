package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
)

// ExecutionRepository defines the interface for workflow instance persistence
type ExecutionRepository interface {
	// Create creates a new execution
	Create(ctx context.Context, execution *models.ExecutionModel) error

	// Update updates an existing execution
	Update(ctx context.Context, execution *models.ExecutionModel) error

	// Delete deletes an execution
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByID retrieves an execution by ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.ExecutionModel, error)

	// FindByIDWithRelations retrieves an execution with all its node executions
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*models.ExecutionModel, error)

	// FindByWorkflowID retrieves executions for a workflow with pagination
	FindByWorkflowID(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]*models.ExecutionModel, error)

	// FindByStatus retrieves executions by status with pagination
	FindByStatus(ctx context.Context, status string, limit, offset int) ([]*models.ExecutionModel, error)

	// FindAll retrieves all executions with pagination
	FindAll(ctx context.Context, limit, offset int) ([]*models.ExecutionModel, error)

	// FindRunning retrieves all running executions
	FindRunning(ctx context.Context) ([]*models.ExecutionModel, error)

	// FindStaleRunning retrieves executions in running/interrupted status whose
	// last heartbeat is older than the given threshold, for the Recovery Service.
	FindStaleRunning(ctx context.Context, heartbeatBefore time.Time) ([]*models.ExecutionModel, error)

	// UpdateHeartbeat stamps lastHeartbeat for a running instance without
	// touching any other column, called on every heartbeat tick.
	UpdateHeartbeat(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkInterrupted transitions a running instance to interrupted status,
	// used by the Recovery Service when it reclaims abandoned work.
	MarkInterrupted(ctx context.Context, id uuid.UUID) error

	// SaveCheckpoint persists the resumption checkpoint (current node id and
	// serialized execution state) without touching any other column.
	SaveCheckpoint(ctx context.Context, id uuid.UUID, currentNodeID *string, checkpoint models.JSONBMap) error

	// IncrementRetryCount bumps an instance's retry counter in place, used by
	// the failed->running retry transition.
	IncrementRetryCount(ctx context.Context, id uuid.UUID) error

	// UpdateStatusBulk sets status on every given execution in one statement.
	// Callers pass at most 500 ids per call. Returns the number of rows
	// updated.
	UpdateStatusBulk(ctx context.Context, ids []uuid.UUID, status string) (int, error)

	// Count returns the total count of executions
	Count(ctx context.Context) (int, error)

	// CountByWorkflowID returns the count of executions for a workflow
	CountByWorkflowID(ctx context.Context, workflowID uuid.UUID) (int, error)

	// CountByStatus returns the count of executions by status
	CountByStatus(ctx context.Context, status string) (int, error)

	// CreateNodeExecution creates a new node execution
	CreateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecutionModel) error

	// UpdateNodeExecution updates an existing node execution
	UpdateNodeExecution(ctx context.Context, nodeExecution *models.NodeExecutionModel) error

	// DeleteNodeExecution deletes a node execution
	DeleteNodeExecution(ctx context.Context, id uuid.UUID) error

	// FindNodeExecutionByID retrieves a node execution by ID
	FindNodeExecutionByID(ctx context.Context, id uuid.UUID) (*models.NodeExecutionModel, error)

	// FindNodeExecutionsByExecutionID retrieves all node executions for an execution
	FindNodeExecutionsByExecutionID(ctx context.Context, executionID uuid.UUID) ([]*models.NodeExecutionModel, error)

	// FindNodeExecutionsByWave retrieves node executions by wave number
	FindNodeExecutionsByWave(ctx context.Context, executionID uuid.UUID, wave int) ([]*models.NodeExecutionModel, error)

	// FindNodeExecutionsByStatus retrieves node executions by status
	FindNodeExecutionsByStatus(ctx context.Context, executionID uuid.UUID, status string) ([]*models.NodeExecutionModel, error)

	// CreateLog appends an execution log entry
	CreateLog(ctx context.Context, log *models.ExecutionLogModel) error

	// GetLogs retrieves all log entries for an execution, oldest first
	GetLogs(ctx context.Context, executionID uuid.UUID) ([]*models.ExecutionLogModel, error)

	// GetStatistics retrieves execution statistics
	GetStatistics(ctx context.Context, workflowID *uuid.UUID, from, to time.Time) (*ExecutionStatistics, error)
}

// ExecutionStatistics holds aggregated execution statistics
type ExecutionStatistics struct {
	TotalExecutions int            `json:"total_executions"`
	CompletedCount  int            `json:"completed_count"`
	FailedCount     int            `json:"failed_count"`
	CancelledCount  int            `json:"cancelled_count"`
	RunningCount    int            `json:"running_count"`
	PendingCount    int            `json:"pending_count"`
	AverageDuration *time.Duration `json:"average_duration,omitempty"`
	SuccessRate     float64        `json:"success_rate"`
	FailureRate     float64        `json:"failure_rate"`
}

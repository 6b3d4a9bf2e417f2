package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ExecutionModel represents a workflow instance (a single run of a workflow
// definition) in the database.
type ExecutionModel struct {
	bun.BaseModel `bun:"table:workflow_instances,alias:ex"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	WorkflowID  uuid.UUID  `bun:"workflow_id,notnull,type:uuid" json:"workflow_id" validate:"required"`
	ScheduleID  *uuid.UUID `bun:"schedule_id,type:uuid" json:"schedule_id,omitempty"`
	// ParentExecutionID is set when this instance was spawned by a subprocess
	// node in another workflow instance.
	ParentExecutionID *uuid.UUID `bun:"parent_execution_id,type:uuid" json:"parent_execution_id,omitempty"`
	ParentNodeID      *uuid.UUID `bun:"parent_node_id,type:uuid" json:"parent_node_id,omitempty"`

	Name string `bun:"name" json:"name,omitempty"`
	// ExternalID is a caller-supplied identifier, unique across instances
	// when present.
	ExternalID *string `bun:"external_id" json:"external_id,omitempty"`
	// BusinessKey and MutexKey drive business:<key> / mutex:<key> instance
	// exclusion across engine replicas.
	BusinessKey string `bun:"business_key" json:"business_key,omitempty"`
	MutexKey    string `bun:"mutex_key" json:"mutex_key,omitempty"`
	Priority    int    `bun:"priority,notnull,default:0" json:"priority"`

	Status      string     `bun:"status,notnull,default:'pending'" json:"status" validate:"required,oneof=pending scheduled running paused interrupted completed failed cancelled"`
	ScheduledAt *time.Time `bun:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt   *time.Time `bun:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `bun:"completed_at" json:"completed_at,omitempty"`
	// InterruptedAt is stamped by the Recovery Service when it reclaims this
	// instance from a dead engine.
	InterruptedAt *time.Time `bun:"interrupted_at" json:"interrupted_at,omitempty"`

	InputData  JSONBMap `bun:"input_data,type:jsonb,default:'{}'" json:"input_data,omitempty"`
	OutputData JSONBMap `bun:"output_data,type:jsonb" json:"output_data,omitempty"`
	Variables  JSONBMap `bun:"variables,type:jsonb,default:'{}'" json:"variables,omitempty"`
	StrictMode bool     `bun:"strict_mode,default:false" json:"strict_mode"`

	// CurrentNodeID and CheckpointData are the resumption checkpoint: the
	// most recently completed node plus the serialized execution state as of
	// that point.
	CurrentNodeID  *string  `bun:"current_node_id" json:"current_node_id,omitempty"`
	CheckpointData JSONBMap `bun:"checkpoint_data,type:jsonb" json:"checkpoint_data,omitempty"`

	// RetryCount counts failed->running retry transitions; bounded by
	// MaxRetries.
	RetryCount int `bun:"retry_count,notnull,default:0" json:"retry_count"`
	MaxRetries int `bun:"max_retries,notnull,default:3" json:"max_retries"`

	Error        string   `bun:"error" json:"error,omitempty"`
	ErrorDetails JSONBMap `bun:"error_details,type:jsonb" json:"error_details,omitempty"`
	Metadata     JSONBMap `bun:"metadata,type:jsonb,default:'{}'" json:"metadata,omitempty"`

	// EngineID identifies the engine instance currently (or last) driving
	// this instance; used by the Recovery Service to detect orphaned work.
	// LockOwner / LockAcquiredAt mirror the workflow:instance:<id> lease for
	// observability; the lock table remains authoritative.
	EngineID       string     `bun:"engine_id" json:"engine_id,omitempty"`
	LockOwner      string     `bun:"lock_owner" json:"lock_owner,omitempty"`
	LockAcquiredAt *time.Time `bun:"lock_acquired_at" json:"lock_acquired_at,omitempty"`
	LastHeartbeat  *time.Time `bun:"last_heartbeat" json:"last_heartbeat,omitempty"`

	CreatedBy *uuid.UUID `bun:"created_by,type:uuid" json:"created_by,omitempty"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	// Relationships
	Workflow       *WorkflowModel        `bun:"rel:belongs-to,join:workflow_id=id" json:"workflow,omitempty"`
	Schedule       *ScheduleModel        `bun:"rel:belongs-to,join:schedule_id=id" json:"schedule,omitempty"`
	NodeExecutions []*NodeExecutionModel `bun:"rel:has-many,join:id=execution_id" json:"node_executions,omitempty"`
	Logs           []*ExecutionLogModel  `bun:"rel:has-many,join:id=execution_id" json:"logs,omitempty"`
}

// TableName returns the table name for ExecutionModel
func (ExecutionModel) TableName() string {
	return "workflow_instances"
}

// BeforeInsert hook to set timestamps
func (e *ExecutionModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.InputData == nil {
		e.InputData = make(JSONBMap)
	}
	if e.Variables == nil {
		e.Variables = make(JSONBMap)
	}
	if e.Metadata == nil {
		e.Metadata = make(JSONBMap)
	}
	if e.MaxRetries <= 0 {
		e.MaxRetries = 3
	}
	return nil
}

// BusinessLockKeyFor returns the business:<key> lock key for this instance,
// empty when no business key is set.
func (e *ExecutionModel) BusinessLockKeyFor() string {
	if e.BusinessKey == "" {
		return ""
	}
	return BusinessLockKey(e.BusinessKey)
}

// MutexLockKeyFor returns the mutex:<key> lock key for this instance, empty
// when no mutex key is set.
func (e *ExecutionModel) MutexLockKeyFor() string {
	if e.MutexKey == "" {
		return ""
	}
	return MutexLockKey(e.MutexKey)
}

// BeforeUpdate hook to update timestamp
func (e *ExecutionModel) BeforeUpdate(ctx interface{}) error {
	e.UpdatedAt = time.Now()
	return nil
}

// IsPending returns true if execution is in pending status
func (e *ExecutionModel) IsPending() bool {
	return e.Status == "pending"
}

// IsRunning returns true if execution is in running status
func (e *ExecutionModel) IsRunning() bool {
	return e.Status == "running"
}

// IsCompleted returns true if execution is in completed status
func (e *ExecutionModel) IsCompleted() bool {
	return e.Status == "completed"
}

// IsFailed returns true if execution is in failed status
func (e *ExecutionModel) IsFailed() bool {
	return e.Status == "failed"
}

// IsCancelled returns true if execution is in cancelled status
func (e *ExecutionModel) IsCancelled() bool {
	return e.Status == "cancelled"
}

// IsPaused returns true if execution is in paused status
func (e *ExecutionModel) IsPaused() bool {
	return e.Status == "paused"
}

// IsScheduled returns true if execution is queued to run but not yet started.
func (e *ExecutionModel) IsScheduled() bool {
	return e.Status == "scheduled"
}

// IsInterrupted returns true if execution was reclaimed by the Recovery
// Service after its owning engine went silent.
func (e *ExecutionModel) IsInterrupted() bool {
	return e.Status == "interrupted"
}

// IsTerminal returns true if execution is in a terminal state
func (e *ExecutionModel) IsTerminal() bool {
	return e.IsCompleted() || e.IsFailed() || e.IsCancelled()
}

// Duration returns the execution duration if completed
func (e *ExecutionModel) Duration() *time.Duration {
	if e.StartedAt == nil || e.CompletedAt == nil {
		return nil
	}
	duration := e.CompletedAt.Sub(*e.StartedAt)
	return &duration
}

// MarkStarted sets the started timestamp and status
func (e *ExecutionModel) MarkStarted() {
	now := time.Now()
	e.StartedAt = &now
	e.Status = "running"
}

// MarkCompleted sets the completed timestamp and status
func (e *ExecutionModel) MarkCompleted() {
	now := time.Now()
	e.CompletedAt = &now
	e.Status = "completed"
}

// MarkFailed sets the completed timestamp, status, and error
func (e *ExecutionModel) MarkFailed(err string) {
	now := time.Now()
	e.CompletedAt = &now
	e.Status = "failed"
	e.Error = err
}

// MarkCancelled sets the completed timestamp and status
func (e *ExecutionModel) MarkCancelled() {
	now := time.Now()
	e.CompletedAt = &now
	e.Status = "cancelled"
}

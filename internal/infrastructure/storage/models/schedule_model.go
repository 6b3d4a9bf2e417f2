package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ScheduleModel represents a cron schedule bound to a workflow definition.
type ScheduleModel struct {
	bun.BaseModel `bun:"table:schedules,alias:sc"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	WorkflowID     uuid.UUID  `bun:"workflow_id,notnull,type:uuid" json:"workflow_id"`
	CronExpression string     `bun:"cron_expression,notnull" json:"cron_expression"`
	Timezone       string     `bun:"timezone,notnull,default:'UTC'" json:"timezone"`
	Enabled        bool       `bun:"enabled,notnull,default:true" json:"enabled"`
	MaxInstances   int        `bun:"max_instances,notnull,default:1" json:"max_instances"`
	MutexKey       string     `bun:"mutex_key" json:"mutex_key,omitempty"`
	Input          JSONBMap   `bun:"input,type:jsonb,default:'{}'" json:"input,omitempty"`
	NextFireAt     *time.Time `bun:"next_fire_at" json:"next_fire_at,omitempty"`
	LastFiredAt    *time.Time `bun:"last_fired_at" json:"last_fired_at,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Workflow *WorkflowModel `bun:"rel:belongs-to,join:workflow_id=id" json:"workflow,omitempty"`
}

// TableName returns the table name for ScheduleModel.
func (ScheduleModel) TableName() string {
	return "schedules"
}

// BeforeInsert hook to set timestamps and defaults.
func (s *ScheduleModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if s.MaxInstances <= 0 {
		s.MaxInstances = 1
	}
	if s.Input == nil {
		s.Input = make(JSONBMap)
	}
	return nil
}

// BeforeUpdate hook to update timestamp.
func (s *ScheduleModel) BeforeUpdate(ctx interface{}) error {
	s.UpdatedAt = time.Now()
	return nil
}

// MutexKeyFor returns the mutex lock key this schedule must hold before firing.
// Empty when the schedule has no configured mutex.
func (s *ScheduleModel) MutexKeyFor() string {
	if s.MutexKey == "" {
		return ""
	}
	return "mutex:" + s.MutexKey
}

// ScheduleExecutionModel records a single firing attempt of a Schedule.
type ScheduleExecutionModel struct {
	bun.BaseModel `bun:"table:schedule_executions,alias:sce"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ScheduleID  uuid.UUID  `bun:"schedule_id,notnull,type:uuid" json:"schedule_id"`
	ExecutionID *uuid.UUID `bun:"execution_id,type:uuid" json:"execution_id,omitempty"`
	Status      string     `bun:"status,notnull" json:"status" validate:"oneof=dispatched failed skipped"`
	Error       string     `bun:"error" json:"error,omitempty"`
	FiredAt     time.Time  `bun:"fired_at,notnull,default:current_timestamp" json:"fired_at"`

	Schedule *ScheduleModel  `bun:"rel:belongs-to,join:schedule_id=id" json:"schedule,omitempty"`
	Execution *ExecutionModel `bun:"rel:belongs-to,join:execution_id=id" json:"execution,omitempty"`
}

// TableName returns the table name for ScheduleExecutionModel.
func (ScheduleExecutionModel) TableName() string {
	return "schedule_executions"
}

// BeforeInsert hook to set timestamp and ID.
func (se *ScheduleExecutionModel) BeforeInsert(ctx interface{}) error {
	if se.ID == uuid.Nil {
		se.ID = uuid.New()
	}
	if se.FiredAt.IsZero() {
		se.FiredAt = time.Now()
	}
	return nil
}

// Status constants for ScheduleExecutionModel.
const (
	ScheduleExecutionStatusDispatched = "dispatched"
	ScheduleExecutionStatusFailed     = "failed"
	ScheduleExecutionStatusSkipped    = "skipped"
)

// ErrMutexConflict is the ScheduleExecution.Error value recorded when a mutex-key
// conflict prevented a schedule from firing.
const ErrMutexConflict = "mutex_conflict"

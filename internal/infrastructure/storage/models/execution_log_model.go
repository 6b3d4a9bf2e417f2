package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ExecutionLogModel represents a single structured log line emitted during a
// workflow instance's lifetime. Unlike application logging, rows here are
// queryable per-execution through the Control API, each tagged with its node.
type ExecutionLogModel struct {
	bun.BaseModel `bun:"table:execution_logs,alias:el"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ExecutionID uuid.UUID `bun:"execution_id,notnull,type:uuid" json:"execution_id"`
	NodeID      *uuid.UUID `bun:"node_id,type:uuid" json:"node_id,omitempty"`
	Level       string    `bun:"level,notnull,default:'info'" json:"level" validate:"oneof=debug info warn error"`
	Message     string    `bun:"message,notnull" json:"message"`
	Fields      JSONBMap  `bun:"fields,type:jsonb,default:'{}'" json:"fields,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Execution *ExecutionModel `bun:"rel:belongs-to,join:execution_id=id" json:"execution,omitempty"`
}

// TableName returns the table name for ExecutionLogModel.
func (ExecutionLogModel) TableName() string {
	return "execution_logs"
}

// BeforeInsert hook to set timestamp and ID.
func (l *ExecutionLogModel) BeforeInsert(ctx interface{}) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Fields == nil {
		l.Fields = make(JSONBMap)
	}
	return nil
}

// Log level constants.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

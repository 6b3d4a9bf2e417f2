package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DistributedLockModel is a row-backed lease used to serialize access across
// engine instances. Renew and release are single conditional writes against
// this table; acquire runs a delete, an insert and a select in one transaction.
// No in-memory lock state is shared across processes.
type DistributedLockModel struct {
	bun.BaseModel `bun:"table:distributed_locks,alias:dl"`

	LockKey    string     `bun:"lock_key,pk" json:"lock_key"`
	Owner      string     `bun:"owner,notnull" json:"owner"`
	LockType   string     `bun:"lock_type,notnull" json:"lock_type" validate:"oneof=workflow resource mutex business"`
	AcquiredAt time.Time  `bun:"acquired_at,notnull,default:current_timestamp" json:"acquired_at"`
	ExpiresAt  time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	RenewedAt  *time.Time `bun:"renewed_at" json:"renewed_at,omitempty"`
	Metadata   JSONBMap   `bun:"metadata,type:jsonb,default:'{}'" json:"metadata,omitempty"`
}

// TableName returns the table name for DistributedLockModel.
func (DistributedLockModel) TableName() string {
	return "distributed_locks"
}

// BeforeInsert hook to set acquired timestamp and default metadata.
func (l *DistributedLockModel) BeforeInsert(ctx interface{}) error {
	if l.AcquiredAt.IsZero() {
		l.AcquiredAt = time.Now()
	}
	if l.Metadata == nil {
		l.Metadata = make(JSONBMap)
	}
	return nil
}

// IsExpired reports whether the lock's lease has elapsed as of now.
func (l *DistributedLockModel) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Lock type constants.
const (
	LockTypeWorkflow = "workflow"
	LockTypeResource = "resource"
	LockTypeMutex    = "mutex"
	LockTypeBusiness = "business"
)

// WorkflowInstanceLockKey returns the mutex key used to serialize access to a
// single running workflow instance.
func WorkflowInstanceLockKey(instanceID string) string {
	return "workflow:instance:" + instanceID
}

// BusinessLockKey returns the mutex key for a caller-supplied business key.
func BusinessLockKey(businessKey string) string {
	return "business:" + businessKey
}

// MutexLockKey returns the mutex key for a caller-supplied mutex name.
func MutexLockKey(mutexKey string) string {
	return "mutex:" + mutexKey
}

// SchedulerLeaderLockKey is the single lock contended by every scheduler
// replica to decide which instance drives cron dispatch.
const SchedulerLeaderLockKey = "scheduler:leader"

// EngineInstanceModel tracks a live engine process for heartbeat-based
// liveness checks used by the Recovery Service.
type EngineInstanceModel struct {
	bun.BaseModel `bun:"table:engine_instances,alias:ei"`

	ID            string    `bun:"id,pk" json:"id"`
	Hostname      string    `bun:"hostname,notnull" json:"hostname"`
	StartedAt     time.Time `bun:"started_at,notnull,default:current_timestamp" json:"started_at"`
	LastHeartbeat time.Time `bun:"last_heartbeat,notnull,default:current_timestamp" json:"last_heartbeat"`
	Metadata      JSONBMap  `bun:"metadata,type:jsonb,default:'{}'" json:"metadata,omitempty"`
}

// TableName returns the table name for EngineInstanceModel.
func (EngineInstanceModel) TableName() string {
	return "engine_instances"
}

// BeforeInsert hook to set timestamps and defaults.
func (e *EngineInstanceModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	if e.StartedAt.IsZero() {
		e.StartedAt = now
	}
	if e.LastHeartbeat.IsZero() {
		e.LastHeartbeat = now
	}
	if e.Metadata == nil {
		e.Metadata = make(JSONBMap)
	}
	return nil
}

// IsStale reports whether the engine's heartbeat is older than threshold,
// making it a candidate for the Recovery Service to reclaim its instances.
func (e *EngineInstanceModel) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(e.LastHeartbeat) > threshold
}

package serviceapi

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stratix/workflow-engine/internal/domain/repository"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
)

// ListLocksResult contains the current state of every distributed lock on
// record, live and expired, for the operator-facing locks status endpoint.
type ListLocksResult struct {
	Locks []*storagemodels.DistributedLockModel
}

// ListLocks returns every lease currently on record. Operator-only: exposes
// raw lock-table state, not something a workflow caller needs.
func (o *Operations) ListLocks(ctx context.Context) (*ListLocksResult, error) {
	locks, err := o.LockRepo.FindAll(ctx)
	if err != nil {
		o.Logger.Error("Failed to list distributed locks", "error", err)
		return nil, err
	}
	return &ListLocksResult{Locks: locks}, nil
}

// CleanupLocksResult reports how many expired leases a cleanup pass removed.
type CleanupLocksResult struct {
	Removed int
}

// CleanupLocks deletes every lease past its expiry. Operator-triggered
// variant of the same sweep the Recovery Service runs on its own schedule
// safe to call at any time since it only ever touches rows
// that have already lapsed.
func (o *Operations) CleanupLocks(ctx context.Context) (*CleanupLocksResult, error) {
	removed, err := o.LockRepo.CleanupExpiredLocks(ctx)
	if err != nil {
		o.Logger.Error("Failed to cleanup expired locks", "error", err)
		return nil, err
	}
	return &CleanupLocksResult{Removed: removed}, nil
}

// ForceReleaseLockParams contains parameters for forcibly dropping a lock.
type ForceReleaseLockParams struct {
	LockKey string
}

// ForceReleaseLock drops a lease unconditionally, regardless of owner or
// expiry. Restricted to the operator API: a caller reaching for this
// is asserting the recorded owner is definitely gone, bypassing the normal
// owner-matched Release path.
func (o *Operations) ForceReleaseLock(ctx context.Context, params ForceReleaseLockParams) error {
	if params.LockKey == "" {
		return NewValidationError("LOCK_KEY_REQUIRED", "Lock key is required")
	}
	if err := o.LockRepo.ForceRelease(ctx, params.LockKey); err != nil {
		o.Logger.Error("Failed to force-release lock", "error", err, "lock_key", params.LockKey)
		return err
	}
	return nil
}

// EngineStatus reports one engine replica's liveness alongside what the
// operator-facing "statistics" view asks for.
type EngineStatus struct {
	Engine  *storagemodels.EngineInstanceModel
	Healthy bool
}

// ListEnginesResult contains every registered engine replica's status.
type ListEnginesResult struct {
	Engines []*EngineStatus
}

// StaleEngineThreshold bounds how stale a heartbeat may be before an engine
// is reported unhealthy by ListEngines. Mirrors the Recovery Service's own
// HeartbeatTimeout default since both answer the same liveness
// question from different callers.
const StaleEngineThreshold = 90 * time.Second

// ListEngines returns every registered engine instance with a computed
// health flag, for the operator-facing engines status/health/statistics
// endpoints.
func (o *Operations) ListEngines(ctx context.Context) (*ListEnginesResult, error) {
	engines, err := o.LockRepo.FindAllEngines(ctx)
	if err != nil {
		o.Logger.Error("Failed to list engine instances", "error", err)
		return nil, err
	}

	now := time.Now()
	statuses := make([]*EngineStatus, len(engines))
	for i, e := range engines {
		statuses[i] = &EngineStatus{
			Engine:  e,
			Healthy: !e.IsStale(now, StaleEngineThreshold),
		}
	}

	return &ListEnginesResult{Engines: statuses}, nil
}

// GetStatisticsParams bounds the statistics window and optionally scopes it
// to one workflow definition.
type GetStatisticsParams struct {
	WorkflowID *uuid.UUID
	From       time.Time
	To         time.Time
}

// GetStatistics returns aggregated execution counts, success/failure rates,
// and average duration over the given window, for the operator-facing
// statistics endpoint.
func (o *Operations) GetStatistics(ctx context.Context, params GetStatisticsParams) (*repository.ExecutionStatistics, error) {
	from := params.From
	to := params.To
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if !to.After(from) {
		return nil, NewValidationError("INVALID_TIME_RANGE", "To must be after From")
	}

	stats, err := o.ExecutionRepo.GetStatistics(ctx, params.WorkflowID, from, to)
	if err != nil {
		o.Logger.Error("Failed to compute execution statistics", "error", err)
		return nil, err
	}
	return stats, nil
}

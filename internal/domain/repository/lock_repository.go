package repository

import (
	"context"
	"time"

	"github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
)

// LockRepository defines the interface for the distributed lock ledger and
// engine instance heartbeats backing the Distributed Lock Manager and
// Recovery Service.
type LockRepository interface {
	// Acquire attempts to take the lease for key, deleting any expired lease
	// first, inside the same transaction. Returns false if a live lease held
	// by a different owner already exists.
	Acquire(ctx context.Context, key, owner, lockType string, ttl time.Duration, metadata map[string]any) (bool, error)

	// Renew extends the lease for key if owner still holds it. Returns false
	// if the lease expired or is held by a different owner.
	Renew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	// Release drops the lease for key if owner still holds it. Returns false
	// if the lease was already gone or held by a different owner.
	Release(ctx context.Context, key, owner string) (bool, error)

	// ForceRelease drops the lease for key unconditionally, used by the
	// Recovery Service when reclaiming work from a dead owner.
	ForceRelease(ctx context.Context, key string) error

	// Find retrieves the current lease for key, if any.
	Find(ctx context.Context, key string) (*models.DistributedLockModel, error)

	// FindAll retrieves every lease currently on record (live and expired),
	// for the operator-facing locks status endpoint.
	FindAll(ctx context.Context) ([]*models.DistributedLockModel, error)

	// RegisterEngine upserts this process's heartbeat row.
	RegisterEngine(ctx context.Context, instance *models.EngineInstanceModel) error

	// Heartbeat updates an engine instance's last-seen timestamp.
	Heartbeat(ctx context.Context, id string, at time.Time) error

	// FindStaleEngines retrieves engine instances whose heartbeat predates
	// the given threshold, as candidates for work reclamation.
	FindStaleEngines(ctx context.Context, before time.Time) ([]*models.EngineInstanceModel, error)

	// RemoveEngine deletes an engine instance's heartbeat row, called on
	// graceful shutdown.
	RemoveEngine(ctx context.Context, id string) error

	// FindAllEngines retrieves every registered engine instance, for the
	// operator-facing engines status/health/statistics endpoints.
	FindAllEngines(ctx context.Context) ([]*models.EngineInstanceModel, error)

	// CleanupExpiredLocks deletes all leases past their expiry, returning the
	// number of rows removed. Called periodically by the Recovery Service
	// independent of any single Acquire call.
	CleanupExpiredLocks(ctx context.Context) (int, error)
}

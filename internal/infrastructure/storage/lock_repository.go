package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stratix/workflow-engine/internal/domain/repository"
	"github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
	"github.com/uptrace/bun"
)

// LockRepository implements repository.LockRepository backing the
// Distributed Lock Manager and Recovery Service with row-level leases.
type LockRepository struct {
	db *bun.DB
}

// NewLockRepository creates a new LockRepository
func NewLockRepository(db *bun.DB) repository.LockRepository {
	return &LockRepository{db: db}
}

// Acquire deletes any expired lease for key and inserts a fresh one inside a
// single transaction. A conflicting live lease turns the insert into a no-op
// (ON CONFLICT DO NOTHING), and the follow-up select reports whether owner
// holds a live lease, so the current owner re-acquiring succeeds. Every expiry
// comparison and lease timestamp is computed from the database's own now(),
// never this process's wall clock, so skewed engine clocks cannot disagree
// on whether a lease is alive.
func (r *LockRepository) Acquire(ctx context.Context, key, owner, lockType string, ttl time.Duration, metadata map[string]any) (bool, error) {
	acquired := false

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.DistributedLockModel)(nil)).
			Where("lock_key = ? AND expires_at <= now()", key).
			Exec(ctx)
		if err != nil {
			return err
		}

		lock := &models.DistributedLockModel{
			LockKey:  key,
			Owner:    owner,
			LockType: lockType,
			Metadata: models.JSONBMap(metadata),
		}

		_, err = tx.NewInsert().
			Model(lock).
			Value("acquired_at", "now()").
			Value("expires_at", "now() + ? * interval '1 millisecond'", ttl.Milliseconds()).
			On("CONFLICT (lock_key) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}

		count, err := tx.NewSelect().
			Model((*models.DistributedLockModel)(nil)).
			Where("lock_key = ? AND owner = ? AND expires_at > now()", key, owner).
			Count(ctx)
		if err != nil {
			return err
		}

		acquired = count > 0
		return nil
	})

	return acquired, err
}

// Renew extends the lease for key if owner still holds it and the lease has
// not yet expired by the database clock. A previous owner waking up after
// expiry fails here and abandons cleanly.
func (r *LockRepository) Renew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.DistributedLockModel)(nil)).
		Set("expires_at = now() + ? * interval '1 millisecond'", ttl.Milliseconds()).
		Set("renewed_at = now()").
		Where("lock_key = ? AND owner = ? AND expires_at > now()", key, owner).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	return rows > 0, err
}

// Release drops the lease for key if owner still holds it.
func (r *LockRepository) Release(ctx context.Context, key, owner string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.DistributedLockModel)(nil)).
		Where("lock_key = ? AND owner = ?", key, owner).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	return rows > 0, err
}

// ForceRelease drops the lease for key unconditionally.
func (r *LockRepository) ForceRelease(ctx context.Context, key string) error {
	_, err := r.db.NewDelete().
		Model((*models.DistributedLockModel)(nil)).
		Where("lock_key = ?", key).
		Exec(ctx)

	return err
}

// Find retrieves the current lease for key, if any.
func (r *LockRepository) Find(ctx context.Context, key string) (*models.DistributedLockModel, error) {
	lock := &models.DistributedLockModel{}

	err := r.db.NewSelect().
		Model(lock).
		Where("lock_key = ?", key).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return lock, err
}

// FindAll retrieves every lease on record, live and expired, newest first.
func (r *LockRepository) FindAll(ctx context.Context) ([]*models.DistributedLockModel, error) {
	var locks []*models.DistributedLockModel

	err := r.db.NewSelect().
		Model(&locks).
		Order("acquired_at DESC").
		Scan(ctx)

	return locks, err
}

// RegisterEngine upserts this process's heartbeat row.
func (r *LockRepository) RegisterEngine(ctx context.Context, instance *models.EngineInstanceModel) error {
	_, err := r.db.NewInsert().
		Model(instance).
		On("CONFLICT (id) DO UPDATE").
		Set("hostname = EXCLUDED.hostname").
		Set("last_heartbeat = EXCLUDED.last_heartbeat").
		Exec(ctx)

	return err
}

// Heartbeat updates an engine instance's last-seen timestamp.
func (r *LockRepository) Heartbeat(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.EngineInstanceModel)(nil)).
		Set("last_heartbeat = ?", at).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// FindStaleEngines retrieves engine instances whose heartbeat predates before.
func (r *LockRepository) FindStaleEngines(ctx context.Context, before time.Time) ([]*models.EngineInstanceModel, error) {
	var engines []*models.EngineInstanceModel

	err := r.db.NewSelect().
		Model(&engines).
		Where("last_heartbeat < ?", before).
		Scan(ctx)

	return engines, err
}

// RemoveEngine deletes an engine instance's heartbeat row.
func (r *LockRepository) RemoveEngine(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().
		Model((*models.EngineInstanceModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// FindAllEngines retrieves every registered engine instance, most recently
// heartbeated first.
func (r *LockRepository) FindAllEngines(ctx context.Context) ([]*models.EngineInstanceModel, error) {
	var engines []*models.EngineInstanceModel

	err := r.db.NewSelect().
		Model(&engines).
		Order("last_heartbeat DESC").
		Scan(ctx)

	return engines, err
}

// CleanupExpiredLocks deletes all leases past their expiry, judged by the
// database clock.
func (r *LockRepository) CleanupExpiredLocks(ctx context.Context) (int, error) {
	res, err := r.db.NewDelete().
		Model((*models.DistributedLockModel)(nil)).
		Where("expires_at <= now()").
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := res.RowsAffected()
	return int(rows), err
}

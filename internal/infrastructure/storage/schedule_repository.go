package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stratix/workflow-engine/internal/domain/repository"
	"github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
	"github.com/uptrace/bun"
)

// ScheduleRepository implements repository.ScheduleRepository
type ScheduleRepository struct {
	db bun.IDB
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(db bun.IDB) repository.ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create creates a new schedule
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.ScheduleModel) error {
	_, err := r.db.NewInsert().Model(schedule).Exec(ctx)
	return err
}

// Update updates an existing schedule
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.ScheduleModel) error {
	schedule.UpdatedAt = time.Now()

	_, err := r.db.NewUpdate().
		Model(schedule).
		WherePK().
		Exec(ctx)

	return err
}

// Delete deletes a schedule
func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*models.ScheduleModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// FindByID retrieves a schedule by ID
func (r *ScheduleRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduleModel, error) {
	schedule := &models.ScheduleModel{}

	err := r.db.NewSelect().
		Model(schedule).
		Where("id = ?", id).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return schedule, err
}

// FindByWorkflowID retrieves all schedules for a workflow
func (r *ScheduleRepository) FindByWorkflowID(ctx context.Context, workflowID uuid.UUID) ([]*models.ScheduleModel, error) {
	var schedules []*models.ScheduleModel

	err := r.db.NewSelect().
		Model(&schedules).
		Where("workflow_id = ?", workflowID).
		Order("created_at DESC").
		Scan(ctx)

	return schedules, err
}

// FindEnabled retrieves all enabled schedules
func (r *ScheduleRepository) FindEnabled(ctx context.Context) ([]*models.ScheduleModel, error) {
	var schedules []*models.ScheduleModel

	err := r.db.NewSelect().
		Model(&schedules).
		Where("enabled = ?", true).
		Order("created_at ASC").
		Scan(ctx)

	return schedules, err
}

// FindAll retrieves all schedules with pagination
func (r *ScheduleRepository) FindAll(ctx context.Context, limit, offset int) ([]*models.ScheduleModel, error) {
	var schedules []*models.ScheduleModel

	err := r.db.NewSelect().
		Model(&schedules).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)

	return schedules, err
}

// Count returns the total count of schedules
func (r *ScheduleRepository) Count(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.ScheduleModel)(nil)).
		Count(ctx)

	return count, err
}

// Enable enables a schedule
func (r *ScheduleRepository) Enable(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*models.ScheduleModel)(nil)).
		Set("enabled = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// Disable disables a schedule
func (r *ScheduleRepository) Disable(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*models.ScheduleModel)(nil)).
		Set("enabled = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// MarkFired records the fire time of a schedule's most recent dispatch.
func (r *ScheduleRepository) MarkFired(ctx context.Context, id uuid.UUID, firedAt time.Time, nextFireAt *time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.ScheduleModel)(nil)).
		Set("last_fired_at = ?", firedAt).
		Set("next_fire_at = ?", nextFireAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// CountRunningInstances returns the number of non-terminal instances spawned
// by this schedule.
func (r *ScheduleRepository) CountRunningInstances(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.ExecutionModel)(nil)).
		Where("schedule_id = ?", scheduleID).
		Where("status IN (?)", bun.In([]string{"pending", "scheduled", "running", "paused", "interrupted"})).
		Count(ctx)

	return count, err
}

// CreateExecutionRecord records the outcome of a single cron fire.
func (r *ScheduleRepository) CreateExecutionRecord(ctx context.Context, record *models.ScheduleExecutionModel) error {
	_, err := r.db.NewInsert().Model(record).Exec(ctx)
	return err
}

// FindExecutionRecords retrieves dispatch history for a schedule with pagination.
func (r *ScheduleRepository) FindExecutionRecords(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]*models.ScheduleExecutionModel, error) {
	var records []*models.ScheduleExecutionModel

	err := r.db.NewSelect().
		Model(&records).
		Where("schedule_id = ?", scheduleID).
		Order("fired_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)

	return records, err
}

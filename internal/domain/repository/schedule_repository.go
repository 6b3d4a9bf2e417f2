package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
)

// ScheduleRepository defines the interface for schedule persistence
type ScheduleRepository interface {
	// Create creates a new schedule
	Create(ctx context.Context, schedule *models.ScheduleModel) error

	// Update updates an existing schedule
	Update(ctx context.Context, schedule *models.ScheduleModel) error

	// Delete deletes a schedule
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByID retrieves a schedule by ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.ScheduleModel, error)

	// FindByWorkflowID retrieves all schedules for a workflow
	FindByWorkflowID(ctx context.Context, workflowID uuid.UUID) ([]*models.ScheduleModel, error)

	// FindEnabled retrieves all enabled schedules, for the scheduler to load
	// into its cron runner on startup and after any schedule mutation.
	FindEnabled(ctx context.Context) ([]*models.ScheduleModel, error)

	// FindAll retrieves all schedules with pagination
	FindAll(ctx context.Context, limit, offset int) ([]*models.ScheduleModel, error)

	// Count returns the total count of schedules
	Count(ctx context.Context) (int, error)

	// Enable enables a schedule
	Enable(ctx context.Context, id uuid.UUID) error

	// Disable disables a schedule
	Disable(ctx context.Context, id uuid.UUID) error

	// MarkFired records the fire time of a schedule's most recent dispatch.
	MarkFired(ctx context.Context, id uuid.UUID, firedAt time.Time, nextFireAt *time.Time) error

	// CountRunningInstances returns the number of non-terminal instances
	// spawned by this schedule, used to enforce MaxInstances.
	CountRunningInstances(ctx context.Context, scheduleID uuid.UUID) (int, error)

	// CreateExecutionRecord records the outcome of a single cron fire.
	CreateExecutionRecord(ctx context.Context, record *models.ScheduleExecutionModel) error

	// FindExecutionRecords retrieves dispatch history for a schedule with pagination.
	FindExecutionRecords(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]*models.ScheduleExecutionModel, error)
}

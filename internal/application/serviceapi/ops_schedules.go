package serviceapi

import (
	"context"
	"time"

	"github.com/google/uuid"

	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
	"github.com/stratix/workflow-engine/pkg/models"
)

// ScheduleInput carries the caller-supplied fields of a Schedule, shared by
// create and update.
type ScheduleInput struct {
	WorkflowID     uuid.UUID
	CronExpression string
	Timezone       string
	Enabled        bool
	MaxInstances   int
	MutexKey       string
	Input          map[string]any
}

// CreateScheduleParams contains parameters for creating a schedule.
type CreateScheduleParams struct {
	ScheduleInput
}

// CreateSchedule persists a new Schedule and, if this replica is leading the
// cron runner, registers it immediately instead of waiting for the next
// leader re-election to pick it up from storage.
func (o *Operations) CreateSchedule(ctx context.Context, params CreateScheduleParams) (*storagemodels.ScheduleModel, error) {
	if params.CronExpression == "" {
		return nil, NewValidationError("CRON_EXPRESSION_REQUIRED", "Cron expression is required")
	}
	if params.WorkflowID == uuid.Nil {
		return nil, NewValidationError("WORKFLOW_ID_REQUIRED", "Workflow id is required")
	}

	sch := &storagemodels.ScheduleModel{
		ID:             uuid.New(),
		WorkflowID:     params.WorkflowID,
		CronExpression: params.CronExpression,
		Timezone:       params.Timezone,
		Enabled:        params.Enabled,
		MaxInstances:   params.MaxInstances,
		MutexKey:       params.MutexKey,
		Input:          storagemodels.JSONBMap(params.Input),
	}

	if err := o.ScheduleRepo.Create(ctx, sch); err != nil {
		o.Logger.Error("Failed to create schedule", "error", err, "workflow_id", params.WorkflowID)
		return nil, err
	}

	if o.Scheduler != nil {
		if err := o.Scheduler.AddSchedule(sch); err != nil {
			o.Logger.Error("Failed to register new schedule with cron runner", "error", err, "schedule_id", sch.ID)
		}
	}

	return sch, nil
}

// GetScheduleParams contains parameters for getting a schedule.
type GetScheduleParams struct {
	ScheduleID uuid.UUID
}

func (o *Operations) GetSchedule(ctx context.Context, params GetScheduleParams) (*storagemodels.ScheduleModel, error) {
	sch, err := o.ScheduleRepo.FindByID(ctx, params.ScheduleID)
	if err != nil {
		o.Logger.Error("Failed to find schedule", "error", err, "schedule_id", params.ScheduleID)
		return nil, err
	}
	return sch, nil
}

// ListSchedulesParams contains parameters for listing schedules.
type ListSchedulesParams struct {
	Limit      int
	Offset     int
	WorkflowID *uuid.UUID
}

// ListSchedulesResult contains the result of listing schedules.
type ListSchedulesResult struct {
	Schedules []*storagemodels.ScheduleModel
	Total     int
}

func (o *Operations) ListSchedules(ctx context.Context, params ListSchedulesParams) (*ListSchedulesResult, error) {
	var schedules []*storagemodels.ScheduleModel
	var err error

	if params.WorkflowID != nil {
		schedules, err = o.ScheduleRepo.FindByWorkflowID(ctx, *params.WorkflowID)
	} else {
		schedules, err = o.ScheduleRepo.FindAll(ctx, params.Limit, params.Offset)
	}
	if err != nil {
		o.Logger.Error("Failed to list schedules", "error", err)
		return nil, err
	}

	total, err := o.ScheduleRepo.Count(ctx)
	if err != nil {
		total = len(schedules)
	}

	return &ListSchedulesResult{Schedules: schedules, Total: total}, nil
}

// UpdateScheduleParams contains parameters for updating a schedule.
type UpdateScheduleParams struct {
	ScheduleID uuid.UUID
	ScheduleInput
}

// UpdateSchedule mutates a Schedule row in place (unlike WorkflowDefinition,
// schedules are not versioned) and re-registers it with the live cron runner
// so a cron-expression or timezone change takes effect without waiting on
// the next leader re-election.
func (o *Operations) UpdateSchedule(ctx context.Context, params UpdateScheduleParams) (*storagemodels.ScheduleModel, error) {
	sch, err := o.ScheduleRepo.FindByID(ctx, params.ScheduleID)
	if err != nil {
		o.Logger.Error("Failed to find schedule for update", "error", err, "schedule_id", params.ScheduleID)
		return nil, err
	}

	if params.CronExpression != "" {
		sch.CronExpression = params.CronExpression
	}
	if params.Timezone != "" {
		sch.Timezone = params.Timezone
	}
	if params.MaxInstances > 0 {
		sch.MaxInstances = params.MaxInstances
	}
	if params.WorkflowID != uuid.Nil {
		sch.WorkflowID = params.WorkflowID
	}
	sch.MutexKey = params.MutexKey
	if params.Input != nil {
		sch.Input = storagemodels.JSONBMap(params.Input)
	}
	sch.Enabled = params.Enabled

	if err := o.ScheduleRepo.Update(ctx, sch); err != nil {
		o.Logger.Error("Failed to update schedule", "error", err, "schedule_id", sch.ID)
		return nil, err
	}

	if o.Scheduler != nil {
		o.Scheduler.RemoveSchedule(sch.ID)
		if sch.Enabled {
			if err := o.Scheduler.AddSchedule(sch); err != nil {
				o.Logger.Error("Failed to re-register updated schedule with cron runner", "error", err, "schedule_id", sch.ID)
			}
		}
	}

	return sch, nil
}

// DeleteScheduleParams contains parameters for deleting a schedule.
type DeleteScheduleParams struct {
	ScheduleID uuid.UUID
}

func (o *Operations) DeleteSchedule(ctx context.Context, params DeleteScheduleParams) error {
	if err := o.ScheduleRepo.Delete(ctx, params.ScheduleID); err != nil {
		o.Logger.Error("Failed to delete schedule", "error", err, "schedule_id", params.ScheduleID)
		return err
	}

	if o.Scheduler != nil {
		o.Scheduler.RemoveSchedule(params.ScheduleID)
	}

	return nil
}

// ToggleScheduleParams contains parameters for enabling/disabling a schedule.
type ToggleScheduleParams struct {
	ScheduleID uuid.UUID
	Enabled    bool
}

// ToggleSchedule flips a schedule's enabled flag and keeps the live cron
// runner in sync: disabling removes its entry immediately rather than
// waiting for it to naturally stop firing (it wouldn't - FindEnabled is only
// consulted on startup/re-election), enabling re-adds it.
func (o *Operations) ToggleSchedule(ctx context.Context, params ToggleScheduleParams) error {
	var err error
	if params.Enabled {
		err = o.ScheduleRepo.Enable(ctx, params.ScheduleID)
	} else {
		err = o.ScheduleRepo.Disable(ctx, params.ScheduleID)
	}
	if err != nil {
		o.Logger.Error("Failed to toggle schedule", "error", err, "schedule_id", params.ScheduleID, "enabled", params.Enabled)
		return err
	}

	if o.Scheduler == nil {
		return nil
	}

	if !params.Enabled {
		o.Scheduler.RemoveSchedule(params.ScheduleID)
		return nil
	}

	sch, err := o.ScheduleRepo.FindByID(ctx, params.ScheduleID)
	if err != nil {
		o.Logger.Error("Failed to reload schedule after enabling", "error", err, "schedule_id", params.ScheduleID)
		return nil
	}
	if err := o.Scheduler.AddSchedule(sch); err != nil {
		o.Logger.Error("Failed to register enabled schedule with cron runner", "error", err, "schedule_id", params.ScheduleID)
	}
	return nil
}

// TriggerScheduleParams contains parameters for manually firing a schedule.
type TriggerScheduleParams struct {
	ScheduleID uuid.UUID
}

// TriggerScheduleResult contains the execution dispatched by a manual trigger.
type TriggerScheduleResult struct {
	Execution *models.Execution
}

// TriggerSchedule fires a schedule on demand, outside the cron runner. Unlike
// the scheduler's own cron-driven fire path, this bypasses the MaxInstances
// concurrency check: an operator invoking this explicitly wants the run
// dispatched regardless of how many instances are already in flight. The
// schedule's mutex, if any, is still honored so a manual trigger can't race a
// cron-driven fire of the same schedule.
func (o *Operations) TriggerSchedule(ctx context.Context, params TriggerScheduleParams) (*TriggerScheduleResult, error) {
	sch, err := o.ScheduleRepo.FindByID(ctx, params.ScheduleID)
	if err != nil {
		o.Logger.Error("Failed to find schedule to trigger", "error", err, "schedule_id", params.ScheduleID)
		return nil, err
	}

	now := time.Now()
	record := &storagemodels.ScheduleExecutionModel{
		ScheduleID: sch.ID,
		FiredAt:    now,
	}

	mutexKey := sch.MutexKeyFor()
	if mutexKey != "" {
		acquired, err := o.LockRepo.Acquire(ctx, mutexKey, o.ExecutionMgr.EngineID, storagemodels.LockTypeMutex, 10*time.Minute, nil)
		if err != nil {
			o.Logger.Error("Failed to acquire schedule mutex for manual trigger", "error", err, "schedule_id", sch.ID)
			return nil, err
		}
		if !acquired {
			record.Status = storagemodels.ScheduleExecutionStatusFailed
			record.Error = storagemodels.ErrMutexConflict
			o.ScheduleRepo.CreateExecutionRecord(ctx, record)
			return nil, NewConflictError("MUTEX_CONFLICT", "Schedule mutex is already held by another execution")
		}
	}

	execution, err := o.ExecutionMgr.ExecuteAsync(ctx, sch.WorkflowID.String(), map[string]interface{}(sch.Input), nil)
	if err != nil {
		record.Status = storagemodels.ScheduleExecutionStatusFailed
		record.Error = err.Error()
		o.ScheduleRepo.CreateExecutionRecord(ctx, record)
		if mutexKey != "" {
			o.LockRepo.Release(ctx, mutexKey, o.ExecutionMgr.EngineID)
		}
		o.Logger.Error("Failed to dispatch manually triggered schedule", "error", err, "schedule_id", sch.ID)
		return nil, err
	}

	execUUID, parseErr := uuid.Parse(execution.ID)
	if parseErr == nil {
		record.ExecutionID = &execUUID
	}
	record.Status = storagemodels.ScheduleExecutionStatusDispatched
	if err := o.ScheduleRepo.CreateExecutionRecord(ctx, record); err != nil {
		o.Logger.Error("Failed to record manual schedule trigger", "error", err, "schedule_id", sch.ID)
	}

	if mutexKey != "" {
		go o.releaseMutexWhenDone(mutexKey, execution.ID)
	}

	return &TriggerScheduleResult{Execution: execution}, nil
}

// releaseMutexWhenDone polls the dispatched instance until it reaches a
// terminal state, then releases the schedule's mutex. Mirrors the
// scheduler's own cron-driven release path so a manually triggered run holds
// the mutex for the same lifetime as a cron-fired one.
func (o *Operations) releaseMutexWhenDone(mutexKey, executionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	execUUID, err := uuid.Parse(executionID)
	if err != nil {
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.LockRepo.Release(context.Background(), mutexKey, o.ExecutionMgr.EngineID)
			return
		case <-ticker.C:
			execModel, err := o.ExecutionRepo.FindByID(ctx, execUUID)
			if err != nil {
				continue
			}
			if execModel.Status == "completed" || execModel.Status == "failed" || execModel.Status == "cancelled" {
				o.LockRepo.Release(ctx, mutexKey, o.ExecutionMgr.EngineID)
				return
			}
		}
	}
}

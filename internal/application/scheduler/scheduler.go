// Package scheduler implements the cron-driven Scheduler: a single
// elected replica evaluates enabled schedules, enforces per-schedule
// concurrency and mutex-serialized dispatch, and records the outcome of
// every fire as a ScheduleExecution.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/stratix/workflow-engine/internal/application/engine"
	"github.com/stratix/workflow-engine/internal/domain/repository"
	"github.com/stratix/workflow-engine/internal/infrastructure/cache"
	"github.com/stratix/workflow-engine/internal/infrastructure/logger"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
)

// Config holds configuration for the Scheduler.
type Config struct {
	ScheduleRepo  repository.ScheduleRepository
	ExecutionRepo repository.ExecutionRepository
	LockRepo      repository.LockRepository
	ExecutionMgr  *engine.ExecutionManager
	Cache         *cache.RedisCache // optional; stored but not read by the Scheduler
	Logger        *logger.Logger

	// EngineID identifies this replica for leader-lock ownership. Defaults
	// to a fresh UUID if empty.
	EngineID string

	// LeaderLockTTL is the lease duration of the scheduler:leader lock.
	LeaderLockTTL time.Duration

	// LeaderRenewInterval controls how often the leader attempts to renew
	// its lease and how often a non-leader retries acquisition.
	LeaderRenewInterval time.Duration

	// MutexAcquireTTL bounds how long a per-schedule mutex is held for a
	// single dispatch before it is considered abandoned.
	MutexAcquireTTL time.Duration
}

// Scheduler evaluates enabled schedules and dispatches due workflow runs.
type Scheduler struct {
	cfg Config

	cronMu  sync.RWMutex
	cron    *cron.Cron
	entries map[uuid.UUID]cron.EntryID
	running bool

	stopCh chan struct{}
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.EngineID == "" {
		cfg.EngineID = uuid.New().String()
	}
	if cfg.LeaderLockTTL <= 0 {
		cfg.LeaderLockTTL = 30 * time.Second
	}
	if cfg.LeaderRenewInterval <= 0 {
		cfg.LeaderRenewInterval = cfg.LeaderLockTTL / 3
	}
	if cfg.MutexAcquireTTL <= 0 {
		cfg.MutexAcquireTTL = 10 * time.Minute
	}

	return &Scheduler{
		cfg:     cfg,
		entries: make(map[uuid.UUID]cron.EntryID),
		stopCh:  make(chan struct{}),
	}
}

// Start runs the leader-election loop in the background until ctx is
// cancelled or Stop is called. Only the elected leader replica actually
// dispatches schedules; the rest poll for leadership.
func (s *Scheduler) Start(ctx context.Context) {
	go s.electionLoop(ctx)
}

// Stop relinquishes leadership (if held) and stops the cron runner.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.stopCron()
	s.cfg.LockRepo.Release(context.Background(), storagemodels.SchedulerLeaderLockKey, s.cfg.EngineID)
}

func (s *Scheduler) electionLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LeaderRenewInterval)
	defer ticker.Stop()

	s.tryBecomeLeader(ctx)

	for {
		select {
		case <-ctx.Done():
			s.stopCron()
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tryBecomeLeader(ctx)
		}
	}
}

func (s *Scheduler) tryBecomeLeader(ctx context.Context) {
	var acquired bool
	var err error

	if s.isLeading() {
		acquired, err = s.cfg.LockRepo.Renew(ctx, storagemodels.SchedulerLeaderLockKey, s.cfg.EngineID, s.cfg.LeaderLockTTL)
	} else {
		acquired, err = s.cfg.LockRepo.Acquire(ctx, storagemodels.SchedulerLeaderLockKey, s.cfg.EngineID, storagemodels.LockTypeMutex, s.cfg.LeaderLockTTL, nil)
	}

	if err != nil {
		s.log().Error("scheduler leader election failed", "error", err)
		return
	}

	if !acquired {
		s.stopCron()
		return
	}

	if !s.isLeading() {
		s.log().Info("scheduler became leader", "engine_id", s.cfg.EngineID)
		if err := s.startCron(ctx); err != nil {
			s.log().Error("failed to start scheduler cron", "error", err)
		}
	}
}

func (s *Scheduler) isLeading() bool {
	s.cronMu.RLock()
	defer s.cronMu.RUnlock()
	return s.running
}

func (s *Scheduler) startCron(ctx context.Context) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	s.entries = make(map[uuid.UUID]cron.EntryID)
	s.running = true

	schedules, err := s.cfg.ScheduleRepo.FindEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load enabled schedules: %w", err)
	}

	for _, sch := range schedules {
		if err := s.addScheduleLocked(sch); err != nil {
			s.log().Error("failed to register schedule", "error", err, "schedule_id", sch.ID)
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) stopCron() {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if !s.running {
		return
	}

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}

	s.running = false
	s.cron = nil
	s.entries = make(map[uuid.UUID]cron.EntryID)
}

// AddSchedule registers (or re-registers) a schedule with the live cron
// runner, a no-op if this replica is not currently leading.
func (s *Scheduler) AddSchedule(sch *storagemodels.ScheduleModel) error {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if !s.running {
		return nil
	}
	return s.addScheduleLocked(sch)
}

// RemoveSchedule unregisters a schedule from the live cron runner.
func (s *Scheduler) RemoveSchedule(id uuid.UUID) {
	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	if !s.running {
		return
	}
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

func (s *Scheduler) addScheduleLocked(sch *storagemodels.ScheduleModel) error {
	if !sch.Enabled {
		return nil
	}

	if entryID, exists := s.entries[sch.ID]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, sch.ID)
	}

	location := time.UTC
	if sch.Timezone != "" {
		loc, err := time.LoadLocation(sch.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %s: %w", sch.Timezone, err)
		}
		location = loc
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(sch.CronExpression)
	if err != nil {
		return fmt.Errorf("invalid cron expression %s: %w", sch.CronExpression, err)
	}

	tzSchedule := &inLocation{location: location, schedule: schedule}
	scheduleID := sch.ID

	entryID := s.cron.Schedule(tzSchedule, cron.FuncJob(func() {
		s.fire(context.Background(), scheduleID)
	}))
	s.entries[sch.ID] = entryID

	return nil
}

// inLocation wraps a parsed cron.Schedule so Next() evaluates against a
// specific timezone regardless of the runner's own location.
type inLocation struct {
	location *time.Location
	schedule cron.Schedule
}

func (l *inLocation) Next(t time.Time) time.Time {
	return l.schedule.Next(t.In(l.location))
}

// fire evaluates concurrency and mutex constraints and dispatches a single
// schedule firing, recording the outcome as a ScheduleExecution.
func (s *Scheduler) fire(ctx context.Context, scheduleID uuid.UUID) {
	sch, err := s.cfg.ScheduleRepo.FindByID(ctx, scheduleID)
	if err != nil || sch == nil || !sch.Enabled {
		return
	}

	now := time.Now()
	record := &storagemodels.ScheduleExecutionModel{
		ScheduleID: sch.ID,
		FiredAt:    now,
	}

	running, err := s.cfg.ScheduleRepo.CountRunningInstances(ctx, sch.ID)
	if err != nil {
		s.log().Error("failed to count running instances", "error", err, "schedule_id", sch.ID)
		return
	}
	if running >= sch.MaxInstances {
		record.Status = storagemodels.ScheduleExecutionStatusSkipped
		record.Error = "max_instances_reached"
		s.recordAndAdvance(ctx, sch, record)
		return
	}

	mutexKey := sch.MutexKeyFor()
	if mutexKey != "" {
		acquired, err := s.cfg.LockRepo.Acquire(ctx, mutexKey, s.cfg.EngineID, storagemodels.LockTypeMutex, s.cfg.MutexAcquireTTL, nil)
		if err != nil {
			s.log().Error("failed to acquire schedule mutex", "error", err, "schedule_id", sch.ID)
			return
		}
		if !acquired {
			record.Status = storagemodels.ScheduleExecutionStatusFailed
			record.Error = storagemodels.ErrMutexConflict
			s.recordAndAdvance(ctx, sch, record)
			return
		}
	}

	execution, err := s.cfg.ExecutionMgr.ExecuteAsync(ctx, sch.WorkflowID.String(), map[string]interface{}(sch.Input), nil)
	if err != nil {
		record.Status = storagemodels.ScheduleExecutionStatusFailed
		record.Error = err.Error()
		s.recordAndAdvance(ctx, sch, record)
		if mutexKey != "" {
			s.cfg.LockRepo.Release(ctx, mutexKey, s.cfg.EngineID)
		}
		return
	}

	execUUID, parseErr := uuid.Parse(execution.ID)
	if parseErr == nil {
		record.ExecutionID = &execUUID
	}
	record.Status = storagemodels.ScheduleExecutionStatusDispatched
	s.recordAndAdvance(ctx, sch, record)

	if mutexKey != "" {
		go s.releaseMutexWhenDone(mutexKey, execution.ID)
	}
}

func (s *Scheduler) recordAndAdvance(ctx context.Context, sch *storagemodels.ScheduleModel, record *storagemodels.ScheduleExecutionModel) {
	if err := s.cfg.ScheduleRepo.CreateExecutionRecord(ctx, record); err != nil {
		s.log().Error("failed to record schedule execution", "error", err, "schedule_id", sch.ID)
	}

	var next *time.Time
	s.cronMu.RLock()
	if s.running {
		if entryID, ok := s.entries[sch.ID]; ok {
			n := s.cron.Entry(entryID).Next
			next = &n
		}
	}
	s.cronMu.RUnlock()

	if err := s.cfg.ScheduleRepo.MarkFired(ctx, sch.ID, record.FiredAt, next); err != nil {
		s.log().Error("failed to mark schedule fired", "error", err, "schedule_id", sch.ID)
	}
}

// releaseMutexWhenDone polls the dispatched instance until it reaches a
// terminal state, then releases the schedule's mutex so the next fire may
// proceed. Bounded by MutexAcquireTTL so a stuck instance eventually frees
// the mutex via lease expiry even if this goroutine is lost to a restart.
func (s *Scheduler) releaseMutexWhenDone(mutexKey, executionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MutexAcquireTTL)
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
			s.cfg.LockRepo.Release(context.Background(), mutexKey, s.cfg.EngineID)
			return
		case <-ticker.C:
			execModel, err := s.cfg.ExecutionRepo.FindByID(ctx, execUUID)
			if err != nil {
				continue
			}
			if execModel.Status == "completed" || execModel.Status == "failed" || execModel.Status == "cancelled" {
				s.cfg.LockRepo.Release(ctx, mutexKey, s.cfg.EngineID)
				return
			}
		}
	}
}

func (s *Scheduler) log() *logger.Logger {
	if s.cfg.Logger != nil {
		return s.cfg.Logger
	}
	return logger.Default()
}

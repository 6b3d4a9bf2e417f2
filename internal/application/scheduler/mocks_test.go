package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/stratix/workflow-engine/internal/domain/repository"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
)

// --- Mock: ScheduleRepository ---

type mockScheduleRepo struct {
	mock.Mock
}

func (m *mockScheduleRepo) Create(ctx context.Context, schedule *storagemodels.ScheduleModel) error {
	return m.Called(ctx, schedule).Error(0)
}

func (m *mockScheduleRepo) Update(ctx context.Context, schedule *storagemodels.ScheduleModel) error {
	return m.Called(ctx, schedule).Error(0)
}

func (m *mockScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id uuid.UUID) (*storagemodels.ScheduleModel, error) {
	args := m.Called(ctx, id)
	sm, _ := args.Get(0).(*storagemodels.ScheduleModel)
	return sm, args.Error(1)
}

func (m *mockScheduleRepo) FindByWorkflowID(ctx context.Context, workflowID uuid.UUID) ([]*storagemodels.ScheduleModel, error) {
	args := m.Called(ctx, workflowID)
	sms, _ := args.Get(0).([]*storagemodels.ScheduleModel)
	return sms, args.Error(1)
}

func (m *mockScheduleRepo) FindEnabled(ctx context.Context) ([]*storagemodels.ScheduleModel, error) {
	args := m.Called(ctx)
	sms, _ := args.Get(0).([]*storagemodels.ScheduleModel)
	return sms, args.Error(1)
}

func (m *mockScheduleRepo) FindAll(ctx context.Context, limit, offset int) ([]*storagemodels.ScheduleModel, error) {
	args := m.Called(ctx, limit, offset)
	sms, _ := args.Get(0).([]*storagemodels.ScheduleModel)
	return sms, args.Error(1)
}

func (m *mockScheduleRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockScheduleRepo) Enable(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockScheduleRepo) Disable(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockScheduleRepo) MarkFired(ctx context.Context, id uuid.UUID, firedAt time.Time, nextFireAt *time.Time) error {
	return m.Called(ctx, id, firedAt, nextFireAt).Error(0)
}

func (m *mockScheduleRepo) CountRunningInstances(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	args := m.Called(ctx, scheduleID)
	return args.Int(0), args.Error(1)
}

func (m *mockScheduleRepo) CreateExecutionRecord(ctx context.Context, record *storagemodels.ScheduleExecutionModel) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockScheduleRepo) FindExecutionRecords(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]*storagemodels.ScheduleExecutionModel, error) {
	args := m.Called(ctx, scheduleID, limit, offset)
	recs, _ := args.Get(0).([]*storagemodels.ScheduleExecutionModel)
	return recs, args.Error(1)
}

// --- Mock: LockRepository ---

type mockLockRepo struct {
	mock.Mock
}

func (m *mockLockRepo) Acquire(ctx context.Context, key, owner, lockType string, ttl time.Duration, metadata map[string]any) (bool, error) {
	args := m.Called(ctx, key, owner, lockType, ttl, metadata)
	return args.Bool(0), args.Error(1)
}

func (m *mockLockRepo) Renew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLockRepo) Release(ctx context.Context, key, owner string) (bool, error) {
	args := m.Called(ctx, key, owner)
	return args.Bool(0), args.Error(1)
}

func (m *mockLockRepo) ForceRelease(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockLockRepo) Find(ctx context.Context, key string) (*storagemodels.DistributedLockModel, error) {
	args := m.Called(ctx, key)
	lm, _ := args.Get(0).(*storagemodels.DistributedLockModel)
	return lm, args.Error(1)
}

func (m *mockLockRepo) FindAll(ctx context.Context) ([]*storagemodels.DistributedLockModel, error) {
	args := m.Called(ctx)
	lms, _ := args.Get(0).([]*storagemodels.DistributedLockModel)
	return lms, args.Error(1)
}

func (m *mockLockRepo) FindAllEngines(ctx context.Context) ([]*storagemodels.EngineInstanceModel, error) {
	args := m.Called(ctx)
	ems, _ := args.Get(0).([]*storagemodels.EngineInstanceModel)
	return ems, args.Error(1)
}

func (m *mockLockRepo) RegisterEngine(ctx context.Context, instance *storagemodels.EngineInstanceModel) error {
	return m.Called(ctx, instance).Error(0)
}

func (m *mockLockRepo) Heartbeat(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockLockRepo) FindStaleEngines(ctx context.Context, before time.Time) ([]*storagemodels.EngineInstanceModel, error) {
	args := m.Called(ctx, before)
	ems, _ := args.Get(0).([]*storagemodels.EngineInstanceModel)
	return ems, args.Error(1)
}

func (m *mockLockRepo) RemoveEngine(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockLockRepo) CleanupExpiredLocks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// Compile-time interface checks.
var (
	_ repository.ScheduleRepository = (*mockScheduleRepo)(nil)
	_ repository.LockRepository     = (*mockLockRepo)(nil)
)

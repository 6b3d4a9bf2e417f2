package recovery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/stratix/workflow-engine/internal/domain/repository"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
)

// --- Mock: ExecutionRepository ---

type mockExecutionRepo struct {
	mock.Mock
}

func (m *mockExecutionRepo) Create(ctx context.Context, execution *storagemodels.ExecutionModel) error {
	return m.Called(ctx, execution).Error(0)
}

func (m *mockExecutionRepo) Update(ctx context.Context, execution *storagemodels.ExecutionModel) error {
	return m.Called(ctx, execution).Error(0)
}

func (m *mockExecutionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockExecutionRepo) FindByID(ctx context.Context, id uuid.UUID) (*storagemodels.ExecutionModel, error) {
	args := m.Called(ctx, id)
	em, _ := args.Get(0).(*storagemodels.ExecutionModel)
	return em, args.Error(1)
}

func (m *mockExecutionRepo) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*storagemodels.ExecutionModel, error) {
	args := m.Called(ctx, id)
	em, _ := args.Get(0).(*storagemodels.ExecutionModel)
	return em, args.Error(1)
}

func (m *mockExecutionRepo) FindByWorkflowID(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]*storagemodels.ExecutionModel, error) {
	args := m.Called(ctx, workflowID, limit, offset)
	ems, _ := args.Get(0).([]*storagemodels.ExecutionModel)
	return ems, args.Error(1)
}

func (m *mockExecutionRepo) FindByStatus(ctx context.Context, status string, limit, offset int) ([]*storagemodels.ExecutionModel, error) {
	args := m.Called(ctx, status, limit, offset)
	ems, _ := args.Get(0).([]*storagemodels.ExecutionModel)
	return ems, args.Error(1)
}

func (m *mockExecutionRepo) FindAll(ctx context.Context, limit, offset int) ([]*storagemodels.ExecutionModel, error) {
	args := m.Called(ctx, limit, offset)
	ems, _ := args.Get(0).([]*storagemodels.ExecutionModel)
	return ems, args.Error(1)
}

func (m *mockExecutionRepo) FindRunning(ctx context.Context) ([]*storagemodels.ExecutionModel, error) {
	args := m.Called(ctx)
	ems, _ := args.Get(0).([]*storagemodels.ExecutionModel)
	return ems, args.Error(1)
}

func (m *mockExecutionRepo) FindStaleRunning(ctx context.Context, heartbeatBefore time.Time) ([]*storagemodels.ExecutionModel, error) {
	args := m.Called(ctx, heartbeatBefore)
	ems, _ := args.Get(0).([]*storagemodels.ExecutionModel)
	return ems, args.Error(1)
}

func (m *mockExecutionRepo) UpdateHeartbeat(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockExecutionRepo) MarkInterrupted(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockExecutionRepo) SaveCheckpoint(ctx context.Context, id uuid.UUID, currentNodeID *string, checkpoint storagemodels.JSONBMap) error {
	return m.Called(ctx, id, currentNodeID, checkpoint).Error(0)
}

func (m *mockExecutionRepo) IncrementRetryCount(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockExecutionRepo) UpdateStatusBulk(ctx context.Context, ids []uuid.UUID, status string) (int, error) {
	args := m.Called(ctx, ids, status)
	return args.Int(0), args.Error(1)
}

func (m *mockExecutionRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockExecutionRepo) CountByWorkflowID(ctx context.Context, workflowID uuid.UUID) (int, error) {
	args := m.Called(ctx, workflowID)
	return args.Int(0), args.Error(1)
}

func (m *mockExecutionRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

func (m *mockExecutionRepo) CreateNodeExecution(ctx context.Context, nodeExecution *storagemodels.NodeExecutionModel) error {
	return m.Called(ctx, nodeExecution).Error(0)
}

func (m *mockExecutionRepo) UpdateNodeExecution(ctx context.Context, nodeExecution *storagemodels.NodeExecutionModel) error {
	return m.Called(ctx, nodeExecution).Error(0)
}

func (m *mockExecutionRepo) DeleteNodeExecution(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockExecutionRepo) FindNodeExecutionByID(ctx context.Context, id uuid.UUID) (*storagemodels.NodeExecutionModel, error) {
	args := m.Called(ctx, id)
	nem, _ := args.Get(0).(*storagemodels.NodeExecutionModel)
	return nem, args.Error(1)
}

func (m *mockExecutionRepo) FindNodeExecutionsByExecutionID(ctx context.Context, executionID uuid.UUID) ([]*storagemodels.NodeExecutionModel, error) {
	args := m.Called(ctx, executionID)
	nems, _ := args.Get(0).([]*storagemodels.NodeExecutionModel)
	return nems, args.Error(1)
}

func (m *mockExecutionRepo) FindNodeExecutionsByWave(ctx context.Context, executionID uuid.UUID, wave int) ([]*storagemodels.NodeExecutionModel, error) {
	args := m.Called(ctx, executionID, wave)
	nems, _ := args.Get(0).([]*storagemodels.NodeExecutionModel)
	return nems, args.Error(1)
}

func (m *mockExecutionRepo) FindNodeExecutionsByStatus(ctx context.Context, executionID uuid.UUID, status string) ([]*storagemodels.NodeExecutionModel, error) {
	args := m.Called(ctx, executionID, status)
	nems, _ := args.Get(0).([]*storagemodels.NodeExecutionModel)
	return nems, args.Error(1)
}

func (m *mockExecutionRepo) CreateLog(ctx context.Context, log *storagemodels.ExecutionLogModel) error {
	return m.Called(ctx, log).Error(0)
}

func (m *mockExecutionRepo) GetLogs(ctx context.Context, executionID uuid.UUID) ([]*storagemodels.ExecutionLogModel, error) {
	args := m.Called(ctx, executionID)
	logs, _ := args.Get(0).([]*storagemodels.ExecutionLogModel)
	return logs, args.Error(1)
}

func (m *mockExecutionRepo) GetStatistics(ctx context.Context, workflowID *uuid.UUID, from, to time.Time) (*repository.ExecutionStatistics, error) {
	args := m.Called(ctx, workflowID, from, to)
	stats, _ := args.Get(0).(*repository.ExecutionStatistics)
	return stats, args.Error(1)
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
	_ repository.ExecutionRepository = (*mockExecutionRepo)(nil)
	_ repository.LockRepository      = (*mockLockRepo)(nil)
)

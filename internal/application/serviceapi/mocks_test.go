package serviceapi

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/stratix/workflow-engine/internal/domain/repository"
	"github.com/stratix/workflow-engine/internal/infrastructure/logger"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
	"github.com/stratix/workflow-engine/pkg/executor"
)

// --- Mock: WorkflowRepository ---

type mockWorkflowRepo struct {
	mock.Mock
}

func (m *mockWorkflowRepo) Create(ctx context.Context, workflow *storagemodels.WorkflowModel) error {
	return m.Called(ctx, workflow).Error(0)
}

func (m *mockWorkflowRepo) Update(ctx context.Context, workflow *storagemodels.WorkflowModel) error {
	return m.Called(ctx, workflow).Error(0)
}

func (m *mockWorkflowRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockWorkflowRepo) HardDelete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockWorkflowRepo) FindByID(ctx context.Context, id uuid.UUID) (*storagemodels.WorkflowModel, error) {
	args := m.Called(ctx, id)
	wm, _ := args.Get(0).(*storagemodels.WorkflowModel)
	return wm, args.Error(1)
}

func (m *mockWorkflowRepo) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*storagemodels.WorkflowModel, error) {
	args := m.Called(ctx, id)
	wm, _ := args.Get(0).(*storagemodels.WorkflowModel)
	return wm, args.Error(1)
}

func (m *mockWorkflowRepo) FindByName(ctx context.Context, name string, version int) (*storagemodels.WorkflowModel, error) {
	args := m.Called(ctx, name, version)
	wm, _ := args.Get(0).(*storagemodels.WorkflowModel)
	return wm, args.Error(1)
}

func (m *mockWorkflowRepo) FindVersionsByName(ctx context.Context, name string) ([]*storagemodels.WorkflowModel, error) {
	args := m.Called(ctx, name)
	wms, _ := args.Get(0).([]*storagemodels.WorkflowModel)
	return wms, args.Error(1)
}

func (m *mockWorkflowRepo) FindLatestVersionByName(ctx context.Context, name string) (*storagemodels.WorkflowModel, error) {
	args := m.Called(ctx, name)
	wm, _ := args.Get(0).(*storagemodels.WorkflowModel)
	return wm, args.Error(1)
}

func (m *mockWorkflowRepo) FindAll(ctx context.Context, limit, offset int) ([]*storagemodels.WorkflowModel, error) {
	args := m.Called(ctx, limit, offset)
	wms, _ := args.Get(0).([]*storagemodels.WorkflowModel)
	return wms, args.Error(1)
}

func (m *mockWorkflowRepo) FindByStatus(ctx context.Context, status string, limit, offset int) ([]*storagemodels.WorkflowModel, error) {
	args := m.Called(ctx, status, limit, offset)
	wms, _ := args.Get(0).([]*storagemodels.WorkflowModel)
	return wms, args.Error(1)
}

func (m *mockWorkflowRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockWorkflowRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

func (m *mockWorkflowRepo) FindAllWithFilters(ctx context.Context, filters repository.WorkflowFilters, limit, offset int) ([]*storagemodels.WorkflowModel, error) {
	args := m.Called(ctx, filters, limit, offset)
	wms, _ := args.Get(0).([]*storagemodels.WorkflowModel)
	return wms, args.Error(1)
}

func (m *mockWorkflowRepo) CountWithFilters(ctx context.Context, filters repository.WorkflowFilters) (int, error) {
	args := m.Called(ctx, filters)
	return args.Int(0), args.Error(1)
}

func (m *mockWorkflowRepo) CreateNode(ctx context.Context, node *storagemodels.NodeModel) error {
	return m.Called(ctx, node).Error(0)
}

func (m *mockWorkflowRepo) UpdateNode(ctx context.Context, node *storagemodels.NodeModel) error {
	return m.Called(ctx, node).Error(0)
}

func (m *mockWorkflowRepo) DeleteNode(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockWorkflowRepo) FindNodeByID(ctx context.Context, id uuid.UUID) (*storagemodels.NodeModel, error) {
	args := m.Called(ctx, id)
	nm, _ := args.Get(0).(*storagemodels.NodeModel)
	return nm, args.Error(1)
}

func (m *mockWorkflowRepo) FindNodesByWorkflowID(ctx context.Context, workflowID uuid.UUID) ([]*storagemodels.NodeModel, error) {
	args := m.Called(ctx, workflowID)
	nms, _ := args.Get(0).([]*storagemodels.NodeModel)
	return nms, args.Error(1)
}

func (m *mockWorkflowRepo) CreateEdge(ctx context.Context, edge *storagemodels.EdgeModel) error {
	return m.Called(ctx, edge).Error(0)
}

func (m *mockWorkflowRepo) UpdateEdge(ctx context.Context, edge *storagemodels.EdgeModel) error {
	return m.Called(ctx, edge).Error(0)
}

func (m *mockWorkflowRepo) DeleteEdge(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockWorkflowRepo) FindEdgeByID(ctx context.Context, id uuid.UUID) (*storagemodels.EdgeModel, error) {
	args := m.Called(ctx, id)
	em, _ := args.Get(0).(*storagemodels.EdgeModel)
	return em, args.Error(1)
}

func (m *mockWorkflowRepo) FindEdgesByWorkflowID(ctx context.Context, workflowID uuid.UUID) ([]*storagemodels.EdgeModel, error) {
	args := m.Called(ctx, workflowID)
	ems, _ := args.Get(0).([]*storagemodels.EdgeModel)
	return ems, args.Error(1)
}

func (m *mockWorkflowRepo) ValidateDAG(ctx context.Context, workflowID uuid.UUID) error {
	return m.Called(ctx, workflowID).Error(0)
}

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

// --- Mock: ExecutorManager ---

type mockExecutorManager struct {
	registeredTypes map[string]bool
}

func newMockExecutorManager(types ...string) executor.Manager {
	m := &mockExecutorManager{registeredTypes: make(map[string]bool)}
	for _, t := range types {
		m.registeredTypes[t] = true
	}
	return m
}

func (m *mockExecutorManager) Register(_ string, _ executor.Executor) error { return nil }

func (m *mockExecutorManager) Get(_ string) (executor.Executor, error) { return nil, nil }

func (m *mockExecutorManager) Has(nodeType string) bool {
	return m.registeredTypes[nodeType]
}

func (m *mockExecutorManager) List() []string { return nil }

func (m *mockExecutorManager) Unregister(_ string) error { return nil }

// --- Helpers ---

func newTestLogger() *logger.Logger {
	return logger.Default()
}

func newTestOperations(
	wfRepo *mockWorkflowRepo,
	execRepo *mockExecutionRepo,
	scheduleRepo *mockScheduleRepo,
	lockRepo *mockLockRepo,
	executorMgr executor.Manager,
) *Operations {
	ops := &Operations{
		Logger: newTestLogger(),
	}

	if wfRepo != nil {
		ops.WorkflowRepo = wfRepo
	}
	if execRepo != nil {
		ops.ExecutionRepo = execRepo
	}
	if scheduleRepo != nil {
		ops.ScheduleRepo = scheduleRepo
	}
	if lockRepo != nil {
		ops.LockRepo = lockRepo
	}
	if executorMgr != nil {
		ops.ExecutorManager = executorMgr
	}

	return ops
}

// Compile-time interface checks.
var (
	_ repository.WorkflowRepository  = (*mockWorkflowRepo)(nil)
	_ repository.ExecutionRepository = (*mockExecutionRepo)(nil)
	_ repository.ScheduleRepository  = (*mockScheduleRepo)(nil)
	_ repository.LockRepository      = (*mockLockRepo)(nil)
)

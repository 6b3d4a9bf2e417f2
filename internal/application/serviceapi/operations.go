package serviceapi

import (
	"github.com/google/uuid"

	"github.com/stratix/workflow-engine/internal/application/engine"
	"github.com/stratix/workflow-engine/internal/domain/repository"
	"github.com/stratix/workflow-engine/internal/infrastructure/logger"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
	"github.com/stratix/workflow-engine/pkg/executor"
)

// scheduleRegistrar is the subset of *scheduler.Scheduler that Operations
// needs to keep the live cron runner in sync with schedule CRUD. Declared
// here rather than importing the scheduler package directly to avoid a
// dependency cycle (scheduler already depends on engine, not on serviceapi).
type scheduleRegistrar interface {
	AddSchedule(sch *storagemodels.ScheduleModel) error
	RemoveSchedule(id uuid.UUID)
}

// Operations provides transport-agnostic business logic for the Service API.
// REST, gRPC, and CLI entry points delegate to these operations.
type Operations struct {
	WorkflowRepo    repository.WorkflowRepository
	ExecutionRepo   repository.ExecutionRepository
	ScheduleRepo    repository.ScheduleRepository
	LockRepo        repository.LockRepository
	ExecutionMgr    *engine.ExecutionManager
	ExecutorManager executor.Manager
	Logger          *logger.Logger

	// Scheduler is optional: when set (this replica runs the scheduler),
	// schedule CRUD pushes live registration changes into its cron runner
	// instead of waiting for the next leader re-election to pick them up.
	Scheduler scheduleRegistrar
}

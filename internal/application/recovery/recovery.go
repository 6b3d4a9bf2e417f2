// Package recovery implements the Recovery Service: a periodic scan
// that detects workflow instances abandoned by a dead engine replica and
// reclaims them for re-dispatch, without disturbing progress already
// persisted for completed nodes.
package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/stratix/workflow-engine/internal/application/engine"
	"github.com/stratix/workflow-engine/internal/application/observer"
	"github.com/stratix/workflow-engine/internal/domain/repository"
	"github.com/stratix/workflow-engine/internal/infrastructure/logger"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
)

// Config holds configuration for the Recovery Service.
type Config struct {
	ExecutionRepo   repository.ExecutionRepository
	LockRepo        repository.LockRepository
	ExecutionMgr    *engine.ExecutionManager
	ObserverManager *observer.ObserverManager
	Logger          *logger.Logger

	// EngineID identifies this replica when it takes over an abandoned
	// instance's lock. Defaults to the ExecutionMgr's own engine ID so a
	// reclaimed instance is attributed to the same replica that resumes it.
	EngineID string

	// ScanInterval is how often the service scans for abandoned instances.
	// Defaults to 60s. New does not check it against HeartbeatTimeout;
	// config.Validate rejects values above HeartbeatTimeout * 1.5.
	ScanInterval time.Duration

	// HeartbeatTimeout is the staleness threshold beyond which a running
	// instance's lastHeartbeat marks it as abandoned.
	HeartbeatTimeout time.Duration

	// ReclaimLockTTL is the lease duration used when this replica takes over
	// an abandoned instance's workflow:instance:<id> lock before handing it
	// back to the Engine for re-dispatch.
	ReclaimLockTTL time.Duration
}

// Service periodically reclaims instances abandoned by dead engines.
type Service struct {
	cfg    Config
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a new Recovery Service.
func New(cfg Config) *Service {
	if cfg.EngineID == "" && cfg.ExecutionMgr != nil {
		cfg.EngineID = cfg.ExecutionMgr.EngineID
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 60 * time.Second
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = 90 * time.Second
	}
	if cfg.ReclaimLockTTL <= 0 {
		cfg.ReclaimLockTTL = 120 * time.Second
	}

	return &Service{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the scan loop in the background until ctx is cancelled or Stop
// is called.
func (s *Service) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop halts the scan loop and waits for the in-flight scan, if any, to
// finish.
func (s *Service) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// scan performs one Recovery Service pass: cleanup expired
// locks, then find and reclaim instances whose owning engine stopped
// heartbeating.
func (s *Service) scan(ctx context.Context) {
	removed, err := s.cfg.LockRepo.CleanupExpiredLocks(ctx)
	if err != nil {
		s.log().Error("recovery: failed to cleanup expired locks", "error", err)
	} else if removed > 0 {
		s.log().Info("recovery: cleaned up expired locks", "count", removed)
	}

	threshold := time.Now().Add(-s.cfg.HeartbeatTimeout)
	stale, err := s.cfg.ExecutionRepo.FindStaleRunning(ctx, threshold)
	if err != nil {
		s.log().Error("recovery: failed to scan for stale instances", "error", err)
		return
	}

	for _, execModel := range stale {
		s.reclaim(ctx, execModel)
	}
}

// reclaim attempts to take over a single abandoned instance. Instances whose
// lock is still held by a live engine (i.e. not yet expired) are skipped:
// their owner may simply be slow, not dead.
func (s *Service) reclaim(ctx context.Context, execModel *storagemodels.ExecutionModel) {
	lockKey := storagemodels.WorkflowInstanceLockKey(execModel.ID.String())

	acquired, err := s.cfg.LockRepo.Acquire(ctx, lockKey, s.cfg.EngineID, storagemodels.LockTypeWorkflow, s.cfg.ReclaimLockTTL, nil)
	if err != nil {
		s.log().Error("recovery: failed to acquire instance lock", "error", err, "execution_id", execModel.ID)
		return
	}
	if !acquired {
		// Another replica (possibly the original owner, renewed in time) is
		// actively driving this instance. Leave it alone.
		return
	}
	// Release immediately: the Engine acquires its own lease when it
	// re-dispatches the instance via Resume. Holding the lease here would
	// just make the handoff race itself.
	defer s.cfg.LockRepo.Release(ctx, lockKey, s.cfg.EngineID)

	running, err := s.cfg.ExecutionRepo.FindNodeExecutionsByStatus(ctx, execModel.ID, "running")
	if err != nil {
		s.log().Error("recovery: failed to load in-flight node executions", "error", err, "execution_id", execModel.ID)
		return
	}
	for _, ne := range running {
		ne.MarkFailed(fmt.Sprintf("engine_lost: owning engine %s stopped heartbeating", execModel.EngineID))
		if err := s.cfg.ExecutionRepo.UpdateNodeExecution(ctx, ne); err != nil {
			s.log().Error("recovery: failed to mark in-flight node engine_lost", "error", err, "execution_id", execModel.ID, "node_execution_id", ne.ID)
		}
	}

	if err := s.cfg.ExecutionRepo.MarkInterrupted(ctx, execModel.ID); err != nil {
		s.log().Error("recovery: failed to mark instance interrupted", "error", err, "execution_id", execModel.ID)
		return
	}

	s.log().Info("recovery: reclaimed abandoned instance",
		"execution_id", execModel.ID,
		"previous_engine_id", execModel.EngineID,
		"nodes_reclaimed", len(running),
	)

	if s.cfg.ObserverManager != nil {
		s.cfg.ObserverManager.Notify(ctx, observer.Event{
			Type:        observer.EventTypeExecutionRecovered,
			ExecutionID: execModel.ID.String(),
			WorkflowID:  execModel.WorkflowID.String(),
			Timestamp:   time.Now(),
			Status:      "interrupted",
			Metadata: map[string]any{
				"previous_engine_id": execModel.EngineID,
				"nodes_reclaimed":    len(running),
			},
		})
	}

	// Re-dispatch under the new owner. Resume restores already-completed
	// nodes from persisted NodeExecutions, so progress made before the
	// crash is preserved; only the nodes just marked engine_lost above (and
	// anything depending on them) run again.
	if s.cfg.ExecutionMgr != nil {
		if _, err := s.cfg.ExecutionMgr.Resume(ctx, execModel.ID.String()); err != nil {
			s.log().Error("recovery: failed to resume reclaimed instance", "error", err, "execution_id", execModel.ID)
		}
	}
}

func (s *Service) log() *logger.Logger {
	if s.cfg.Logger != nil {
		return s.cfg.Logger
	}
	return logger.Default()
}

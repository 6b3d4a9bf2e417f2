package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stratix/workflow-engine/internal/application/observer"
	"github.com/stratix/workflow-engine/internal/domain/repository"
	storagemodels "github.com/stratix/workflow-engine/internal/infrastructure/storage/models"
	"github.com/stratix/workflow-engine/pkg/executor"
	"github.com/stratix/workflow-engine/pkg/models"
)

// ExecutionManager manages workflow execution lifecycle
type ExecutionManager struct {
	executorManager executor.Manager
	workflowRepo    repository.WorkflowRepository
	executionRepo   repository.ExecutionRepository
	lockRepo        repository.LockRepository
	dagExecutor     *DAGExecutor
	observerManager *observer.ObserverManager

	// EngineID identifies this process for instance-lock ownership and
	// lastHeartbeat attribution.
	EngineID string

	// InstanceLockTTL is the lease duration for workflow:instance:<id> locks.
	// HeartbeatInterval renews the lease and stamps lastHeartbeat; it should
	// be well under InstanceLockTTL.
	InstanceLockTTL   time.Duration
	HeartbeatInterval time.Duration

	runningMu sync.Mutex
	running   map[string]context.CancelFunc
}

// NewExecutionManager creates a new execution manager
func NewExecutionManager(
	executorManager executor.Manager,
	workflowRepo repository.WorkflowRepository,
	executionRepo repository.ExecutionRepository,
	lockRepo repository.LockRepository,
	observerManager *observer.ObserverManager,
) *ExecutionManager {
	nodeExecutor := NewNodeExecutor(executorManager)
	dagExecutor := NewDAGExecutor(nodeExecutor, observerManager)

	em := &ExecutionManager{
		executorManager:   executorManager,
		workflowRepo:      workflowRepo,
		executionRepo:     executionRepo,
		lockRepo:          lockRepo,
		dagExecutor:       dagExecutor,
		observerManager:   observerManager,
		EngineID:          uuid.New().String(),
		InstanceLockTTL:   120 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		running:           make(map[string]context.CancelFunc),
	}

	// A subprocess node spawns a child WorkflowInstance through this
	// same manager; wiring it back to itself avoids a cycle through a
	// separate package.
	dagExecutor.SetSubprocessLauncher(em)

	return em
}

// applyIdentity copies the caller-supplied instance identity and exclusion
// keys from options onto the execution.
func applyIdentity(execution *models.Execution, opts *ExecutionOptions) {
	execution.Name = opts.Name
	execution.ExternalID = opts.ExternalID
	execution.BusinessKey = opts.BusinessKey
	execution.MutexKey = opts.MutexKey
	execution.Priority = opts.Priority
}

// exclusionLockKeys returns the business:<key> / mutex:<key> lock keys this
// execution must hold while it runs, empty when neither key is set.
func exclusionLockKeys(execution *models.Execution) []string {
	var keys []string
	if execution.BusinessKey != "" {
		keys = append(keys, storagemodels.BusinessLockKey(execution.BusinessKey))
	}
	if execution.MutexKey != "" {
		keys = append(keys, storagemodels.MutexLockKey(execution.MutexKey))
	}
	return keys
}

// acquireExclusionLocks takes every exclusion lock the execution requires.
// On a conflict it releases whatever it already took and reports which key
// collided; acquisition is re-entrant for this engine, so runLocked can take
// the same keys again without a second conflict check.
func (em *ExecutionManager) acquireExclusionLocks(ctx context.Context, execution *models.Execution) error {
	if em.lockRepo == nil {
		return nil
	}

	keys := exclusionLockKeys(execution)
	for i, key := range keys {
		lockType := storagemodels.LockTypeBusiness
		if execution.MutexKey != "" && key == storagemodels.MutexLockKey(execution.MutexKey) {
			lockType = storagemodels.LockTypeMutex
		}

		acquired, err := em.lockRepo.Acquire(ctx, key, em.EngineID, lockType, em.InstanceLockTTL, nil)
		if err != nil {
			em.releaseExclusionLocks(ctx, keys[:i])
			return fmt.Errorf("failed to acquire %s: %w", key, err)
		}
		if !acquired {
			em.releaseExclusionLocks(ctx, keys[:i])
			return fmt.Errorf("%w: %s is held by another instance", models.ErrLockConflict, key)
		}
	}

	return nil
}

func (em *ExecutionManager) releaseExclusionLocks(ctx context.Context, keys []string) {
	if em.lockRepo == nil {
		return
	}
	for _, key := range keys {
		em.lockRepo.Release(ctx, key, em.EngineID)
	}
}

// Execute executes a workflow
func (em *ExecutionManager) Execute(
	ctx context.Context,
	workflowID string,
	input map[string]interface{},
	opts *ExecutionOptions,
) (*models.Execution, error) {
	// Use default options if not provided
	if opts == nil {
		opts = DefaultExecutionOptions()
	}

	// 1. Load workflow
	workflowUUID, err := uuid.Parse(workflowID)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow ID: %w", err)
	}

	workflowModel, err := em.workflowRepo.FindByIDWithRelations(ctx, workflowUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	// Convert storage model to domain model
	workflow := WorkflowModelToDomain(workflowModel)

// 2. Create execution record
	execution := &models.Execution{
		ID:           uuid.New().String(),
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		Status:       models.ExecutionStatusRunning,
		Input:        input,
		Variables:    MergeVariables(workflow.Variables, opts.Variables),
		StartedAt:    time.Now(),
	}
	applyIdentity(execution, opts)

	if err := em.acquireExclusionLocks(ctx, execution); err != nil {
		return nil, err
	}

	// Convert to storage model and save execution
	executionModel := ExecutionDomainToModel(execution)
	executionModel.EngineID = em.EngineID
	now := execution.StartedAt
	executionModel.LastHeartbeat = &now
	if err := em.executionRepo.Create(ctx, executionModel); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	return em.runLocked(ctx, execution, workflow, workflowModel, opts, nil)
}

// ExecuteAsync creates the execution record and hands the run off to a
// background goroutine, returning once the row exists and the run is
// dispatched; the instance lock is acquired later by that goroutine.
// Callers poll GetExecution for progress.
func (em *ExecutionManager) ExecuteAsync(
	ctx context.Context,
	workflowID string,
	input map[string]interface{},
	opts *ExecutionOptions,
) (*models.Execution, error) {
	if opts == nil {
		opts = DefaultExecutionOptions()
	}

	workflowUUID, err := uuid.Parse(workflowID)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow ID: %w", err)
	}

	workflowModel, err := em.workflowRepo.FindByIDWithRelations(ctx, workflowUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	workflow := WorkflowModelToDomain(workflowModel)

	execution := &models.Execution{
		ID:           uuid.New().String(),
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		Status:       models.ExecutionStatusPending,
		Input:        input,
		Variables:    MergeVariables(workflow.Variables, opts.Variables),
	}
	applyIdentity(execution, opts)

	// Exclusion conflicts surface to the caller synchronously, before the
	// instance row exists.
	if err := em.acquireExclusionLocks(ctx, execution); err != nil {
		return nil, err
	}

	executionModel := ExecutionDomainToModel(execution)
	if err := em.executionRepo.Create(ctx, executionModel); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	em.runningMu.Lock()
	em.running[execution.ID] = cancel
	em.runningMu.Unlock()

	go func() {
		defer func() {
			em.runningMu.Lock()
			delete(em.running, execution.ID)
			em.runningMu.Unlock()
			cancel()
		}()

		execution.Status = models.ExecutionStatusRunning
		execution.StartedAt = time.Now()
		if _, err := em.runLocked(runCtx, execution, workflow, workflowModel, opts, nil); err != nil && em.observerManager != nil {
			em.observerManager.Notify(runCtx, observer.Event{
				Type:        observer.EventTypeExecutionFailed,
				ExecutionID: execution.ID,
				WorkflowID:  execution.WorkflowID,
				Timestamp:   time.Now(),
				Status:      string(models.ExecutionStatusFailed),
				Error:       err,
			})
		}
	}()

	return execution, nil
}

// Cancel requests cooperative cancellation of a running execution's DAG
// traversal. Nodes that have not started yet are skipped; running nodes
// receive the cancelled context, and whether they stop early depends on
// their executor.
func (em *ExecutionManager) Cancel(ctx context.Context, executionID string) error {
	em.runningMu.Lock()
	cancel, ok := em.running[executionID]
	em.runningMu.Unlock()

	if !ok {
		return fmt.Errorf("execution %s is not running on this engine", executionID)
	}

	cancel()

	// Executors that support cooperative abort are asked directly; the rest
	// run to completion and have their result discarded.
	if em.executorManager != nil {
		for _, nodeType := range em.executorManager.List() {
			exec, err := em.executorManager.Get(nodeType)
			if err != nil || exec == nil {
				continue
			}
			if pausable, ok := exec.(executor.PausableExecutor); ok && pausable.CanPause() {
				_ = pausable.Pause(ctx, executionID)
			}
		}
	}

	return nil
}

// runLocked acquires the workflow:instance:<id> lock, runs the DAG under a
// renewing heartbeat, and releases the lock on completion.
func (em *ExecutionManager) runLocked(
	ctx context.Context,
	execution *models.Execution,
	workflow *models.Workflow,
	workflowModel *storagemodels.WorkflowModel,
	opts *ExecutionOptions,
	restoredState *ExecutionState,
) (*models.Execution, error) {
	if opts == nil {
		opts = DefaultExecutionOptions()
	}

	lockKey := storagemodels.WorkflowInstanceLockKey(execution.ID)

	if em.lockRepo != nil {
		acquired, err := em.lockRepo.Acquire(ctx, lockKey, em.EngineID, storagemodels.LockTypeWorkflow, em.InstanceLockTTL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire instance lock: %w", err)
		}
		if !acquired {
			return nil, fmt.Errorf("execution %s is already owned by another engine", execution.ID)
		}
		defer em.lockRepo.Release(context.Background(), lockKey, em.EngineID)

		// Re-entrant for this engine when Execute/ExecuteAsync already took
		// them; a resumed instance takes them fresh here. The deferred
		// instance-lock release covers the failure path.
		if err := em.acquireExclusionLocks(ctx, execution); err != nil {
			return nil, err
		}
		defer em.releaseExclusionLocks(context.Background(), exclusionLockKeys(execution))

		startedAt := time.Now()
		execution.StartedAt = startedAt
		stampModel := ExecutionDomainToModel(execution)
		stampModel.EngineID = em.EngineID
		stampModel.LockOwner = em.EngineID
		stampModel.LockAcquiredAt = &startedAt
		stampModel.LastHeartbeat = &startedAt
		em.executionRepo.Update(ctx, stampModel)

		heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
		defer stopHeartbeat()
		go em.heartbeatLoop(heartbeatCtx, lockKey, execution.ID, exclusionLockKeys(execution))
	}

	// Notify execution started
	if em.observerManager != nil {
		event := observer.Event{
			Type:        observer.EventTypeExecutionStarted,
			ExecutionID: execution.ID,
			WorkflowID:  execution.WorkflowID,
			Timestamp:   execution.StartedAt,
			Status:      string(execution.Status),
			Input:       execution.Input,
			Variables:   execution.Variables,
		}
		em.observerManager.Notify(ctx, event)
	}

	// 3. Build execution state, restoring already-completed nodes when this
	// is a resumed instance so they are not re-run.
	execState := restoredState
	if execState == nil {
		execState = NewExecutionState(
			execution.ID,
			workflow.ID,
			workflow,
			execution.Input,
			execution.Variables,
		)
	}

	// Persist a resumption point after every wave. The options are copied so
	// a caller-shared struct isn't mutated.
	runOpts := *opts
	runOpts.Checkpoint = func(execState *ExecutionState, waveIdx int) {
		em.persistCheckpoint(ctx, execState, waveIdx)
	}
	opts = &runOpts

	// 4. Execute DAG
	execErr := em.dagExecutor.Execute(ctx, execState, opts)

	// 5. Update execution with results
	now := time.Now()
	execution.CompletedAt = &now
	execution.Duration = execution.CalculateDuration()

	if execErr != nil {
		execution.Status = models.ExecutionStatusFailed
		execution.Error = execErr.Error()
	} else {
		execution.Status = models.ExecutionStatusCompleted
		// Set output to final node's output
		execution.Output = em.getFinalOutput(execState)
	}

	// Build node executions (need workflow model for UUID mapping)
	execution.NodeExecutions = em.buildNodeExecutions(execState, workflow, workflowModel)

	// Convert to storage model and update execution
	executionModel := ExecutionDomainToModel(execution)
	if err := em.executionRepo.Update(ctx, executionModel); err != nil {
		return nil, fmt.Errorf("failed to update execution: %w", err)
	}

	// Notify execution completion
	if em.observerManager != nil {
		duration := execution.Duration
		eventType := observer.EventTypeExecutionCompleted
		if execErr != nil {
			eventType = observer.EventTypeExecutionFailed
		}

		event := observer.Event{
			Type:        eventType,
			ExecutionID: execution.ID,
			WorkflowID:  execution.WorkflowID,
			Timestamp:   time.Now(),
			Status:      string(execution.Status),
			Output:      execution.Output,
			DurationMs:  &duration,
			Variables:   execution.Variables,
		}

		if execErr != nil {
			event.Error = execErr
		}

		em.observerManager.Notify(ctx, event)

		// Per-instance subscribers are done once the instance is terminal;
		// the completion event above was their last delivery.
		em.observerManager.UnregisterByExecution(execution.ID)
	}

	return execution, execErr
}

// persistCheckpoint stores (currentNodeId, checkpointData) for an in-flight
// instance so a resume after a crash starts from the last completed wave.
func (em *ExecutionManager) persistCheckpoint(ctx context.Context, execState *ExecutionState, waveIdx int) {
	execUUID, err := uuid.Parse(execState.ExecutionID)
	if err != nil {
		return
	}

	cp := CreateCheckpoint(execState, waveIdx)
	data, err := cp.Serialize()
	if err != nil {
		return
	}
	var checkpoint storagemodels.JSONBMap
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return
	}

	var currentNodeID *string
	if n := len(cp.CompletedNodes); n > 0 {
		currentNodeID = &cp.CompletedNodes[n-1]
	}

	em.executionRepo.SaveCheckpoint(ctx, execUUID, currentNodeID, checkpoint)
}

// heartbeatLoop renews the instance lock and stamps lastHeartbeat at
// HeartbeatInterval until ctx is cancelled, so the Recovery Service can tell
// this instance is still being actively driven.
func (em *ExecutionManager) heartbeatLoop(ctx context.Context, lockKey, executionID string, extraKeys []string) {
	ticker := time.NewTicker(em.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := em.lockRepo.Renew(ctx, lockKey, em.EngineID, em.InstanceLockTTL)
			if err != nil || !renewed {
				return
			}
			for _, key := range extraKeys {
				em.lockRepo.Renew(ctx, key, em.EngineID, em.InstanceLockTTL)
			}
			now := time.Now()
			if execUUID, err := uuid.Parse(executionID); err == nil {
				em.executionRepo.UpdateHeartbeat(ctx, execUUID, now)
			}
			_ = em.lockRepo.Heartbeat(ctx, em.EngineID, now)
		}
	}
}

// Pause marks a running instance as paused. The DAG traversal observes the
// same cancellation signal as Cancel; a later Resume restores completed
// nodes from the persisted NodeExecutions and re-runs the rest.
func (em *ExecutionManager) Pause(ctx context.Context, executionID string) error {
	execUUID, err := uuid.Parse(executionID)
	if err != nil {
		return fmt.Errorf("invalid execution ID: %w", err)
	}

	execModel, err := em.executionRepo.FindByID(ctx, execUUID)
	if err != nil {
		return fmt.Errorf("failed to find execution: %w", err)
	}
	if execModel.Status != "running" {
		return fmt.Errorf("execution %s is not running", executionID)
	}

	if err := em.Cancel(ctx, executionID); err != nil {
		return err
	}

	execModel.Status = "paused"
	return em.executionRepo.Update(ctx, execModel)
}

// Resume re-dispatches a paused, interrupted, or failed instance under its
// original execution ID, restoring previously-completed nodes from persisted
// NodeExecutions so they are not re-run. Resuming a failed instance is the
// retry path, bounded by the instance's maxRetries.
func (em *ExecutionManager) Resume(ctx context.Context, executionID string) (*models.Execution, error) {
	execUUID, err := uuid.Parse(executionID)
	if err != nil {
		return nil, fmt.Errorf("invalid execution ID: %w", err)
	}

	execModel, err := em.executionRepo.FindByID(ctx, execUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to find execution: %w", err)
	}
	switch execModel.Status {
	case "paused", "interrupted":
	case "failed":
		// The failed -> running retry path, bounded by the instance's own
		// retry budget.
		if execModel.RetryCount >= execModel.MaxRetries {
			return nil, fmt.Errorf("%w: execution %s used %d of %d retries",
				models.ErrRetriesExhausted, executionID, execModel.RetryCount, execModel.MaxRetries)
		}
		execModel.RetryCount++
		if err := em.executionRepo.IncrementRetryCount(ctx, execUUID); err != nil {
			return nil, fmt.Errorf("failed to record retry attempt: %w", err)
		}
	default:
		return nil, fmt.Errorf("execution %s is not paused, interrupted, or failed", executionID)
	}

	workflowModel, err := em.workflowRepo.FindByIDWithRelations(ctx, execModel.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	workflow := WorkflowModelToDomain(workflowModel)

	nodeExecs, err := em.executionRepo.FindNodeExecutionsByExecutionID(ctx, execUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load node executions: %w", err)
	}

	execState := NewExecutionState(
		executionID,
		workflow.ID,
		workflow,
		map[string]interface{}(execModel.InputData),
		map[string]interface{}(execModel.Variables),
	)
	RestoreCompletedNodes(execState, workflowModel, nodeExecs)

	execution := ExecutionModelToDomain(execModel)
	execution.Status = models.ExecutionStatusRunning

	runCtx, cancel := context.WithCancel(context.Background())
	em.runningMu.Lock()
	em.running[executionID] = cancel
	em.runningMu.Unlock()

	go func() {
		defer func() {
			em.runningMu.Lock()
			delete(em.running, executionID)
			em.runningMu.Unlock()
			cancel()
		}()

		if _, err := em.runLocked(runCtx, execution, workflow, workflowModel, nil, execState); err != nil && em.observerManager != nil {
			em.observerManager.Notify(runCtx, observer.Event{
				Type:        observer.EventTypeExecutionFailed,
				ExecutionID: execution.ID,
				WorkflowID:  execution.WorkflowID,
				Timestamp:   time.Now(),
				Status:      string(models.ExecutionStatusFailed),
				Error:       err,
			})
		}
	}()

	return execution, nil
}

// MergeVariables merges workflow and execution variables.
// Execution variables override workflow variables.
func MergeVariables(
	workflowVars map[string]interface{},
	executionVars map[string]interface{},
) map[string]interface{} {
	merged := make(map[string]interface{})

	// Copy workflow variables
	for k, v := range workflowVars {
		merged[k] = v
	}

	// Execution variables override workflow variables
	for k, v := range executionVars {
		merged[k] = v
	}

	return merged
}

// getFinalOutput gets output from leaf nodes (nodes with no outgoing edges)
func (em *ExecutionManager) getFinalOutput(execState *ExecutionState) map[string]interface{} {
	// Find leaf nodes (nodes with no outgoing edges)
	leafNodes := FindLeafNodes(execState.Workflow)

	if len(leafNodes) == 0 {
		return nil
	}

	// If single leaf, return its output; non-map outputs are wrapped
	if len(leafNodes) == 1 {
		if output, ok := execState.GetNodeOutput(leafNodes[0].ID); ok {
			return toMapInterface(output)
		}
		return nil
	}

	// Multiple leaves - merge outputs namespaced by node ID
	merged := make(map[string]interface{})
	for _, node := range leafNodes {
		if output, ok := execState.GetNodeOutput(node.ID); ok {
			merged[node.ID] = output
		}
	}

	return merged
}

// FindLeafNodes finds nodes with no outgoing edges
func FindLeafNodes(workflow *models.Workflow) []*models.Node {
	hasOutgoing := make(map[string]bool)
	for _, edge := range workflow.Edges {
		hasOutgoing[edge.From] = true
	}

	leaves := []*models.Node{}
	for _, node := range workflow.Nodes {
		if !hasOutgoing[node.ID] {
			leaves = append(leaves, node)
		}
	}

	return leaves
}

// buildNodeExecutions builds NodeExecution records from execution state
func (em *ExecutionManager) buildNodeExecutions(
	execState *ExecutionState,
	workflow *models.Workflow,
	workflowModel *storagemodels.WorkflowModel,
) []*models.NodeExecution {
	// Build map from logical ID to UUID
	logicalToUUID := make(map[string]string)
	for _, nodeModel := range workflowModel.Nodes {
		logicalToUUID[nodeModel.NodeID] = nodeModel.ID.String()
	}

	nodeExecs := make([]*models.NodeExecution, 0, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		// Get the UUID for this logical node ID
		nodeUUID, ok := logicalToUUID[node.ID]
		if !ok {
			// Skip nodes that don't have a UUID mapping
			continue
		}

		nodeExec := &models.NodeExecution{
			ID:          uuid.New().String(),
			ExecutionID: execState.ExecutionID,
			NodeID:      nodeUUID, // Use UUID instead of logical ID
			NodeName:    node.Name,
			NodeType:    node.Type,
		}

		// Get status
		if status, ok := execState.GetNodeStatus(node.ID); ok {
			nodeExec.Status = status
		}

		// Get output
		if output, ok := execState.GetNodeOutput(node.ID); ok {
			if outputMap, ok := output.(map[string]interface{}); ok {
				nodeExec.Output = outputMap
			}
		}

		// Get error
		if err, ok := execState.GetNodeError(node.ID); ok {
			nodeExec.Error = err.Error()
		}

		// Get timestamps
		if startTime, ok := execState.GetNodeStartTime(node.ID); ok {
			nodeExec.StartedAt = startTime
		}
		if endTime, ok := execState.GetNodeEndTime(node.ID); ok {
			nodeExec.CompletedAt = &endTime
		}

		nodeExecs = append(nodeExecs, nodeExec)
	}

	return nodeExecs
}

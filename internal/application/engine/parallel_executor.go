package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stratix/workflow-engine/pkg/models"
)

// ParallelBranch is one concurrent branch of a parallel node: an ordered
// chain of nodes executed sequentially, each fed the previous node's
// output.
type ParallelBranch struct {
	Nodes []*models.Node `json:"nodes"`
}

// ParallelNodeConfig is the node.Config shape for a parallel node.
type ParallelNodeConfig struct {
	JoinType       string           `json:"joinType"` // all|any|none
	MaxConcurrency int              `json:"maxConcurrency,omitempty"`
	Branches       []ParallelBranch `json:"branches"`
}

func parseParallelConfig(node *models.Node) (*ParallelNodeConfig, error) {
	raw, err := json.Marshal(node.Config)
	if err != nil {
		return nil, fmt.Errorf("parallel node %s: invalid config: %w", node.ID, err)
	}

	var cfg ParallelNodeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parallel node %s: invalid config: %w", node.ID, err)
	}

	if len(cfg.Branches) == 0 {
		return nil, fmt.Errorf("parallel node %s: at least one branch is required", node.ID)
	}
	if cfg.JoinType == "" {
		cfg.JoinType = JoinTypeAll
	}
	if cfg.JoinType != JoinTypeAll && cfg.JoinType != JoinTypeAny && cfg.JoinType != JoinTypeNone {
		return nil, fmt.Errorf("parallel node %s: invalid joinType %q", node.ID, cfg.JoinType)
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = len(cfg.Branches)
	}

	return &cfg, nil
}

type branchResult struct {
	output interface{}
	err    error
}

// executeParallelNode instantiates each branch and runs it concurrently,
// bounded by MaxConcurrency, joining according to JoinType. "any" cancels
// still-running siblings on first success; their in-flight node keeps
// running to completion (if its executor doesn't honor cancellation) but
// its output is discarded.
func (de *DAGExecutor) executeParallelNode(
	ctx context.Context,
	execState *ExecutionState,
	node *models.Node,
	opts *ExecutionOptions,
) (*NodeExecutionResult, error) {
	cfg, err := parseParallelConfig(node)
	if err != nil {
		return nil, err
	}

	branchCtx, cancelBranches := context.WithCancel(ctx)
	defer cancelBranches()

	results := make([]branchResult, len(cfg.Branches))
	sem := make(chan struct{}, cfg.MaxConcurrency)
	var wg sync.WaitGroup
	var winOnce sync.Once
	winner := -1

	for i, branch := range cfg.Branches {
		wg.Add(1)
		go func(idx int, nodes []*models.Node) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			output, err := de.executeNodeSequence(branchCtx, execState, nodes, nil, opts)
			results[idx] = branchResult{output: output, err: err}

			if err == nil && cfg.JoinType == JoinTypeAny {
				winOnce.Do(func() {
					winner = idx
					cancelBranches()
				})
			}
		}(i, branch.Nodes)
	}

	if cfg.JoinType == JoinTypeNone {
		// Fire-and-forget: the node completes immediately; branches keep
		// running detached from this call and their results are dropped.
		go wg.Wait()
		return &NodeExecutionResult{
			Output: map[string]interface{}{"branchesStarted": len(cfg.Branches)},
			Config: node.Config,
		}, nil
	}

	wg.Wait()

	if cfg.JoinType == JoinTypeAny {
		if winner == -1 {
			for _, r := range results {
				if r.err != nil {
					return nil, fmt.Errorf("parallel node %s: no branch succeeded, first error: %w", node.ID, r.err)
				}
			}
			return nil, fmt.Errorf("parallel node %s: no branch completed", node.ID)
		}
		return &NodeExecutionResult{Output: results[winner].output, Config: node.Config}, nil
	}

	// joinType == all: merge every branch's output, namespaced by index.
	merged := make(map[string]interface{}, len(cfg.Branches))
	var firstErr error
	for i, r := range results {
		key := fmt.Sprintf("branch_%d", i)
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		merged[key] = r.output
	}
	if firstErr != nil {
		return nil, fmt.Errorf("parallel node %s: branch failed: %w", node.ID, firstErr)
	}

	return &NodeExecutionResult{Output: merged, Config: node.Config}, nil
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/stratix/workflow-engine/pkg/models"
)

// LoopNodeConfig is the node.Config shape for a loop node. Mode "static"
// repeats Count times with a 0-based integer item; mode "dynamic"
// evaluates SourceExpression against the execution's context/variables/
// input to get the iteration array.
type LoopNodeConfig struct {
	Mode             string         `json:"mode,omitempty"` // static|dynamic
	Count            int            `json:"count,omitempty"`
	SourceExpression string         `json:"sourceExpression,omitempty"`
	ItemVar          string         `json:"itemVar,omitempty"`
	IndexVar         string         `json:"indexVar,omitempty"`
	MaxConcurrency   int            `json:"maxConcurrency,omitempty"`
	ErrorHandling    string         `json:"errorHandling,omitempty"` // stop|continue|retry
	Body             []*models.Node `json:"body"`
}

func parseLoopConfig(node *models.Node) (*LoopNodeConfig, error) {
	raw, err := json.Marshal(node.Config)
	if err != nil {
		return nil, fmt.Errorf("loop node %s: invalid config: %w", node.ID, err)
	}

	var cfg LoopNodeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("loop node %s: invalid config: %w", node.ID, err)
	}

	if len(cfg.Body) == 0 {
		return nil, fmt.Errorf("loop node %s: body must contain at least one node", node.ID)
	}
	if cfg.ItemVar == "" {
		cfg.ItemVar = "item"
	}
	if cfg.IndexVar == "" {
		cfg.IndexVar = "index"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.ErrorHandling == "" {
		cfg.ErrorHandling = "stop"
	}
	if cfg.Mode == "" {
		if cfg.SourceExpression != "" {
			cfg.Mode = "dynamic"
		} else {
			cfg.Mode = "static"
		}
	}

	return &cfg, nil
}

// resolveLoopItems returns the per-iteration item values: 0..Count-1 for a
// static loop, or SourceExpression's array result for a dynamic one.
func (de *DAGExecutor) resolveLoopItems(cfg *LoopNodeConfig, execState *ExecutionState) ([]interface{}, error) {
	if cfg.Mode == "static" {
		if cfg.Count <= 0 {
			return nil, fmt.Errorf("static loop requires count > 0")
		}
		items := make([]interface{}, cfg.Count)
		for i := range items {
			items[i] = i
		}
		return items, nil
	}

	if cfg.SourceExpression == "" {
		return nil, fmt.Errorf("dynamic loop requires sourceExpression")
	}

	env := map[string]interface{}{
		"vars":    execState.Variables,
		"input":   execState.Input,
		"context": execState.NodeOutputs,
	}

	program, err := de.conditionCache.CompileAndCache(cfg.SourceExpression, env)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sourceExpression: %w", err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate sourceExpression: %w", err)
	}

	items, ok := result.([]interface{})
	if !ok {
		return nil, fmt.Errorf("sourceExpression must evaluate to an array, got %T", result)
	}

	return items, nil
}

// cloneBodyForIteration copies the loop body's nodes with iteration-scoped
// IDs so concurrent iterations don't collide in ExecutionState's
// flat nodeID-keyed maps.
func cloneBodyForIteration(body []*models.Node, iteration int) []*models.Node {
	cloned := make([]*models.Node, len(body))
	for i, n := range body {
		c := *n
		c.ID = fmt.Sprintf("%s#%d", n.ID, iteration)
		cloned[i] = &c
	}
	return cloned
}

// executeLoopNode runs the loop body once per item, bounded by
// MaxConcurrency, with per-iteration item/index variables injected as the
// body's first node's parent output.
func (de *DAGExecutor) executeLoopNode(
	ctx context.Context,
	execState *ExecutionState,
	node *models.Node,
	opts *ExecutionOptions,
) (*NodeExecutionResult, error) {
	cfg, err := parseLoopConfig(node)
	if err != nil {
		return nil, err
	}

	items, err := de.resolveLoopItems(cfg, execState)
	if err != nil {
		return nil, err
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	outputs := make([]interface{}, len(items))
	errs := make([]error, len(items))
	sem := make(chan struct{}, cfg.MaxConcurrency)
	var wg sync.WaitGroup
	var stopOnce sync.Once

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it interface{}) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			select {
			case <-loopCtx.Done():
				errs[idx] = loopCtx.Err()
				return
			default:
			}

			body := cloneBodyForIteration(cfg.Body, idx)
			extraInput := map[string]interface{}{
				cfg.ItemVar:  it,
				cfg.IndexVar: idx,
			}

			output, err := de.executeNodeSequence(loopCtx, execState, body, extraInput, opts)
			outputs[idx] = output
			errs[idx] = err

			if err != nil && cfg.ErrorHandling == "stop" {
				stopOnce.Do(cancelLoop)
			}
		}(i, item)
	}

	wg.Wait()

	var firstErr error
	for _, e := range errs {
		if e != nil && firstErr == nil {
			firstErr = e
		}
	}

	if firstErr != nil && cfg.ErrorHandling != "continue" {
		return nil, fmt.Errorf("loop node %s: iteration failed: %w", node.ID, firstErr)
	}

	return &NodeExecutionResult{
		Output: map[string]interface{}{"results": outputs},
		Config: node.Config,
	}, nil
}

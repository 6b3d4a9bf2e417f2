package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stratix/workflow-engine/pkg/models"
)

// SubprocessLauncher starts, and optionally awaits, a child workflow
// instance on behalf of a subprocess node. ExecutionManager
// implements this; DAGExecutor depends only on the interface to avoid an
// import cycle back to the manager that constructs it.
type SubprocessLauncher interface {
	Execute(ctx context.Context, workflowID string, input map[string]interface{}, opts *ExecutionOptions) (*models.Execution, error)
	ExecuteAsync(ctx context.Context, workflowID string, input map[string]interface{}, opts *ExecutionOptions) (*models.Execution, error)
}

// SubprocessConfig is the node.Config shape for a subprocess node.
// InputMapping/OutputMapping keys are the child/parent field name; values
// are dotted paths resolved first-hit, against the parent's context for
// InputMapping and against the child's output for OutputMapping.
// An empty mapping passes the parent output straight through.
type SubprocessConfig struct {
	WorkflowID        string            `json:"workflowId"`
	InputMapping      map[string]string `json:"inputMapping,omitempty"`
	OutputMapping     map[string]string `json:"outputMapping,omitempty"`
	WaitForCompletion bool              `json:"waitForCompletion"`
}

func parseSubprocessConfig(node *models.Node) (*SubprocessConfig, error) {
	raw, err := json.Marshal(node.Config)
	if err != nil {
		return nil, fmt.Errorf("subprocess node %s: invalid config: %w", node.ID, err)
	}

	var cfg SubprocessConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("subprocess node %s: invalid config: %w", node.ID, err)
	}

	if cfg.WorkflowID == "" {
		return nil, fmt.Errorf("subprocess node %s: workflowId is required", node.ID)
	}

	return &cfg, nil
}

// executeSubprocessNode creates a child WorkflowInstance with mapped
// inputs. If WaitForCompletion, this node does not complete until the
// child reaches a terminal state and its output is mapped back; otherwise
// the child is dispatched asynchronously and the node completes
// immediately.
func (de *DAGExecutor) executeSubprocessNode(
	ctx context.Context,
	execState *ExecutionState,
	node *models.Node,
	parentOutput map[string]interface{},
) (*NodeExecutionResult, error) {
	if de.subprocessLauncher == nil {
		return nil, fmt.Errorf("subprocess node %s: no subprocess launcher configured on this engine", node.ID)
	}

	cfg, err := parseSubprocessConfig(node)
	if err != nil {
		return nil, err
	}

	childInput := make(map[string]interface{})
	if len(cfg.InputMapping) == 0 {
		for k, v := range parentOutput {
			childInput[k] = v
		}
	} else {
		for childKey, sourcePath := range cfg.InputMapping {
			if v, ok := lookupContextPath(sourcePath, parentOutput, execState.Variables, execState.Input); ok {
				childInput[childKey] = v
			}
		}
	}

	childOpts := DefaultExecutionOptions()

	if !cfg.WaitForCompletion {
		if _, err := de.subprocessLauncher.ExecuteAsync(ctx, cfg.WorkflowID, childInput, childOpts); err != nil {
			return nil, fmt.Errorf("subprocess node %s: failed to launch child workflow: %w", node.ID, err)
		}
		return &NodeExecutionResult{
			Output: map[string]interface{}{"dispatched": true},
			Config: node.Config,
		}, nil
	}

	childExec, err := de.subprocessLauncher.Execute(ctx, cfg.WorkflowID, childInput, childOpts)
	if err != nil {
		return nil, fmt.Errorf("subprocess node %s: child workflow execution failed: %w", node.ID, err)
	}
	if childExec.Status == models.ExecutionStatusFailed {
		return nil, fmt.Errorf("subprocess node %s: child workflow %s failed: %s", node.ID, childExec.ID, childExec.Error)
	}

	childOutput := toMapInterface(childExec.Output)

	output := make(map[string]interface{})
	if len(cfg.OutputMapping) == 0 {
		for k, v := range childOutput {
			output[k] = v
		}
	} else {
		for parentKey, childPath := range cfg.OutputMapping {
			if v, ok := lookupContextPath(childPath, childOutput); ok {
				output[parentKey] = v
			}
		}
	}
	output["childExecutionId"] = childExec.ID

	return &NodeExecutionResult{Output: output, Config: node.Config}, nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/stratix/workflow-engine/internal/application/template"
	"github.com/stratix/workflow-engine/pkg/executor"
	"github.com/stratix/workflow-engine/pkg/models"
)

// NodeExecutor executes a single node with automatic template resolution
type NodeExecutor struct {
	executorManager executor.Manager
}

// NewNodeExecutor creates a new node executor
func NewNodeExecutor(manager executor.Manager) *NodeExecutor {
	return &NodeExecutor{
		executorManager: manager,
	}
}

// NodeExecutionResult carries a node's output alongside the input and
// config (both original and template-resolved) it ran with, so the DAG
// executor can persist a full record without re-deriving any of it.
type NodeExecutionResult struct {
	Output         interface{}
	Input          interface{}
	Config         map[string]interface{}
	ResolvedConfig map[string]interface{}
}

// Execute executes a single node with automatic template resolution.
//
// Flow:
//  1. Get base executor from registry
//  2. Build ExecutionContextData from node context
//  3. Create template engine from ExecutionContextData and resolve the
//     node's config against it
//  4. Execute the base executor with the resolved config
func (ne *NodeExecutor) Execute(ctx context.Context, nodeCtx *NodeContext) (*NodeExecutionResult, error) {
	// 1. Get base executor from registry
	baseExecutor, err := ne.executorManager.Get(nodeCtx.Node.Type)
	if err != nil {
		return nil, fmt.Errorf("executor not found for type %s: %w", nodeCtx.Node.Type, err)
	}

	// 2. Build ExecutionContextData for template resolution
	execCtxData := &executor.ExecutionContextData{
		WorkflowVariables:  nodeCtx.WorkflowVariables,
		ExecutionVariables: nodeCtx.ExecutionVariables,
		ParentNodeOutput:   nodeCtx.DirectParentOutput, // ⭐ Key: output from immediate parent
		StrictMode:         nodeCtx.StrictMode,
	}

	// 3. Resolve templates in config ({{input.field}}, {{env.var}}, ...)
	templateEngine := executor.NewTemplateEngine(execCtxData)
	resolvedConfig, err := templateEngine.ResolveConfig(nodeCtx.Node.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve node config: %w", err)
	}

	// ${path} placeholders resolve against one flat bag: workflow variables,
	// overridden by execution variables, overridden by the parent's output.
	bag := make(map[string]interface{}, len(nodeCtx.WorkflowVariables)+len(nodeCtx.ExecutionVariables)+len(nodeCtx.DirectParentOutput))
	for k, v := range nodeCtx.WorkflowVariables {
		bag[k] = v
	}
	for k, v := range nodeCtx.ExecutionVariables {
		bag[k] = v
	}
	for k, v := range nodeCtx.DirectParentOutput {
		bag[k] = v
	}
	substituted, err := template.SubstituteVariables(resolvedConfig, bag, nodeCtx.StrictMode)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve node config: %w", err)
	}
	if m, ok := substituted.Value.(map[string]interface{}); ok {
		resolvedConfig = m
	}

	// 4. Execute with resolved config; hooks fire around the call for
	// executors that want them.
	execCtx := &executor.ExecutionContext{
		ExecutionID: nodeCtx.ExecutionID,
		NodeID:      nodeCtx.NodeID,
	}
	hooked, hasHooks := baseExecutor.(executor.HookedExecutor)
	if hasHooks {
		hooked.OnStart(ctx, execCtx)
	}

	result, err := baseExecutor.Execute(ctx, resolvedConfig, nodeCtx.DirectParentOutput)
	if err != nil {
		return nil, fmt.Errorf("node execution failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("executor %s returned no result", baseExecutor.Name())
	}
	if !result.Success {
		// The executor's retry hints ride the error so the retry policy can
		// honor ShouldRetry / RetryDelay.
		return nil, &executor.Failure{
			Message:    result.Error,
			Details:    result.ErrorDetails,
			Retry:      result.ShouldRetry,
			RetryDelay: result.RetryDelay,
			Logs:       result.Logs,
		}
	}
	if hasHooks {
		hooked.OnSuccess(ctx, execCtx, result)
	}

	return &NodeExecutionResult{
		Output:         result.Data,
		Input:          nodeCtx.DirectParentOutput,
		Config:         nodeCtx.Node.Config,
		ResolvedConfig: resolvedConfig,
	}, nil
}

// PrepareNodeContext builds NodeContext from execution state and node.
//
// This function handles:
//   - Single parent: merges parent output with execution input (parent output takes precedence)
//   - Multiple parents: merges outputs by parent node ID (namespace collision avoidance)
//   - No parents: uses execution input
func PrepareNodeContext(
	execState *ExecutionState,
	node *models.Node,
	parentNodes []*models.Node,
	opts *ExecutionOptions,
) *NodeContext {
	// Get direct parent output (for nodes with single parent)
	var directParentOutput map[string]interface{}

	if len(parentNodes) == 1 {
		// Single parent - merge execution input with parent output
		// This allows child nodes to access both execution input and parent output
		directParentOutput = make(map[string]interface{})

		// First, copy execution input
		for k, v := range execState.Input {
			directParentOutput[k] = v
		}

		// Then, overlay parent output (takes precedence)
		parentID := parentNodes[0].ID
		if output, ok := execState.GetNodeOutput(parentID); ok {
			if outputMap, ok := output.(map[string]interface{}); ok {
				for k, v := range outputMap {
					directParentOutput[k] = v
				}
			}
		}
	} else if len(parentNodes) > 1 {
		// Multiple parents - merge outputs with namespace by parent ID
		directParentOutput = mergeParentOutputs(execState, parentNodes)
	} else {
		// No parents - use execution input
		directParentOutput = execState.Input
	}

	return &NodeContext{
		ExecutionID:        execState.ExecutionID,
		NodeID:             node.ID,
		Node:               node,
		WorkflowVariables:  execState.Workflow.Variables,
		ExecutionVariables: execState.Variables,
		DirectParentOutput: directParentOutput,
		StrictMode:         opts.StrictMode,
	}
}

// mergeParentOutputs merges outputs from multiple parent nodes.
//
// To avoid namespace collisions, outputs are namespaced by parent node ID:
//
//	{
//	  "parent1-id": {parent1 output},
//	  "parent2-id": {parent2 output}
//	}
//
// Access in templates:
//
//	{{input.parent1-id.field}}
//	{{input.parent2-id.data}}
func mergeParentOutputs(execState *ExecutionState, parentNodes []*models.Node) map[string]interface{} {
	merged := make(map[string]interface{})

	for _, parent := range parentNodes {
		if output, ok := execState.GetNodeOutput(parent.ID); ok {
			// Namespace outputs by parent node ID to avoid collisions
			merged[parent.ID] = output
		}
	}

	return merged
}

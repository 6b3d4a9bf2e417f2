package engine

import (
	"context"

	"github.com/stratix/workflow-engine/pkg/executor"
)

// mockExecutor is a test double satisfying executor.Executor, letting
// tests stub per-node behavior via executeFn without registering a real
// built-in. resultFn, when set, takes precedence and returns a full
// ExecutionResult for tests exercising retry hints.
type mockExecutor struct {
	executeFn func(ctx context.Context, config map[string]interface{}, input interface{}) (interface{}, error)
	resultFn  func(ctx context.Context, config map[string]interface{}, input interface{}) (*executor.ExecutionResult, error)
}

func (m *mockExecutor) Name() string { return "mock" }

func (m *mockExecutor) Description() string { return "engine test double" }

func (m *mockExecutor) Version() string { return "1.0.0" }

func (m *mockExecutor) ConfigSchema() map[string]interface{} { return nil }

func (m *mockExecutor) Execute(ctx context.Context, config map[string]interface{}, input interface{}) (*executor.ExecutionResult, error) {
	if m.resultFn != nil {
		return m.resultFn(ctx, config, input)
	}
	if m.executeFn != nil {
		return executor.ResultOf(m.executeFn(ctx, config, input))
	}
	return executor.Succeed(nil), nil
}

func (m *mockExecutor) Validate(config map[string]interface{}) error {
	return nil
}

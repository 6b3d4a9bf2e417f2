// Package executor provides the executor interface and registry for node execution.
//
// Executors are responsible for executing individual nodes in a workflow.
// Each node type has a corresponding executor that implements the Executor interface.
//
// Built-in executors include:
//   - HTTP: Makes HTTP requests (GET, POST, PUT, DELETE)
//   - LLM: Integrates with LLM providers (OpenAI, Anthropic)
//   - Transform: Transforms data using expressions
//   - Conditional: Evaluates conditions and routes execution
//   - Merge: Combines outputs from multiple nodes
//
// Custom executors can be registered at runtime using the Manager.
package executor

import (
	"context"
	"fmt"
	"time"
)

// ExecutionResult is what an executor hands back to the engine: the output
// payload on success, or a failure description with retry hints. The engine
// measures duration itself; executors never report it.
type ExecutionResult struct {
	Success      bool           `json:"success"`
	Data         any            `json:"data,omitempty"`
	Error        string         `json:"error,omitempty"`
	ErrorDetails map[string]any `json:"error_details,omitempty"`
	ShouldRetry  bool           `json:"should_retry,omitempty"`
	RetryDelay   time.Duration  `json:"retry_delay,omitempty"`
	Logs         []string       `json:"logs,omitempty"`
}

// Succeed wraps an output payload as a successful result.
func Succeed(data any) *ExecutionResult {
	return &ExecutionResult{Success: true, Data: data}
}

// ResultOf adapts a plain (output, error) pair to the result contract:
// errors stay errors, everything else is a success payload.
func ResultOf(data any, err error) (*ExecutionResult, error) {
	if err != nil {
		return nil, err
	}
	return Succeed(data), nil
}

// Failure is the error the engine derives from a non-successful
// ExecutionResult, carrying the executor's retry hints through the retry
// policy.
type Failure struct {
	Message    string
	Details    map[string]any
	Retry      bool
	RetryDelay time.Duration
	Logs       []string
}

func (f *Failure) Error() string {
	return f.Message
}

// Executor is the interface that all node executors must implement: identity
// metadata, config validation, and execution returning an ExecutionResult.
type Executor interface {
	// Name returns the executor's registered name.
	Name() string

	// Description returns a human-readable summary of what the executor does.
	Description() string

	// Version returns the executor's version string.
	Version() string

	// ConfigSchema returns the executor's JSON Schema for its config, or nil
	// when the executor declares none. A non-nil schema is validated at
	// registration time.
	ConfigSchema() map[string]any

	// Execute executes the node with the given configuration and input.
	// Expected failures are reported through the result (with ShouldRetry /
	// RetryDelay hints); the error return is for infrastructure faults.
	Execute(ctx context.Context, config map[string]any, input any) (*ExecutionResult, error)

	// Validate validates the node configuration.
	// It returns an error if the configuration is invalid.
	Validate(config map[string]any) error
}

// LifecycleExecutor is implemented by executors that hold resources needing
// setup and teardown around engine start/stop.
type LifecycleExecutor interface {
	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// HealthChecker is implemented by executors that can report their own
// readiness (e.g. a downstream connection check).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PausableExecutor is implemented by executors that can abort or suspend an
// in-flight execution on request. Executors without it run to completion and
// have their result discarded on cancellation.
type PausableExecutor interface {
	CanPause() bool
	CanResume() bool
	Pause(ctx context.Context, executionID string) error
	Resume(ctx context.Context, executionID string) error
}

// HookedExecutor is implemented by executors that want per-node lifecycle
// notifications from the engine.
type HookedExecutor interface {
	OnStart(ctx context.Context, execCtx *ExecutionContext)
	OnSuccess(ctx context.Context, execCtx *ExecutionContext, result *ExecutionResult)
}

// Manager manages the registration and retrieval of executors.
// It provides a central registry for all executor types.
type Manager interface {
	// Register registers an executor for a specific node type.
	// If an executor for the type already exists, it will be replaced.
	Register(nodeType string, executor Executor) error

	// Get retrieves an executor by node type.
	// Returns an error if the executor is not found.
	Get(nodeType string) (Executor, error)

	// Has checks if an executor is registered for the given node type.
	Has(nodeType string) bool

	// List returns a list of all registered executor types.
	List() []string

	// Unregister removes an executor for a specific node type.
	Unregister(nodeType string) error
}

// ExecutorFunc is an adapter to allow the use of ordinary functions as Executors.
// If f is a function with the appropriate signature, ExecutorFunc(f) is an Executor
// that calls f.
type ExecutorFunc struct {
	ExecutorName string
	ExecuteFn    func(ctx context.Context, config map[string]any, input any) (any, error)
	ValidateFn   func(config map[string]any) error
}

// Name returns the adapter's name.
func (f *ExecutorFunc) Name() string {
	if f.ExecutorName == "" {
		return "func"
	}
	return f.ExecutorName
}

// Description returns a generic description for function adapters.
func (f *ExecutorFunc) Description() string { return "function executor" }

// Version returns the adapter's version.
func (f *ExecutorFunc) Version() string { return "1.0.0" }

// ConfigSchema returns nil: function adapters declare no schema.
func (f *ExecutorFunc) ConfigSchema() map[string]any { return nil }

// Execute calls the ExecuteFn function, adapting its plain return pair.
func (f *ExecutorFunc) Execute(ctx context.Context, config map[string]any, input any) (*ExecutionResult, error) {
	return ResultOf(f.ExecuteFn(ctx, config, input))
}

// Validate calls the ValidateFn function.
func (f *ExecutorFunc) Validate(config map[string]any) error {
	if f.ValidateFn == nil {
		return nil
	}
	return f.ValidateFn(config)
}

// ExecutionContext is the per-node context the engine hands to lifecycle
// hooks (OnStart/OnSuccess) of executors that want them.
type ExecutionContext struct {
	ExecutionID string
	NodeID      string
	WorkflowID  string
	Metadata    map[string]any
}

// NewExecutorFunc creates a new ExecutorFunc with the given functions.
func NewExecutorFunc(
	executeFn func(ctx context.Context, config map[string]any, input any) (any, error),
	validateFn func(config map[string]any) error,
) Executor {
	return &ExecutorFunc{
		ExecuteFn:  executeFn,
		ValidateFn: validateFn,
	}
}

// BaseExecutor provides common functionality for executors: the metadata
// surface plus typed config accessors. Embedders override Description /
// ConfigSchema by setting the corresponding fields.
type BaseExecutor struct {
	NodeType string

	description  string
	version      string
	configSchema map[string]any
}

// NewBaseExecutor creates a new BaseExecutor.
func NewBaseExecutor(nodeType string) *BaseExecutor {
	return &BaseExecutor{
		NodeType: nodeType,
		version:  "1.0.0",
	}
}

// WithDescription sets the executor's description; chainable from the constructor.
func (b *BaseExecutor) WithDescription(description string) *BaseExecutor {
	b.description = description
	return b
}

// WithVersion sets the executor's version; chainable from the constructor.
func (b *BaseExecutor) WithVersion(version string) *BaseExecutor {
	b.version = version
	return b
}

// WithConfigSchema sets the executor's declared JSON Schema; chainable from
// the constructor.
func (b *BaseExecutor) WithConfigSchema(schema map[string]any) *BaseExecutor {
	b.configSchema = schema
	return b
}

// Name returns the executor's registered node type.
func (b *BaseExecutor) Name() string { return b.NodeType }

// Description returns the executor's description.
func (b *BaseExecutor) Description() string { return b.description }

// Version returns the executor's version.
func (b *BaseExecutor) Version() string { return b.version }

// ConfigSchema returns the executor's declared config schema, nil if none.
func (b *BaseExecutor) ConfigSchema() map[string]any { return b.configSchema }

// ValidateRequired validates that required fields are present in the configuration.
func (b *BaseExecutor) ValidateRequired(config map[string]any, fields ...string) error {
	for _, field := range fields {
		if _, ok := config[field]; !ok {
			return fmt.Errorf("required field missing: %s", field)
		}
	}
	return nil
}

// GetString safely retrieves a string value from config.
func (b *BaseExecutor) GetString(config map[string]any, key string) (string, error) {
	val, ok := config[key]
	if !ok {
		return "", fmt.Errorf("field not found: %s", key)
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("field %s is not a string", key)
	}

	return str, nil
}

// GetStringDefault safely retrieves a string value from config with a default.
func (b *BaseExecutor) GetStringDefault(config map[string]any, key, defaultValue string) string {
	val, ok := config[key]
	if !ok {
		return defaultValue
	}

	str, ok := val.(string)
	if !ok {
		return defaultValue
	}

	return str
}

// GetInt safely retrieves an int value from config.
func (b *BaseExecutor) GetInt(config map[string]any, key string) (int, error) {
	val, ok := config[key]
	if !ok {
		return 0, fmt.Errorf("field not found: %s", key)
	}

	// Handle both float64 (from JSON) and int
	switch v := val.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("field %s is not a number", key)
	}
}

// GetIntDefault safely retrieves an int value from config with a default.
func (b *BaseExecutor) GetIntDefault(config map[string]any, key string, defaultValue int) int {
	val, ok := config[key]
	if !ok {
		return defaultValue
	}

	switch v := val.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// GetBool safely retrieves a bool value from config.
func (b *BaseExecutor) GetBool(config map[string]any, key string) (bool, error) {
	val, ok := config[key]
	if !ok {
		return false, fmt.Errorf("field not found: %s", key)
	}

	boolVal, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("field %s is not a boolean", key)
	}

	return boolVal, nil
}

// GetBoolDefault safely retrieves a bool value from config with a default.
func (b *BaseExecutor) GetBoolDefault(config map[string]any, key string, defaultValue bool) bool {
	val, ok := config[key]
	if !ok {
		return defaultValue
	}

	boolVal, ok := val.(bool)
	if !ok {
		return defaultValue
	}

	return boolVal
}

// GetMap safely retrieves a map value from config.
func (b *BaseExecutor) GetMap(config map[string]any, key string) (map[string]any, error) {
	val, ok := config[key]
	if !ok {
		return nil, fmt.Errorf("field not found: %s", key)
	}

	m, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field %s is not a map", key)
	}

	return m, nil
}

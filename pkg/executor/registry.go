package executor

import (
	"fmt"
	"sync"

	"github.com/stratix/workflow-engine/pkg/models"
)

// Registry implements the Manager interface with thread-safe executor registration.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates a new executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// NewManager creates a new executor manager.
// Built-in executors should be registered separately using RegisterBuiltins function
// from pkg/executor/builtin package to avoid import cycles.
func NewManager() Manager {
	return NewRegistry()
}

// Register registers an executor for a specific node type.
func (r *Registry) Register(nodeType string, executor Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if nodeType == "" {
		return fmt.Errorf("node type cannot be empty")
	}

	if executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}

	// A declared config schema is validated once at registration, not on
	// every dispatch.
	if schema := executor.ConfigSchema(); schema != nil {
		if err := validateConfigSchema(schema); err != nil {
			return fmt.Errorf("executor %s: invalid config schema: %w", nodeType, err)
		}
	}

	r.executors[nodeType] = executor
	return nil
}

// validateConfigSchema performs a shallow JSON Schema sanity check: the
// schema must declare a type, and any properties entry must itself be a map.
func validateConfigSchema(schema map[string]any) error {
	if _, ok := schema["type"].(string); !ok {
		return fmt.Errorf("schema must declare a string \"type\"")
	}
	if props, ok := schema["properties"]; ok {
		m, isMap := props.(map[string]any)
		if !isMap {
			return fmt.Errorf("schema \"properties\" must be an object")
		}
		for name, def := range m {
			if _, isMap := def.(map[string]any); !isMap {
				return fmt.Errorf("schema property %q must be an object", name)
			}
		}
	}
	return nil
}

// Get retrieves an executor by node type.
func (r *Registry) Get(nodeType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrExecutorNotFound, nodeType)
	}

	return executor, nil
}

// Has checks if an executor is registered for the given node type.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.executors[nodeType]
	return ok
}

// List returns a list of all registered executor types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.executors))
	for nodeType := range r.executors {
		types = append(types, nodeType)
	}

	return types
}

// Unregister removes an executor for a specific node type.
func (r *Registry) Unregister(nodeType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executors[nodeType]; !ok {
		return fmt.Errorf("%w: %s", models.ErrExecutorNotFound, nodeType)
	}

	delete(r.executors, nodeType)
	return nil
}

// defaultRegistry backs the package-level registration helpers, for callers
// that don't manage their own Manager instance.
var defaultRegistry = NewRegistry()

// Register registers an executor with the default registry.
func Register(nodeType string, executor Executor) error {
	return defaultRegistry.Register(nodeType, executor)
}

// Get retrieves an executor from the default registry.
func Get(nodeType string) (Executor, error) {
	return defaultRegistry.Get(nodeType)
}

// Has checks the default registry for a node type.
func Has(nodeType string) bool {
	return defaultRegistry.Has(nodeType)
}

// List returns the node types registered with the default registry.
func List() []string {
	return defaultRegistry.List()
}

// Unregister removes an executor from the default registry.
func Unregister(nodeType string) error {
	return defaultRegistry.Unregister(nodeType)
}

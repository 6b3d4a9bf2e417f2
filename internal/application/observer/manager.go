package observer

import (
	"context"
	"fmt"
	"sync"

	"github.com/stratix/workflow-engine/internal/infrastructure/logger"
)

// DefaultMaxListeners bounds how many observers a manager accepts before
// Register fails, so a caller that keeps registering per-instance observers
// without cancelling them hits an error instead of a slow leak.
const DefaultMaxListeners = 1000

// registration pairs an observer with its optional execution scope. A scoped
// registration only receives events for its execution id and can be removed
// wholesale with UnregisterByExecution.
type registration struct {
	observer    Observer
	executionID string // empty = global
}

// ObserverManager manages multiple observers with non-blocking notifications
type ObserverManager struct {
	registrations []registration
	logger        *logger.Logger
	mu            sync.RWMutex
	bufferSize    int // Buffer size for async notification channel
	maxListeners  int
}

// ManagerOption configures ObserverManager
type ManagerOption func(*ObserverManager)

// WithLogger sets the logger for the manager
func WithLogger(l *logger.Logger) ManagerOption {
	return func(m *ObserverManager) {
		m.logger = l
	}
}

// WithBufferSize sets the async notification buffer size
func WithBufferSize(size int) ManagerOption {
	return func(m *ObserverManager) {
		m.bufferSize = size
	}
}

// WithMaxListeners overrides the listener bound enforced by Register.
func WithMaxListeners(limit int) ManagerOption {
	return func(m *ObserverManager) {
		m.maxListeners = limit
	}
}

// NewObserverManager creates a new observer manager
func NewObserverManager(opts ...ManagerOption) *ObserverManager {
	mgr := &ObserverManager{
		registrations: make([]registration, 0),
		bufferSize:    100, // Default buffer size
		maxListeners:  DefaultMaxListeners,
	}

	for _, opt := range opts {
		opt(mgr)
	}

	if mgr.maxListeners <= 0 {
		mgr.maxListeners = DefaultMaxListeners
	}

	return mgr
}

// Register adds a global observer to the manager
func (m *ObserverManager) Register(observer Observer) error {
	return m.register(observer, "")
}

// RegisterScoped adds an observer that only receives events for the given
// execution id, removable in bulk with UnregisterByExecution.
func (m *ObserverManager) RegisterScoped(executionID string, observer Observer) error {
	if executionID == "" {
		return fmt.Errorf("execution id is required for a scoped observer")
	}
	return m.register(observer, executionID)
}

func (m *ObserverManager) register(observer Observer, executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.registrations) >= m.maxListeners {
		return fmt.Errorf("observer limit reached (%d): unregister stale observers before adding more", m.maxListeners)
	}

	// Names are unique within a scope: one global "metrics", but each
	// execution may carry its own "metrics" observer.
	for _, reg := range m.registrations {
		if reg.observer.Name() == observer.Name() && reg.executionID == executionID {
			return fmt.Errorf("observer with name %q already registered", observer.Name())
		}
	}

	m.registrations = append(m.registrations, registration{
		observer:    observer,
		executionID: executionID,
	})
	return nil
}

// Unregister removes an observer by name, checking global registrations
// first and falling back to scoped ones.
func (m *ObserverManager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, reg := range m.registrations {
		if reg.observer.Name() == name && reg.executionID == "" {
			m.registrations = append(m.registrations[:i], m.registrations[i+1:]...)
			return nil
		}
	}
	for i, reg := range m.registrations {
		if reg.observer.Name() == name {
			m.registrations = append(m.registrations[:i], m.registrations[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("observer %q not found", name)
}

// UnregisterByExecution removes every observer scoped to the given execution
// id, returning how many were removed. Called when an instance reaches a
// terminal state so per-instance subscribers don't accumulate.
func (m *ObserverManager) UnregisterByExecution(executionID string) int {
	if executionID == "" {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.registrations[:0]
	removed := 0
	for _, reg := range m.registrations {
		if reg.executionID == executionID {
			removed++
			continue
		}
		kept = append(kept, reg)
	}
	m.registrations = kept
	return removed
}

// Notify sends an event to all registered observers (NON-BLOCKING).
// Scoped observers only see events for their execution id. Each observer
// runs in its own goroutine, errors are logged but don't propagate.
func (m *ObserverManager) Notify(ctx context.Context, event Event) {
	m.mu.RLock()
	// Copy the matching observers to avoid holding the lock during notification
	matched := make([]Observer, 0, len(m.registrations))
	for _, reg := range m.registrations {
		if reg.executionID != "" && reg.executionID != event.ExecutionID {
			continue
		}
		matched = append(matched, reg.observer)
	}
	m.mu.RUnlock()

	// Notify each observer in parallel (non-blocking)
	for _, obs := range matched {
		go m.notifyObserver(ctx, obs, event)
	}
}

// notifyObserver notifies a single observer with error recovery
func (m *ObserverManager) notifyObserver(ctx context.Context, obs Observer, event Event) {
	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.ErrorContext(ctx, "Observer panic recovered",
					"observer", obs.Name(),
					"event_type", string(event.Type),
					"panic", r,
				)
			}
		}
	}()

	// Check filter
	filter := obs.Filter()
	if filter != nil && !filter.ShouldNotify(event) {
		return // Event filtered out
	}

	// Call observer
	if err := obs.OnEvent(ctx, event); err != nil {
		if m.logger != nil {
			m.logger.ErrorContext(ctx, "Observer notification failed",
				"observer", obs.Name(),
				"event_type", string(event.Type),
				"error", err,
			)
		}
	}
}

// Count returns the number of registered observers, global and scoped.
func (m *ObserverManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.registrations)
}

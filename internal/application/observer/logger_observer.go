package observer

import (
	"context"
	"fmt"

	"github.com/stratix/workflow-engine/internal/infrastructure/logger"
)

// LoggerObserver logs execution events to the structured logger.
type LoggerObserver struct {
	name   string
	logger *logger.Logger
	filter EventFilter
}

// LoggerObserverOption configures a LoggerObserver.
type LoggerObserverOption func(*LoggerObserver)

// WithLoggerInstance sets the logger instance.
func WithLoggerInstance(l *logger.Logger) LoggerObserverOption {
	return func(o *LoggerObserver) {
		o.logger = l
	}
}

// WithLoggerFilter sets the event filter.
func WithLoggerFilter(filter EventFilter) LoggerObserverOption {
	return func(o *LoggerObserver) {
		o.filter = filter
	}
}

// NewLoggerObserver creates a new logger observer.
func NewLoggerObserver(opts ...LoggerObserverOption) *LoggerObserver {
	obs := &LoggerObserver{
		name: "logger",
	}
	for _, opt := range opts {
		opt(obs)
	}
	return obs
}

// Name returns the observer's name.
func (o *LoggerObserver) Name() string {
	return o.name
}

// Filter returns the event filter.
func (o *LoggerObserver) Filter() EventFilter {
	return o.filter
}

// OnEvent logs the event at info level, or error level when it carries one.
func (o *LoggerObserver) OnEvent(ctx context.Context, event Event) error {
	if o.logger == nil {
		return nil
	}

	fields := []any{
		"event_type", string(event.Type),
		"execution_id", event.ExecutionID,
		"workflow_id", event.WorkflowID,
		"status", event.Status,
	}

	if event.NodeID != nil {
		fields = append(fields, "node_id", *event.NodeID)
	}
	if event.NodeName != nil {
		fields = append(fields, "node_name", *event.NodeName)
	}
	if event.NodeType != nil {
		fields = append(fields, "node_type", *event.NodeType)
	}
	if event.WaveIndex != nil {
		fields = append(fields, "wave_index", *event.WaveIndex)
	}
	if event.NodeCount != nil {
		fields = append(fields, "node_count", *event.NodeCount)
	}
	if event.DurationMs != nil {
		fields = append(fields, "duration_ms", *event.DurationMs)
	}
	if event.RetryCount != nil {
		fields = append(fields, "retry_count", *event.RetryCount)
	}

	msg := fmt.Sprintf("workflow event: %s", event.Type)

	if event.Error != nil {
		fields = append(fields, "error", event.Error.Error())
		o.logger.ErrorContext(ctx, msg, fields...)
	} else {
		o.logger.InfoContext(ctx, msg, fields...)
	}

	return nil
}

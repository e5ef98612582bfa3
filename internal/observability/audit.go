package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/reactor/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent is one line of the tool-call audit trail.
type AuditEvent struct {
	Tool      string        `json:"tool"`
	Status    string        `json:"status"` // success, failure
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	RunID     string        `json:"run_id,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// AuditLog appends tool-call events as JSON lines.
type AuditLog struct {
	mu     sync.Mutex
	logger zerolog.Logger
	closer io.Closer
}

// NewAuditLog writes events to w.
func NewAuditLog(w io.Writer) *AuditLog {
	return &AuditLog{logger: zerolog.New(w)}
}

// OpenAuditLog appends events to the file at path, creating it if needed.
func OpenAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	a := NewAuditLog(file)
	a.closer = file
	return a, nil
}

// RecordToolCall writes one event and mirrors it as an event on the active span.
func (a *AuditLog) RecordToolCall(ctx context.Context, tool string, duration time.Duration, err error) {
	event := AuditEvent{
		Tool:      tool,
		Status:    "success",
		Duration:  duration,
		RunID:     tracing.GetRunID(ctx),
		TraceID:   tracing.GetTraceID(ctx),
		Timestamp: time.Now(),
	}
	if err != nil {
		event.Status = "failure"
		event.Error = err.Error()
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("tool_call", trace.WithAttributes(
			attribute.String("audit.tool", event.Tool),
			attribute.String("audit.status", event.Status),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Time("timestamp", event.Timestamp).
		Str("tool", event.Tool).
		Str("status", event.Status).
		Dur("duration", event.Duration)
	if event.Error != "" {
		entry.Str("error", event.Error)
	}
	if event.RunID != "" {
		entry.Str("run_id", event.RunID)
	}
	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	entry.Send()
}

// Close closes the underlying file, if any.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

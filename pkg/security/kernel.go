// Package security implements the Security/Audit Kernel: the single
// boundary every mutating plugin action passes through. It gates
// admission with a non-queueing counting semaphore and emits structured
// audit events around every dispatched operation.
package security

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	daemonerrors "github.com/archmcp/mcpd/pkg/errors"
	"github.com/archmcp/mcpd/pkg/logging"
)

// AuditEventType enumerates the audit events the kernel emits around a
// dispatched operation.
type AuditEventType string

const (
	EventOperationStart   AuditEventType = "operation_start"
	EventOperationSuccess AuditEventType = "operation_success"
	EventOperationFailure AuditEventType = "operation_failure"
)

// AuditEvent is a single structured audit record.
type AuditEvent struct {
	OperationID   string                 `json:"operation_id"`
	OperationType string                 `json:"operation_type"`
	EventType     AuditEventType         `json:"event_type"`
	Context       map[string]interface{} `json:"context"`
	Duration      time.Duration          `json:"duration,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Error         string                 `json:"error,omitempty"`
}

// AuditSink receives every audit event the kernel emits, when auditAll is
// enabled.
type AuditSink interface {
	Record(event AuditEvent)
}

// LoggerAuditSink adapts a logging.Logger into an AuditSink, writing every
// event through the logger's dedicated audit stream.
type LoggerAuditSink struct {
	Logger logging.Logger
}

// Record implements AuditSink.
func (s LoggerAuditSink) Record(event AuditEvent) {
	details := map[string]interface{}{
		"operation_id":   event.OperationID,
		"operation_type": event.OperationType,
		"event":          string(event.EventType),
		"context":        event.Context,
		"timestamp":      event.Timestamp,
	}
	if event.Duration > 0 {
		details["duration_ms"] = event.Duration.Milliseconds()
	}
	if event.Error != "" {
		details["error"] = event.Error
	}
	s.Logger.Audit(string(event.EventType), details)
}

// operationRecord is the ephemeral admission record kept only long enough
// to attribute an in-flight operation.
type operationRecord struct {
	id            string
	operationType string
	context       map[string]interface{}
	start         time.Time
}

// Kernel is the admission gate and audit emitter. The zero value is not
// usable; use New.
type Kernel struct {
	sem      *semaphore.Weighted
	auditAll bool
	sink     AuditSink
	logger   logging.Logger
}

// New builds a Kernel with the given admission capacity
// (security.maxConcurrentOperations, default 10).
func New(maxConcurrentOperations int64, auditAll bool, sink AuditSink, logger logging.Logger) *Kernel {
	if maxConcurrentOperations <= 0 {
		maxConcurrentOperations = 10
	}
	if logger == nil {
		logger = logging.New(nil, nil)
	}
	return &Kernel{
		sem:      semaphore.NewWeighted(maxConcurrentOperations),
		auditAll: auditAll,
		sink:     sink,
		logger:   logger,
	}
}

// ExecuteWithAudit is the kernel's single entry point. It admits the
// caller through the semaphore without queueing — a saturated semaphore
// fails immediately with -30001 — then runs operation, emitting
// operation_start/success/failure audit events around it. The underlying
// error from operation is re-raised unchanged; the kernel never swallows
// it.
func (k *Kernel) ExecuteWithAudit(ctx context.Context, operationType string, auditContext map[string]interface{}, operation func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if !k.sem.TryAcquire(1) {
		k.emit(AuditEvent{
			OperationID:   uuid.NewString(),
			OperationType: operationType,
			EventType:     EventOperationFailure,
			Context:       auditContext,
			Timestamp:     time.Now(),
			Error:         "maximum concurrent operations exceeded",
		})
		return nil, daemonerrors.ResourceLocked()
	}
	defer k.sem.Release(1)

	record := &operationRecord{
		id:            uuid.NewString(),
		operationType: operationType,
		context:       auditContext,
		start:         time.Now(),
	}

	k.emit(AuditEvent{
		OperationID:   record.id,
		OperationType: record.operationType,
		EventType:     EventOperationStart,
		Context:       record.context,
		Timestamp:     record.start,
	})

	result, err := operation(ctx)
	duration := time.Since(record.start)

	if err != nil {
		k.emit(AuditEvent{
			OperationID:   record.id,
			OperationType: record.operationType,
			EventType:     EventOperationFailure,
			Context:       record.context,
			Duration:      duration,
			Timestamp:     time.Now(),
			Error:         err.Error(),
		})
		return nil, err
	}

	k.emit(AuditEvent{
		OperationID:   record.id,
		OperationType: record.operationType,
		EventType:     EventOperationSuccess,
		Context:       record.context,
		Duration:      duration,
		Timestamp:     time.Now(),
	})
	return result, nil
}

func (k *Kernel) emit(event AuditEvent) {
	if !k.auditAll || k.sink == nil {
		return
	}
	k.sink.Record(event)
}

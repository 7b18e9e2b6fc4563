// Package events provides an asynchronous event bus that decouples workflow
// status notifications and error reporting from the sinks that render them.
package events

import (
	"time"

	"github.com/adamidy7424/GeneNFT-Z/internal/errors"
)

// Status is the lifecycle position of a status notification
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Class tells the user what to do about a terminal status
type Class string

const (
	ClassNone      Class = ""
	ClassRejected  Class = "rejected"  // declined by the user, do not retry automatically
	ClassRetriable Class = "retriable" // transient, a retry may succeed
	ClassCompleted Class = "completed" // the work had already been done
	ClassFailed    Class = "failed"    // fix the input or session first
)

// Display durations of terminal notifications
const (
	SuccessTTL = 2 * time.Second
	ErrorTTL   = 3 * time.Second
)

// Operation names used in status events
const (
	OperationCreate     = "create"
	OperationVerify     = "verify"
	OperationInitialize = "initialize"
	OperationRefresh    = "refresh"
)

// StatusEvent is a transient, user-facing notification about a workflow.
// Pending events have no TTL and stay until superseded.
type StatusEvent struct {
	Operation string        `json:"operation"`
	RecordKey string        `json:"record_key,omitempty"`
	Status    Status        `json:"status"`
	Class     Class         `json:"class,omitempty"`
	Message   string        `json:"message"`
	TTL       time.Duration `json:"ttl,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
	Time      time.Time     `json:"time"`
}

// Pending builds an in-progress notification
func Pending(operation, recordKey, message string) StatusEvent {
	return StatusEvent{
		Operation: operation,
		RecordKey: recordKey,
		Status:    StatusPending,
		Message:   message,
		Time:      time.Now(),
	}
}

// Success builds a success notification with the success TTL
func Success(operation, recordKey, message string) StatusEvent {
	return StatusEvent{
		Operation: operation,
		RecordKey: recordKey,
		Status:    StatusSuccess,
		Message:   message,
		TTL:       SuccessTTL,
		Time:      time.Now(),
	}
}

// Completed builds a success notification for work that was already done
func Completed(operation, recordKey, message string) StatusEvent {
	e := Success(operation, recordKey, message)
	e.Class = ClassCompleted
	return e
}

// Failure builds an error notification classified from err
func Failure(operation, recordKey, message string, err error) StatusEvent {
	return StatusEvent{
		Operation: operation,
		RecordKey: recordKey,
		Status:    StatusError,
		Class:     ClassOf(err),
		Message:   message,
		TTL:       ErrorTTL,
		Time:      time.Now(),
	}
}

// WithTrace returns a copy of e carrying traceID
func (e StatusEvent) WithTrace(traceID string) StatusEvent {
	e.TraceID = traceID
	return e
}

// IsTerminal reports whether the event ends its operation
func (e StatusEvent) IsTerminal() bool {
	return e.Status != StatusPending
}

// ClassOf maps an error to the notification class shown to the user
func ClassOf(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.IsCategory(err, errors.CategoryUserRejected):
		return ClassRejected
	case errors.IsRetriable(err):
		return ClassRetriable
	default:
		return ClassFailed
	}
}

// ErrorEvent is an enhanced error published by the errors package.
// *errors.EnhancedError satisfies it.
type ErrorEvent interface {
	GetComponent() string
	GetCategory() string
	GetContext() map[string]any
	GetTimestamp() time.Time
	GetError() error
	GetMessage() string
	IsReported() bool
	MarkReported()
}

// StatusConsumer receives status notifications
type StatusConsumer interface {
	Name() string
	ProcessStatus(event StatusEvent) error
}

// ErrorConsumer receives published errors
type ErrorConsumer interface {
	Name() string
	ProcessError(event ErrorEvent) error
}

// StatusPublisher is what workflows need from the bus
type StatusPublisher interface {
	PublishStatus(event StatusEvent) bool
}

// Stats contains runtime statistics for monitoring
type Stats struct {
	EventsReceived   uint64
	EventsSuppressed uint64
	EventsProcessed  uint64
	EventsDropped    uint64
	ConsumerErrors   uint64
}

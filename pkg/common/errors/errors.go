package errors

import (
	"context"
	"errors"
	"fmt"
)

// Common error types used across the batchflow library

var (
	// ErrRejected indicates that a task was refused admission by a worker pool
	ErrRejected = errors.New("task rejected")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates that an operation was aborted by cooperative cancellation
	ErrCancelled = errors.New("operation cancelled")

	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrCapacityExceeded indicates that a capacity limit was exceeded
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Kind classifies an error reported by the pool, dispatcher or scheduler.
type Kind int

const (
	KindUnknown Kind = iota
	KindTask
	KindRejected
	KindTimeout
	KindCancelled
	KindProducer
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindProducer:
		return "producer"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// KindOf reports the kind of err. A TaskError is always KindTask, even when
// the action itself returned a context error, and a ProducerError is always
// KindProducer, even when the producer built an invalid batch.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var perr *ProducerError
	if errors.As(err, &perr) {
		return KindProducer
	}

	var verr *ValidationError
	if errors.As(err, &verr) || errors.Is(err, ErrInvalidConfiguration) {
		return KindConfig
	}

	var terr *TaskError
	if errors.As(err, &terr) {
		return KindTask
	}

	switch {
	case errors.Is(err, ErrRejected):
		return KindRejected
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	return KindUnknown
}

// ValidationError describes an invalid configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError for module.field.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap makes every ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError wraps a failure of a named operation.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches extra detail and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// TaskError records the failure of a single task action. Panic is set when
// the action panicked instead of returning an error.
type TaskError struct {
	TaskID string
	Cause  error
	Panic  interface{}
	Stack  []byte
}

func (e *TaskError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("task %q panicked: %v", e.TaskID, e.Panic)
	}
	return fmt.Sprintf("task %q failed: %v", e.TaskID, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// ProducerError records a batch producer that failed to build a batch.
type ProducerError struct {
	Cycle int
	Cause error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("batch producer failed in cycle %d: %v", e.Cycle, e.Cause)
}

func (e *ProducerError) Unwrap() error {
	return e.Cause
}

// Rejected wraps reason as an ErrRejected error.
func Rejected(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// Saturated wraps reason as a rejection caused by a full pool. The result
// matches both ErrRejected and ErrCapacityExceeded.
func Saturated(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w: %s", ErrRejected, ErrCapacityExceeded, fmt.Sprintf(format, args...))
}

// IsRetryable returns true if the error indicates a condition that might
// be resolved by resubmitting the task in a later cycle
func IsRetryable(err error) bool {
	if errors.Is(err, ErrClosed) {
		return false
	}
	if IsTemporary(err) {
		return true
	}
	switch KindOf(err) {
	case KindTimeout, KindRejected, KindCancelled:
		return true
	}
	return false
}

// IsTemporary returns true if the error indicates a temporary condition
func IsTemporary(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrCapacityExceeded)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

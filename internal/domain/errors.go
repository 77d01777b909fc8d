package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrOptimisticConflict = errors.New("optimistic update rejected")
	ErrStale              = errors.New("result no longer applies")
)

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a folder or canvas was not found
	NotFoundError struct {
		ResourceType string
		ResourceID   string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// InvariantViolationError is raised before any backend call when an
	// operation would break a workspace rule. Message is user-facing.
	InvariantViolationError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceID)
}
func (e *ValidationError) Error() string         { return e.Message }
func (e *InvariantViolationError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool           { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool         { return target == ErrValidation }
func (e *InvariantViolationError) Is(target error) bool { return target == ErrInvariantViolation }

func (e *NotFoundError) StatusCode() int           { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int         { return http.StatusBadRequest }
func (e *InvariantViolationError) StatusCode() int { return http.StatusConflict }

// NewNotFound builds a NotFoundError for a folder or canvas.
func NewNotFound(resourceType, id string) error {
	return &NotFoundError{ResourceType: resourceType, ResourceID: id}
}

// BackendUnavailableError wraps a network, connection or schema failure of a
// persistence backend. It triggers the Local fallback and is never fatal.
type BackendUnavailableError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable during %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

func (e *BackendUnavailableError) Is(target error) bool { return target == ErrBackendUnavailable }

func (e *BackendUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// OptimisticConflictError reports that a backend rejected a move or reorder
// after the workspace had already applied it locally. By the time callers
// see it, the optimistic change has been rolled back.
type OptimisticConflictError struct {
	Op       string
	CanvasID string
	Err      error
}

func (e *OptimisticConflictError) Error() string {
	if e.CanvasID == "" {
		return fmt.Sprintf("%s rolled back: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s of canvas %s rolled back: %v", e.Op, e.CanvasID, e.Err)
}

func (e *OptimisticConflictError) Unwrap() error { return e.Err }

func (e *OptimisticConflictError) Is(target error) bool { return target == ErrOptimisticConflict }

func (e *OptimisticConflictError) StatusCode() int { return http.StatusConflict }

// IsBackendUnavailable reports whether err should trigger the Local fallback.
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsNotFound reports whether err refers to a missing folder or canvas.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

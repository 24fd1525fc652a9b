package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/speednet/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the caller's workspace scope excludes the target.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a well-formed request cannot be satisfied in the current state.
	ErrConflict = errors.New("application: conflict")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver,
// prefixing each field name.
func (v *ValidationError) merge(prefix string, other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(prefix+field, msg)
	}
}

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError explains why the request clashes with current state.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// Is lets errors.Is match ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func notFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func conflict(reason string) error {
	return &ConflictError{Reason: reason}
}

// mapStoreError translates record store sentinels into the application
// taxonomy. Errors already in the taxonomy pass through.
func mapStoreError(err error, resource, id, duplicateReason string) error {
	if err == nil {
		return nil
	}
	var (
		vErr *ValidationError
		nErr *NotFoundError
		cErr *ConflictError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &nErr), errors.As(err, &cErr), errors.Is(err, ErrUnauthorized):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return notFound(resource, id)
	case errors.Is(err, persistence.ErrDuplicate):
		return conflict(duplicateReason)
	}
	return err
}

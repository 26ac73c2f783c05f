// Package apperr defines the error taxonomy shared by the server and the workbench.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")
)

// ValidationError blocks an action before any state changes.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: invalid", e.Field)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is reports ErrValidation for every ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is shorthand for a ValidationError on field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// RemoteError is a non-2xx answer from an endpoint.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned %d", e.Status)
	}
	return fmt.Sprintf("remote returned %d: %s", e.Status, e.Message)
}

// Is maps well-known statuses onto the sentinels.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrValidation:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// NetworkError is a transport failure: the request never got an answer.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network: %s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// Op names a workbench operation that talks to a remote endpoint.
type Op string

const (
	OpLoad   Op = "load"
	OpSave   Op = "save"
	OpDelete Op = "delete"
	OpList   Op = "list"
	OpExport Op = "export"
	OpAudio  Op = "audio"
)

// OpError is what the workbench surfaces to the user as a dismissible notice.
type OpError struct {
	Op  Op
	Err error
}

func (e *OpError) Error() string { return fmt.Sprintf("%s failed: %v", e.Op, e.Err) }

func (e *OpError) Unwrap() error { return e.Err }

// LoadError wraps a failed session load.
func LoadError(err error) error { return &OpError{Op: OpLoad, Err: err} }

// SaveError wraps a failed session save.
func SaveError(err error) error { return &OpError{Op: OpSave, Err: err} }

// IsOp reports whether err is an OpError for op.
func IsOp(err error, op Op) bool {
	var oe *OpError
	return errors.As(err, &oe) && oe.Op == op
}

package annotation

import (
	"errors"
	"fmt"
)

// Error taxonomy. LoadError and InputError terminate a request (or the
// process, at startup); backend errors are recovered at the aggregator
// boundary and never reach the caller.

// LoadError reports malformed or missing hierarchy/mapping source data.
// It is fatal at startup: no partial hierarchy or mapping is ever exposed.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError wraps an error as a LoadError for the given source.
func NewLoadError(source string, err error) error {
	return &LoadError{Source: source, Err: err}
}

// IsLoad reports whether err is a LoadError.
func IsLoad(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// InputError reports a malformed request payload. Fatal to that request only.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid request: %v", e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInput reports whether err is an InputError.
func IsInput(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// FailureKind classifies backend failures.
type FailureKind string

const (
	// ModelUnavailable means the backend's model service rejected or could
	// not serve the request.
	ModelUnavailable FailureKind = "model_unavailable"
	// MappingMiss means the backend's identifier mapping is unusable.
	MappingMiss FailureKind = "mapping_miss"
	// IOFailure covers transport and decoding failures.
	IOFailure FailureKind = "io_failure"
	// Timeout means the backend exceeded its deadline.
	Timeout FailureKind = "timeout"
)

// BackendError is a failure scoped to a single backend invocation.
type BackendError struct {
	Backend Tag
	Kind    FailureKind
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps an error as a BackendError.
func NewBackendError(backend Tag, kind FailureKind, err error) error {
	return &BackendError{Backend: backend, Kind: kind, Err: err}
}

// AsBackend extracts a BackendError from err, if present.
func AsBackend(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Package bencherrors contains generic errors returned by the benchmark
// orchestration core. Callers are expected to branch on these types with
// errors.As rather than matching error strings.
//
// If multiple errors occur in some function (e.g., when stopping every job of
// a campaign), that function should return an error of type multierror.Error
// from package github.com/hashicorp/go-multierror that encapsulates those
// individual errors.
package bencherrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is a generic error to be returned whenever some resource isn't found,
// e.g., a deployment or job handle referenced by an operation.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "service" or "campaign"
	Value   string // Resource name, e.g., "ollama-1"
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is a generic error to be returned on invalid argument,
// e.g., malformed thresholds or a missing required deployment field.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "maxWait"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// ErrConnectivity represents a transient failure of the remote executor
// channel (lost connection, failed upload, scheduler briefly unreachable).
// The deployment manager retries operations that fail with this error;
// everything else is surfaced to the caller immediately.
type ErrConnectivity struct {
	Operation string // The executor operation that failed, e.g., "submitJob"
	Message   string
}

func (err *ErrConnectivity) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("remote executor operation %q failed", err.Operation)
	}
	return fmt.Sprintf("remote executor operation %q failed; %s", err.Operation, err.Message)
}

// ErrMalformedRecord is returned when a single per-operation record cannot be
// decoded. Aggregation skips such records with a logged warning; it never
// aborts because of one bad line.
type ErrMalformedRecord struct {
	Line    int
	Message string
}

func (err *ErrMalformedRecord) Error() string {
	return fmt.Sprintf("malformed request record at line %d; %s", err.Line, err.Message)
}

// IsRetryable returns true if err indicates a transient condition worth
// retrying, i.e., a connectivity failure somewhere in the error chain.
func IsRetryable(err error) bool {
	var e *ErrConnectivity
	return errors.As(err, &e)
}

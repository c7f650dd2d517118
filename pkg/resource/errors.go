package resource

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind sentinels. Every *Error matches exactly one of these with errors.Is.
var (
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrMissingPathParameter = errors.New("missing path parameter")
	ErrUnexpectedEnvelope   = errors.New("unexpected envelope")
	ErrStaleEntity          = errors.New("stale entity")
	ErrMalformedTimestamp   = errors.New("malformed timestamp")
	ErrTransportFailure     = errors.New("transport failure")
	ErrInvalidSchema        = errors.New("invalid schema")
	ErrUnknownAttribute     = errors.New("unknown attribute")
	ErrInvalidQuery         = errors.New("invalid query parameter")
	ErrInvalidValue         = errors.New("invalid value")
)

// Static errors for err113 compliance.
var (
	ErrNoMoreItems         = errors.New("no more items")
	ErrMalformedTemplate   = errors.New("malformed path template")
	ErrNoTransport         = errors.New("no transport configured")
	ErrEndpointNotFound    = errors.New("endpoint not found in catalog")
	ErrInvalidMicroversion = errors.New("invalid microversion")
)

// Error is the failure type returned by every engine operation. It carries
// enough context (schema, operation, resolved path) for a single log line.
type Error struct {
	Kind      error
	Schema    string
	Operation Operation
	Path      string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("resource")

	if e.Schema != "" {
		b.WriteString(" ")
		b.WriteString(e.Schema)
	}

	if e.Operation != "" {
		b.WriteString(": ")
		b.WriteString(string(e.Operation))
	}

	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}

	// Causes built with %w around the kind already name it.
	if e.Err == nil || !errors.Is(e.Err, e.Kind) {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// kindOf returns the first kind sentinel err matches, or fallback.
func kindOf(err, fallback error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return fallback
}

var kinds = []error{
	ErrUnsupportedOperation,
	ErrMissingPathParameter,
	ErrUnexpectedEnvelope,
	ErrStaleEntity,
	ErrMalformedTimestamp,
	ErrTransportFailure,
	ErrInvalidSchema,
	ErrUnknownAttribute,
	ErrInvalidQuery,
	ErrInvalidValue,
}

func newError(kind error, schema string, op Operation, path string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Schema:    schema,
		Operation: op,
		Path:      path,
		Err:       cause,
	}
}

// TransportError is the opaque failure surfaced from the transport collaborator.
// The engine never interprets it beyond wrapping it with schema context.
type TransportError struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("status %d", e.StatusCode)
	}

	body := string(e.Body)
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen] + "..."
	}

	return fmt.Sprintf("status %d: %s", e.StatusCode, body)
}

const maxErrorBodyLen = 512

// StatusCode returns the HTTP status carried by a transport failure, or 0.
func StatusCode(err error) int {
	transportErr := &TransportError{}
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode
	}

	return 0
}

// IsNotFound checks if the error is a 404 transport failure.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict checks if the error is a 409 transport failure.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

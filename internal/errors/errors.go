// Package errors provides the classified error type shared by the optimizer,
// its collaborators and the transport layers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Type identifies the category of error
type Type string

const (
	// TypeInvalidLevel indicates a quality ceiling or level outside the catalogue's range
	TypeInvalidLevel Type = "INVALID_LEVEL"

	// TypeMissingConstituent indicates a request/catalogue constituent mismatch
	TypeMissingConstituent Type = "MISSING_CONSTITUENT"

	// TypeInfeasible indicates that no assignment fits the budget
	TypeInfeasible Type = "INFEASIBLE"

	// TypeMalformedCatalogue indicates the catalogue could not be loaded or is inconsistent
	TypeMalformedCatalogue Type = "MALFORMED_CATALOGUE"

	// TypeInvalidRequest indicates a malformed request shape
	TypeInvalidRequest Type = "INVALID_REQUEST"

	// TypeRequestTooLarge indicates a request body over the server's size limit
	TypeRequestTooLarge Type = "REQUEST_TOO_LARGE"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeNotFound indicates a resource not found error
	TypeNotFound Type = "NOT_FOUND"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// ContextConstituent is the context key naming the constituent that triggered an error
const ContextConstituent = "constituent"

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Type.
// This lets callers use errors.Is(err, errors.New(TypeInfeasible, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Constituent returns the constituent recorded in the error context, if any
func (e *Error) Constituent() string {
	if v, ok := e.Context[ContextConstituent].(string); ok {
		return v
	}
	return ""
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As returns the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType checks if an error (or anything it wraps) is of a specific type
func IsType(err error, t Type) bool {
	if e, ok := As(err); ok {
		return e.Type == t
	}
	return false
}

// TypeOf returns the classification of err, TypeInternal for unclassified errors
func TypeOf(err error) Type {
	if e, ok := As(err); ok {
		return e.Type
	}
	return TypeInternal
}

// StatusCode maps an error to the HTTP status the API reports for it
func StatusCode(err error) int {
	switch TypeOf(err) {
	case TypeInvalidLevel, TypeMissingConstituent, TypeInvalidRequest:
		return http.StatusBadRequest
	case TypeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case TypeInfeasible:
		return http.StatusUnprocessableEntity
	case TypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// InvalidLevel creates an invalid level error for a constituent
func InvalidLevel(constituent string, format string, args ...interface{}) *Error {
	return Newf(TypeInvalidLevel, format, args...).WithContext(ContextConstituent, constituent)
}

// MissingConstituent creates a missing constituent error
func MissingConstituent(constituent string, format string, args ...interface{}) *Error {
	return Newf(TypeMissingConstituent, format, args...).WithContext(ContextConstituent, constituent)
}

// Infeasible creates an infeasible error
func Infeasible(message string) *Error {
	return New(TypeInfeasible, message)
}

// MalformedCatalogue creates a malformed catalogue error
func MalformedCatalogue(message string, cause error) *Error {
	return Wrap(TypeMalformedCatalogue, message, cause)
}

// InvalidRequest creates an invalid request error
func InvalidRequest(message string) *Error {
	return New(TypeInvalidRequest, message)
}

// NotFound creates a not found error
func NotFound(resourceType, identifier string) *Error {
	return Newf(TypeNotFound, "%s not found: %s", resourceType, identifier)
}

// Config creates a configuration error
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}

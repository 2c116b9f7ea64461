package dbabstraction

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common failures.
var (
	// ErrNotSet is returned when an allowed entity field has no stored value.
	ErrNotSet = errors.New("dbabstraction: field not set")

	// ErrEmptyQuery is returned when an empty statement is passed to Query.
	ErrEmptyQuery = errors.New("dbabstraction: the specified query is not valid")

	// ErrInvalidIdentifier is returned when a table or column name is not a
	// plain SQL identifier.
	ErrInvalidIdentifier = errors.New("dbabstraction: invalid identifier")

	// ErrInvalidConfig is returned for malformed connection parameters.
	ErrInvalidConfig = errors.New("dbabstraction: invalid connection parameters")

	// ErrNoData is returned when an INSERT or UPDATE is requested without values.
	ErrNoData = errors.New("dbabstraction: no data")
)

// ValidationError reports a rejected argument: a field that is not on an
// entity's allow-list, an empty statement, or a malformed parameter.
type ValidationError struct {
	Name string // Field, parameter or argument name
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("dbabstraction: invalid %s: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given name.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// NotSetError is returned when reading or unsetting an allowed field that
// holds no value.
type NotSetError struct {
	Field string
}

// Error returns the error string.
func (e *NotSetError) Error() string {
	return fmt.Sprintf("dbabstraction: the field %q has not been set for this entity yet", e.Field)
}

// Is reports whether the target error matches NotSetError.
// This allows errors.Is(notSetErr, ErrNotSet) to return true.
func (e *NotSetError) Is(err error) bool {
	return err == ErrNotSet
}

// NewNotSetError returns a new NotSetError for the given field.
func NewNotSetError(field string) *NotSetError {
	return &NotSetError{Field: field}
}

// IsNotSet returns true if the error is a NotSetError.
func IsNotSet(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSetError
	return errors.As(err, &e) || errors.Is(err, ErrNotSet)
}

// ConnectionError wraps a driver failure while establishing a connection.
type ConnectionError struct {
	Driver string // Driver name used to open the connection
	Err    error  // Underlying driver error
}

// Error returns the error string.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("dbabstraction: connect %s: %v", e.Driver, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError returns a new ConnectionError.
func NewConnectionError(driver string, err error) *ConnectionError {
	return &ConnectionError{Driver: driver, Err: err}
}

// IsConnectionError returns true if the error is a ConnectionError.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectionError
	return errors.As(err, &e)
}

// ExecutionError wraps a statement that failed while being prepared,
// executed or committed. The transaction has been rolled back by the time
// the caller sees it.
type ExecutionError struct {
	Query string // SQL text that failed
	Err   error  // Underlying driver error
}

// Error returns the error string.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("dbabstraction: execute: %v\nqueryString: %s", e.Err, e.Query)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError returns a new ExecutionError.
func NewExecutionError(query string, err error) *ExecutionError {
	return &ExecutionError{Query: query, Err: err}
}

// IsExecutionError returns true if the error is an ExecutionError.
func IsExecutionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ExecutionError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Error returned by the rollback itself
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("dbabstraction: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

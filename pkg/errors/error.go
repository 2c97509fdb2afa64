// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99)
//   - Validation errors (100-199): bad configuration, signals and order requests
//   - Data errors (200-299): ledger and feature store failures
//   - Strategy errors (400-499): unknown strategies, model loading, evaluation failures
//   - Trading errors (500-599): broker calls and trade state transitions
//   - Market data errors (700-799): streams and history providers
//   - Controller errors (900-999): component supervision
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeOrderNotFound, "order %s not found", id)
//	if errors.HasCode(err, errors.ErrCodeOrderNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// InvalidTransitionError reports a trade state change that is not an edge of the
// trade lifecycle, or whose source state no longer matches the ledger.
type InvalidTransitionError struct {
	TradeID string
	From    string
	To      string
}

// NewInvalidTransitionError creates a new InvalidTransitionError.
func NewInvalidTransitionError(tradeID, from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{
		TradeID: tradeID,
		From:    from,
		To:      to,
	}
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("[%d] trade %s cannot move from %s to %s", ErrCodeInvalidTransition, e.TradeID, e.From, e.To)
}

// IsInvalidTransition checks if an error is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var transitionErr *InvalidTransitionError

	return errors.As(err, &transitionErr)
}

// IsTransient reports whether err is worth retrying: broker unavailability,
// quote gaps and stream hiccups.
func IsTransient(err error) bool {
	switch GetCode(err) {
	case ErrCodeBrokerUnavailable, ErrCodeQuoteUnavailable, ErrCodeStreamFailed, ErrCodeMarketDataFetchFailed:
		return true
	default:
		return false
	}
}

package common

import (
	"errors"
	"fmt"
)

// Sentinel kinds for the pipeline's error taxonomy. Workers branch on these
// to decide between retry, terminal failure, and silent discard.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrTransient        = errors.New("transient error")
	ErrValidation       = errors.New("validation error")
	ErrLeaseLost        = errors.New("job lease lost")
	ErrSnapshotTerminal = errors.New("snapshot already in terminal state")
	ErrNotFound         = errors.New("resource not found")
)

// AppError carries a stable code, a human-readable message, and the cause.
type AppError struct {
	Kind    error
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match the taxonomy sentinel in addition to the cause chain.
func (e *AppError) Is(target error) bool {
	return target == e.Kind
}

func ConfigurationError(message string, cause error) error {
	return &AppError{Kind: ErrConfiguration, Code: "CONFIG_ERROR", Message: message, Cause: cause}
}

func TransientError(message string, cause error) error {
	return &AppError{Kind: ErrTransient, Code: "TRANSIENT", Message: message, Cause: cause}
}

func ValidationError(message string, cause error) error {
	return &AppError{Kind: ErrValidation, Code: "VALIDATION", Message: message, Cause: cause}
}

func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }
func IsTransient(err error) bool     { return errors.Is(err, ErrTransient) }
func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }

// Retryable reports whether the worker should schedule another attempt.
// Only transient errors qualify; everything else is terminal or discarded.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

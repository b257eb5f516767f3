// Package corekit holds small cross-cutting pieces shared by the pricing,
// indicators, backtest, riskmetrics and jobs packages: the error taxonomy and
// a handful of numeric helpers that would otherwise be copy-pasted into each
// of them.
package corekit

import "fmt"

// ErrorKind classifies a CoreError. Kinds, not concrete types, per spec §7.
type ErrorKind string

const (
	ErrValidation      ErrorKind = "VALIDATION"
	ErrDataUnavailable ErrorKind = "DATA_UNAVAILABLE"
	ErrNumerical       ErrorKind = "NUMERICAL"
	ErrCancelled       ErrorKind = "CANCELLED"
	ErrDeadlineExceeded ErrorKind = "DEADLINE_EXCEEDED"
	ErrNotFound        ErrorKind = "NOT_FOUND"
	ErrNotReady        ErrorKind = "NOT_READY"
)

// CoreError is the structured error payload surfaced to job callers (§7).
// Fields carries ancillary structured context, e.g. the list of symbols a
// DataUnavailable error affects.
type CoreError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]any
}

func (e *CoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a CoreError with optional structured fields.
func NewError(kind ErrorKind, message string, fields map[string]any) *CoreError {
	return &CoreError{Kind: kind, Message: message, Fields: fields}
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) *CoreError {
	return &CoreError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// DataUnavailablef builds a DataUnavailable error naming the affected symbols.
func DataUnavailablef(symbols []string, format string, args ...any) *CoreError {
	return &CoreError{
		Kind:    ErrDataUnavailable,
		Message: fmt.Sprintf(format, args...),
		Fields:  map[string]any{"symbols": symbols},
	}
}

// Numericalf builds a NumericalError with a formatted message.
func Numericalf(format string, args ...any) *CoreError {
	return &CoreError{Kind: ErrNumerical, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *CoreError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ce, ok := err.(*CoreError)
	return ok && ce != nil && ce.Kind == kind
}

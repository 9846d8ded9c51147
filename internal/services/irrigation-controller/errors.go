package irrigation_controller

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a decision run was aborted.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindSourceUnavailable ErrorKind = "source_unavailable"
	KindPrediction        ErrorKind = "prediction"
	KindFormat            ErrorKind = "format"
	KindInvariant         ErrorKind = "invariant"
	KindCancelled         ErrorKind = "cancelled"
)

// Error is the failure of one pipeline step. Message is safe to show to the caller;
// Cause keeps the underlying error for logs and errors.Is/As.
type Error struct {
	Kind    ErrorKind
	Field   string // input field for validation errors
	Message string
	Cause   error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrSourceUnavailable = &Error{Kind: KindSourceUnavailable}
	ErrPrediction        = &Error{Kind: KindPrediction}
	ErrFormat            = &Error{Kind: KindFormat}
	ErrInvariant         = &Error{Kind: KindInvariant}
	ErrCancelled         = &Error{Kind: KindCancelled}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on kind, and on field when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// KindOf extracts the error kind from an error chain, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns the caller-facing message of a pipeline error.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func validationError(field, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Field:   field,
		Message: fmt.Sprintf("invalid %s: %s", field, fmt.Sprintf(format, args...)),
	}
}

func sourceError(message string, cause error) *Error {
	return &Error{Kind: KindSourceUnavailable, Message: message, Cause: cause}
}

func predictionError(cause error) *Error {
	return &Error{Kind: KindPrediction, Message: "Failed to run prediction model.", Cause: cause}
}

func formatError(seconds float64) *Error {
	return &Error{Kind: KindFormat, Message: fmt.Sprintf("cannot format negative duration %.2fs", seconds)}
}

func invariantError(format string, args ...any) *Error {
	return &Error{Kind: KindInvariant, Message: "internal error: " + fmt.Sprintf(format, args...)}
}

func cancelledError(cause error) *Error {
	return &Error{Kind: KindCancelled, Message: "Decision cancelled.", Cause: cause}
}

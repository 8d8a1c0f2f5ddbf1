package models

import (
	"errors"
	"fmt"
)

// ErrUnknownSymbol is returned when a tick references a symbol that has no
// configured destination table. Callers treat it as an acknowledged no-op.
var ErrUnknownSymbol = errors.New("unknown symbol")

// ValidationError reports a malformed or out-of-range tick field. Records
// failing validation are dropped at ingestion and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid tick: field %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient wraps a sink error that is expected to resolve on retry,
// such as rate limiting. Nil stays nil.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked
// transient by the sink.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

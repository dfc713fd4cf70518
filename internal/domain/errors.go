package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by the pipeline stage that produced them.
type ErrorKind string

const (
	KindExtraction    ErrorKind = "extraction"
	KindChunkerConfig ErrorKind = "chunker_config"
	KindEmbedding     ErrorKind = "embedding"
	KindIndex         ErrorKind = "index"
	KindGeneration    ErrorKind = "generation"
	KindConfiguration ErrorKind = "configuration"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyDocument     = errors.New("document contains no extractable text")
	ErrFileTooLarge      = errors.New("file exceeds maximum upload size")
)

// Error is the error type returned across component boundaries.
// Transient errors may succeed when retried.
type Error struct {
	Kind      ErrorKind
	Op        string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Kind)
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Kind == KindGeneration {
		msg += " (try asking the question again)"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns a permanent error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewTransientError returns a retryable error of the given kind.
func NewTransientError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Transient: true, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Transient
	}
	return false
}

// Package apperror defines the error kinds surfaced by the matching engine.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and propagation decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindConfiguration
	KindTransient
	KindTimeout
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindConfiguration:
		return "configuration"
	case KindTransient:
		return "transient"
	case KindTimeout:
		return "timeout"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrInput         = &Error{Kind: KindInput}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrTransient     = &Error{Kind: KindTransient}
	ErrTimeout       = &Error{Kind: KindTimeout}
	ErrPermanent     = &Error{Kind: KindPermanent}
)

// Error carries the kind, the operation that failed and the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so that errors.Is(err, ErrInput) works for every input error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Input reports a malformed candidate or job record.
func Input(op, format string, args ...any) *Error {
	return newf(KindInput, op, format, args...)
}

// Configuration reports invalid engine settings. It is fatal at startup.
func Configuration(op, format string, args ...any) *Error {
	return newf(KindConfiguration, op, format, args...)
}

// Transient wraps a retryable failure such as a storage conflict or a full queue.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Timeout reports a scoring task that exceeded its budget.
func Timeout(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Err: err}
}

// Permanent reports exhausted retries.
func Permanent(op string, err error) *Error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable is true for transient failures and timeouts.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindTimeout:
		return true
	default:
		return false
	}
}

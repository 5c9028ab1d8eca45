// Package apperr defines the closed set of failure kinds returned by the
// settings store and the file access gateway.
//
// Callers branch on the kind with errors.Is against the exported sentinels or
// with KindOf, never by matching message text:
//
//	if errors.Is(err, apperr.Cancelled) {
//		return nil // user dismissed the picker
//	}
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a failure category.
type Kind int

const (
	KindUnknown Kind = iota
	KindDirectoryUnavailable
	KindParseFailed
	KindWriteFailed
	KindReadFailed
	KindCancelled
	KindUnsupportedLocation
	KindExecutionFailed
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindDirectoryUnavailable: "directory_unavailable",
	KindParseFailed:          "parse_failed",
	KindWriteFailed:          "write_failed",
	KindReadFailed:           "read_failed",
	KindCancelled:            "cancelled",
	KindUnsupportedLocation:  "unsupported_location",
	KindExecutionFailed:      "execution_failed",
}

// String returns the snake_case wire name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	DirectoryUnavailable = &Error{Kind: KindDirectoryUnavailable}
	ParseFailed          = &Error{Kind: KindParseFailed}
	WriteFailed          = &Error{Kind: KindWriteFailed}
	ReadFailed           = &Error{Kind: KindReadFailed}
	Cancelled            = &Error{Kind: KindCancelled}
	UnsupportedLocation  = &Error{Kind: KindUnsupportedLocation}
	ExecutionFailed      = &Error{Kind: KindExecutionFailed}
)

// Error is a kind-tagged failure with optional context.
//
// Op names the operation ("load settings", "open file"), Reason is a short
// human-readable context string and Err is the underlying cause, if any.
type Error struct {
	Kind   Kind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind carrying no
// context of its own, which is the shape of the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Reason != "" || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// New returns an *Error of the given kind.
func New(kind Kind, op, reason string) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason}
}

// Wrap returns an *Error of the given kind wrapping err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the context a caller should render for err: the reason and
// cause without the op and kind prefix.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	switch {
	case e.Reason != "" && e.Err != nil:
		return e.Reason + ": " + e.Err.Error()
	case e.Reason != "":
		return e.Reason
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

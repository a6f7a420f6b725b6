// Package mxerr defines the closed error taxonomy shared by every MX
// component. It replaces the original C mx_status_type error codes with a
// typed Kind plus a wrapped cause, so callers can use errors.Is/errors.As
// for control flow while still getting a readable, context-bearing message.
package mxerr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error categories a component may report.
type Kind int

const (
	// Unknown is the zero Kind; never returned by this package's constructors.
	Unknown Kind = iota

	// NullArgument indicates a required argument was nil/zero. Programmer error.
	NullArgument
	// IllegalArgument indicates an argument failed validation. Programmer error.
	IllegalArgument

	// NotFound indicates a missing record, field, or host.
	NotFound

	// CorruptDataStructure indicates an internal invariant was violated.
	CorruptDataStructure
	// TypeMismatch indicates two datatype tags that were expected to agree did not.
	TypeMismatch
	// UnparseableString indicates a token could not be parsed as its declared datatype.
	UnparseableString

	// FileIO indicates an OS-level file operation failed.
	FileIO
	// PermissionDenied indicates an OS-level permission check failed.
	PermissionDenied

	// NetworkIO indicates a transport-level I/O failure other than the more specific kinds below.
	NetworkIO
	// ConnectionRefused indicates the remote end actively refused a connection attempt.
	ConnectionRefused
	// ConnectionLost indicates an established connection died mid-session.
	ConnectionLost
	// Timeout indicates an operation did not complete within its deadline.
	Timeout

	// Unsupported indicates a feature is intentionally not implemented for this configuration.
	Unsupported
	// NotYetImplemented indicates a feature gate for work not yet done.
	NotYetImplemented

	// OutOfMemory is fatal to the call that reported it.
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case NullArgument:
		return "null_argument"
	case IllegalArgument:
		return "illegal_argument"
	case NotFound:
		return "not_found"
	case CorruptDataStructure:
		return "corrupt_data_structure"
	case TypeMismatch:
		return "type_mismatch"
	case UnparseableString:
		return "unparseable_string"
	case FileIO:
		return "file_io"
	case PermissionDenied:
		return "permission_denied"
	case NetworkIO:
		return "network_io"
	case ConnectionRefused:
		return "connection_refused"
	case ConnectionLost:
		return "connection_lost"
	case Timeout:
		return "timeout"
	case Unsupported:
		return "unsupported"
	case NotYetImplemented:
		return "not_yet_implemented"
	case OutOfMemory:
		return "out_of_memory"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every MX component. Component
// is the short package tag (e.g. "netio", "rpc") used the same way the
// teacher prefixes its wrapped errors ("queue:", "transport:", "audit:").
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Cause     error
	// Quietable errors may be suppressed from user-visible logs by callers
	// that poll speculatively (§7). It never changes errors.Is semantics.
	Quietable bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Component, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind. This lets
// callers write errors.Is(err, mxerr.New("", mxerr.ConnectionLost, "")) or,
// more directly, IsKind(err, mxerr.ConnectionLost).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error. component is a short package tag; message is a
// human-readable description with no trailing punctuation.
func New(component string, kind Kind, message string) *Error {
	return &Error{Component: component, Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting of message.
func Newf(component string, kind Kind, format string, args ...any) *Error {
	return &Error{Component: component, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that carries cause as its Unwrap() target.
func Wrap(component string, kind Kind, message string, cause error) *Error {
	return &Error{Component: component, Kind: kind, Message: message, Cause: cause}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting of message.
func Wrapf(component string, kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Component: component, Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Quiet marks e as quietable (suppressible in user-visible logs by
// speculative-poll callers) and returns it for chaining.
func (e *Error) Quiet() *Error {
	e.Quietable = true
	return e
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Unknown, false
}

// IsKind reports whether err is, or wraps, an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsQuietable reports whether err is, or wraps, an *Error marked Quietable.
func IsQuietable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Quietable
	}
	return false
}

// Package h5 presents the HDF5 object model through typed,
// reference-counted handles: files, groups, datasets, attributes,
// dataspaces, datatypes and property lists.
package h5

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies façade failures.
type Kind int

const (
	// OpenFailed reports a failure to open an existing entity.
	OpenFailed Kind = iota + 1
	// CreateFailed reports a failure to create an entity.
	CreateFailed
	// CloseFailed reports a failure while releasing a handle.
	CloseFailed
	// InvalidArgument reports a caller error detectable before any I/O.
	InvalidArgument
	// IOFailed reports a failed data transfer.
	IOFailed
	// InspectFailed reports a failed metadata probe.
	InspectFailed
)

func (k Kind) String() string {
	switch k {
	case OpenFailed:
		return "open failed"
	case CreateFailed:
		return "create failed"
	case CloseFailed:
		return "close failed"
	case InvalidArgument:
		return "invalid argument"
	case IOFailed:
		return "io failed"
	case InspectFailed:
		return "inspect failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Kind sentinels for errors.Is matching.
var (
	ErrOpenFailed      error = &Error{Kind: OpenFailed}
	ErrCreateFailed    error = &Error{Kind: CreateFailed}
	ErrCloseFailed     error = &Error{Kind: CloseFailed}
	ErrInvalidArgument error = &Error{Kind: InvalidArgument}
	ErrIOFailed        error = &Error{Kind: IOFailed}
	ErrInspectFailed   error = &Error{Kind: InspectFailed}
)

// Error is the façade error type. Op names the failing operation,
// Detail carries a human-readable message, and Err holds the underlying
// cause when one exists.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := "h5: " + e.Op
	if e.Op == "" {
		msg = "h5: " + e.Kind.String()
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so sentinel comparisons like
// errors.Is(err, ErrOpenFailed) work regardless of Op and Detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, op, detail string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Err: cause}
}

// wrapError attaches op context and a stack to an engine error.
func wrapError(kind Kind, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(cause)}
}

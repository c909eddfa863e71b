package surface

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.  Every error returned by this package wraps exactly one of these,
// so callers can test with errors.Is.
var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrMalformedRange    = errors.New("malformed range")
	ErrMalformedMask     = errors.New("malformed mask")
	ErrInvalidValue      = errors.New("invalid value")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrOutOfBounds       = errors.New("out of bounds")
	ErrDegenerateAxis    = errors.New("degenerate axis")
)

// Error describes a failure along with where it happened.  Surface is the index of the
// offending surface within a set, or -1 if not applicable.  Axis is NoAxis if the
// failure isn't tied to one axis.
type Error struct {
	Kind    error
	Surface int
	Axis    Axis
	Msg     string
	Err     error
}

func newError(kind error, axis Axis, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Surface: -1,
		Axis:    axis,
		Msg:     fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Surface >= 0 {
		fmt.Fprintf(&b, " in surface %d", e.Surface)
	}
	if e.Axis != NoAxis {
		fmt.Fprintf(&b, " along %s", e.Axis)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns a short identifier of the error kind, e.g., "MalformedMask".
func (e *Error) KindName() string {
	return KindName(e.Kind)
}

// KindName returns a short identifier for an error kind or any error wrapping one.
// It returns "" if err doesn't wrap a kind from this package.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrMalformedDocument):
		return "MalformedDocument"
	case errors.Is(err, ErrMalformedRange):
		return "MalformedRange"
	case errors.Is(err, ErrMalformedMask):
		return "MalformedMask"
	case errors.Is(err, ErrInvalidValue):
		return "InvalidValue"
	case errors.Is(err, ErrIndexOutOfRange):
		return "IndexOutOfRange"
	case errors.Is(err, ErrOutOfBounds):
		return "OutOfBounds"
	case errors.Is(err, ErrDegenerateAxis):
		return "DegenerateAxis"
	default:
		return ""
	}
}

// atSurface attributes an error to the i-th surface of a set.
func atSurface(err error, i int) error {
	var e *Error
	if errors.As(err, &e) {
		e.Surface = i
		return e
	}
	return &Error{Kind: ErrMalformedDocument, Surface: i, Axis: NoAxis, Err: err}
}

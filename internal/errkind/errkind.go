// Package errkind implements the engine's error taxonomy.
//
// The original implementation threads absl::Status and its StatusCode
// through every layer of the pipeline; Go has no equivalent built-in type,
// so this package plays the same role: a small closed set of kinds plus a
// Status error that callers can match on with errors.As.
package errkind

import "fmt"

// Kind is the taxonomy described in spec.md §7.
type Kind int

const (
	Unknown Kind = iota
	Cancelled
	DeadlineExceeded
	OutOfRange
	InvalidArgument
	FailedPrecondition
	DataLoss
	Internal
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Cancelled:
		return "Cancelled"
	case DeadlineExceeded:
		return "DeadlineExceeded"
	case OutOfRange:
		return "OutOfRange"
	case InvalidArgument:
		return "InvalidArgument"
	case FailedPrecondition:
		return "FailedPrecondition"
	case DataLoss:
		return "DataLoss"
	case Internal:
		return "Internal"
	case Unavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// Status is an error carrying one of the Kind values above.
type Status struct {
	Kind Kind
	Msg  string
}

func (s *Status) Error() string {
	return fmt.Sprintf("%s: %s", s.Kind, s.Msg)
}

// New builds a *Status of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Status {
	return &Status{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Of returns the Kind carried by err, or Unknown if err is nil or not a
// *Status.
func Of(err error) Kind {
	if err == nil {
		return Unknown
	}
	var s *Status
	if as(err, &s) {
		return s.Kind
	}
	return Unknown
}

// IsKind reports whether err is a *Status of the given kind.
func IsKind(err error, kind Kind) bool {
	return Of(err) == kind
}

// as is a tiny local shim around errors.As to avoid importing errors just
// for this one call site in every file that needs Of/IsKind.
func as(err error, target **Status) bool {
	for err != nil {
		if s, ok := err.(*Status); ok {
			*target = s
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

package appointment

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the transport layer can map it without
// knowing every individual error.
type Kind int

const (
	Internal Kind = iota
	NotFound
	InvalidInput
	Conflict
	IllegalStateTransition
	DependencyFailure
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case Conflict:
		return "conflict"
	case IllegalStateTransition:
		return "illegal_state_transition"
	case DependencyFailure:
		return "dependency_failure"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrActorNotFound) || errors.Is(err, ErrSlotNotFound) ||
		errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrConsultationNotFound) {
		return NotFound
	}
	return Internal
}

var (
	ErrSlotOverlap           = errors.New("slot overlaps an existing slot of this doctor")
	ErrSlotUnavailable       = errors.New("slot is not available")
	ErrPatientDoubleBooked   = errors.New("patient already has an appointment in this time range")
	ErrDuplicateEmail        = errors.New("email is already registered")
	ErrConsultationExists    = errors.New("appointment already has a consultation")
	ErrConsultationAttached  = errors.New("appointment has a consultation")
	ErrSlotBeingModified     = errors.New("doctor schedule is being modified, please retry")
	ErrSlotStateInconsistent = errors.New("slot is unavailable but has no appointments")
)

func notFound(err error) *Error {
	return &Error{Kind: NotFound, Err: err}
}

func conflict(err error) *Error {
	return &Error{Kind: Conflict, Err: err}
}

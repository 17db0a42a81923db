// Package notify turns appointment lifecycle events into outbound messages
// and delivers them off the request path.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindBooked       Kind = "booked"
	KindCancelled    Kind = "cancelled"
	KindCompleted    Kind = "completed"
	KindRescheduled  Kind = "rescheduled"
	KindConsultation Kind = "consultation"
	KindReminder     Kind = "reminder"
)

// Party is one side of an appointment as seen by a notification.
type Party struct {
	Name  string
	Email string
}

// Event describes something that happened to an appointment. Doctor or
// Patient is nil when that actor no longer exists.
type Event struct {
	Kind          Kind
	AppointmentID uuid.UUID
	Start         time.Time
	End           time.Time
	Doctor        *Party
	Patient       *Party
}

// Message is a rendered notification ready for a Sender.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Dispatcher accepts events for delivery. Implementations must not block the
// caller and must never report delivery failures back to it.
type Dispatcher interface {
	Dispatch(ev Event)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ev Event)

func (f DispatcherFunc) Dispatch(ev Event) { f(ev) }

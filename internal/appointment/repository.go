package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrActorNotFound        = errors.New("actor not found")
	ErrSlotNotFound         = errors.New("slot not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrConsultationNotFound = errors.New("consultation not found")
)

// Repository is the persistence boundary of the scheduling core. Reads made
// inside InTx see and lock the rows they return until the unit commits.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Actors
	CreateActor(ctx context.Context, a *Actor) error
	GetActor(ctx context.Context, id uuid.UUID) (*Actor, error)
	GetActorByEmail(ctx context.Context, email string) (*Actor, error)
	ListActors(ctx context.Context) ([]Actor, error)
	// DeleteActor removes the actor, deletes the slots it owns and clears its
	// references on appointments.
	DeleteActor(ctx context.Context, id uuid.UUID) error
	LockActor(ctx context.Context, id uuid.UUID) error

	// Slots
	CreateSlot(ctx context.Context, s *Slot) error
	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	FindSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Slot, error)
	ListDoctorSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error)
	ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error)
	// ListSlotsEnded returns slots starting in [dayStart, dayEnd) whose end is at or before now.
	ListSlotsEnded(ctx context.Context, dayStart, dayEnd, now time.Time) ([]Slot, error)
	UpdateSlot(ctx context.Context, s *Slot) error
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	// Appointments
	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a *Appointment) error
	ListAppointmentsForSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error)
	ListBookedForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListBookedForActor(ctx context.Context, actorID uuid.UUID) ([]Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)
	// ListDueReminders returns booked, not yet reminded appointments starting in [from, to].
	ListDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)

	// Consultations
	CreateConsultation(ctx context.Context, c *Consultation) error
	GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error)
	GetConsultationByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Consultation, error)
	UpdateConsultation(ctx context.Context, c *Consultation) error
	DeleteConsultation(ctx context.Context, id uuid.UUID) error
	ListConsultations(ctx context.Context) ([]Consultation, error)
}

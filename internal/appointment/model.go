package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleDoctor, RolePatient:
		return r, true
	}
	return "", false
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusBooked, StatusCancelled, StatusCompleted:
		return st, true
	}
	return "", false
}

type Actor struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Slot is a window a doctor has published for booking. DoctorID is only nil
// for rows read while the owning doctor is being removed.
type Slot struct {
	ID          uuid.UUID  `json:"id"`
	DoctorID    *uuid.UUID `json:"doctor_id"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	IsAvailable bool       `json:"is_available"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Appointment is tied to its slot by (doctor, start, end) rather than by slot id,
// so it survives the slot being removed.
type Appointment struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  *uuid.UUID `json:"patient_id"`
	DoctorID   *uuid.UUID `json:"doctor_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Status     Status     `json:"status"`
	RemindedAt *time.Time `json:"reminded_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Consultation struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Notes         string    `json:"notes"`
	Prescription  string    `json:"prescription"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type SlotFilter struct {
	DoctorID   *uuid.UUID
	NamePrefix string
	From       *time.Time
	To         *time.Time
	Available  *bool
}

type AppointmentFilter struct {
	PatientID         *uuid.UUID
	DoctorID          *uuid.UUID
	PatientNamePrefix string
	DoctorNamePrefix  string
	From              *time.Time
	To                *time.Time
	Status            string
}

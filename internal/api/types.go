package api

import (
	"time"
)

type CreateActorRequest struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

type SlotRequest struct {
	DoctorID string    `json:"doctor_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type BookAppointmentRequest struct {
	PatientID string    `json:"patient_id"`
	DoctorID  string    `json:"doctor_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

type CreateConsultationRequest struct {
	AppointmentID string `json:"appointment_id"`
	Notes         string `json:"notes"`
	Prescription  string `json:"prescription"`
}

type UpdateConsultationRequest struct {
	Notes        string `json:"notes"`
	Prescription string `json:"prescription"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

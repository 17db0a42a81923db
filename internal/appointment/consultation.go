package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
)

const (
	minNotesLen        = 5
	maxNotesLen        = 500
	minPrescriptionLen = 5
	maxPrescriptionLen = 1000
)

func validateConsultation(notes, prescription string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(notes)); n < minNotesLen || n > maxNotesLen {
		return newError(InvalidInput, "notes must be between %d and %d characters", minNotesLen, maxNotesLen)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(prescription)); n < minPrescriptionLen || n > maxPrescriptionLen {
		return newError(InvalidInput, "prescription must be between %d and %d characters", minPrescriptionLen, maxPrescriptionLen)
	}
	return nil
}

// CreateConsultation records the outcome of an appointment that has started.
func (s *Service) CreateConsultation(ctx context.Context, appointmentID uuid.UUID, notes, prescription string) (*Consultation, error) {
	if err := validateConsultation(notes, prescription); err != nil {
		return nil, err
	}
	pre, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, lookupErr("appointment", err)
	}

	var created *Consultation
	err = s.atomically(ctx, derefID(pre.DoctorID), func(ctx context.Context, u *unit) error {
		appt, err := s.repo.GetAppointment(ctx, appointmentID)
		if err != nil {
			return lookupErr("appointment", err)
		}
		if appt.Status == StatusCancelled {
			return newError(IllegalStateTransition, "appointment %s is cancelled", appointmentID)
		}
		has, err := s.hasConsultation(ctx, appointmentID)
		if err != nil {
			return err
		}
		if has {
			return conflict(ErrConsultationExists)
		}
		now := s.now()
		if now.Before(appt.Start) {
			return newError(IllegalStateTransition, "appointment %s has not started yet", appointmentID)
		}

		c := &Consultation{
			ID:            uuid.New(),
			AppointmentID: appointmentID,
			Notes:         notes,
			Prescription:  prescription,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.CreateConsultation(ctx, c); err != nil {
			if errors.Is(err, ErrConsultationExists) {
				return conflict(err)
			}
			return fmt.Errorf("create consultation: %w", err)
		}

		u.emit(s.event(ctx, notify.KindConsultation, appt))
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("consultation_id", created.ID.String()).Str("appointment_id", appointmentID.String()).
		Msg("consultation recorded")
	return created, nil
}

// UpdateConsultation overwrites notes and prescription.
func (s *Service) UpdateConsultation(ctx context.Context, id uuid.UUID, notes, prescription string) (*Consultation, error) {
	if err := validateConsultation(notes, prescription); err != nil {
		return nil, err
	}

	var updated *Consultation
	err := s.atomically(ctx, uuid.Nil, func(ctx context.Context, _ *unit) error {
		c, err := s.repo.GetConsultation(ctx, id)
		if err != nil {
			return lookupErr("consultation", err)
		}
		c.Notes = notes
		c.Prescription = prescription
		c.UpdatedAt = s.now()
		if err := s.repo.UpdateConsultation(ctx, c); err != nil {
			return lookupErr("consultation", err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteConsultation detaches the consultation from its appointment. The
// appointment status does not change.
func (s *Service) DeleteConsultation(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteConsultation(ctx, id); err != nil {
		return lookupErr("consultation", err)
	}
	s.log.Info().Str("consultation_id", id.String()).Msg("consultation deleted")
	return nil
}

func (s *Service) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := s.repo.GetConsultation(ctx, id)
	if err != nil {
		return nil, lookupErr("consultation", err)
	}
	return c, nil
}

// ListConsultations returns the consultation of one appointment, or all of
// them when appointmentID is nil.
func (s *Service) ListConsultations(ctx context.Context, appointmentID *uuid.UUID) ([]Consultation, error) {
	if appointmentID != nil {
		c, err := s.repo.GetConsultationByAppointment(ctx, *appointmentID)
		if err != nil {
			return nil, lookupErr("consultation", err)
		}
		return []Consultation{*c}, nil
	}

	all, err := s.repo.ListConsultations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	if len(all) == 0 {
		return nil, newError(NotFound, "no consultations found")
	}
	return all, nil
}

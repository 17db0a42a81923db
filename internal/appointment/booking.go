package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
)

// Book reserves the doctor's slot with exactly these bounds for the patient.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, start, end time.Time) (*Appointment, error) {
	start, end = normalize(start), normalize(end)

	var booked *Appointment
	err := s.atomically(ctx, doctorID, func(ctx context.Context, u *unit) error {
		if _, err := s.requireActor(ctx, patientID, RolePatient); err != nil {
			return err
		}
		if _, err := s.requireActor(ctx, doctorID, RoleDoctor); err != nil {
			return err
		}
		if !start.Before(end) {
			return newError(InvalidInput, "start must be before end")
		}
		if !end.After(s.now()) {
			return newError(InvalidInput, "end must be in the future")
		}

		// doctor before patient, always, so concurrent bookings cannot deadlock
		if err := s.repo.LockActor(ctx, doctorID); err != nil {
			return lookupErr("doctor", err)
		}
		slot, err := s.repo.FindSlot(ctx, doctorID, start, end)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				return &Error{Kind: NotFound, Msg: "no slot with these bounds for this doctor", Err: ErrSlotNotFound}
			}
			return fmt.Errorf("load slot: %w", err)
		}
		if !slot.IsAvailable {
			return &Error{Kind: Conflict, Msg: fmt.Sprintf("slot %s", slot.ID), Err: ErrSlotUnavailable}
		}

		if err := s.checkPatientFree(ctx, patientID, uuid.Nil, start, end); err != nil {
			return err
		}

		now := s.now()
		pid, did := patientID, doctorID
		appt := &Appointment{
			ID:        uuid.New(),
			PatientID: &pid,
			DoctorID:  &did,
			Start:     start,
			End:       end,
			Status:    StatusBooked,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateAppointment(ctx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		slot.IsAvailable = false
		slot.UpdatedAt = now
		if err := s.repo.UpdateSlot(ctx, slot); err != nil {
			return fmt.Errorf("reserve slot: %w", err)
		}

		u.emit(s.event(ctx, notify.KindBooked, appt))
		booked = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("appointment_id", booked.ID.String()).Str("patient_id", patientID.String()).
		Str("doctor_id", doctorID.String()).Time("start", booked.Start).Msg("appointment booked")
	return booked, nil
}

// Cancel moves a booked appointment to CANCELLED and releases its slot if
// the appointment has not ended yet.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	pre, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, lookupErr("appointment", err)
	}

	var cancelled *Appointment
	err = s.atomically(ctx, derefID(pre.DoctorID), func(ctx context.Context, u *unit) error {
		appt, err := s.repo.GetAppointment(ctx, id)
		if err != nil {
			return lookupErr("appointment", err)
		}
		if err := s.cancelLocked(ctx, u, appt); err != nil {
			return err
		}
		cancelled = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("appointment_id", id.String()).Msg("appointment cancelled")
	return cancelled, nil
}

func (s *Service) cancelLocked(ctx context.Context, u *unit, appt *Appointment) error {
	has, err := s.hasConsultation(ctx, appt.ID)
	if err != nil {
		return err
	}
	if has {
		return &Error{Kind: IllegalStateTransition, Msg: fmt.Sprintf("appointment %s", appt.ID), Err: ErrConsultationAttached}
	}
	switch appt.Status {
	case StatusCompleted:
		return newError(IllegalStateTransition, "appointment %s is completed and cannot be cancelled", appt.ID)
	case StatusCancelled:
		return newError(IllegalStateTransition, "appointment %s is already cancelled", appt.ID)
	}

	now := s.now()
	appt.Status = StatusCancelled
	appt.UpdatedAt = now
	if err := s.repo.UpdateAppointment(ctx, appt); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	if appt.End.After(now) && appt.DoctorID != nil {
		if err := s.setSlotAvailability(ctx, *appt.DoctorID, appt.Start, appt.End, true); err != nil {
			return err
		}
	}

	u.emit(s.event(ctx, notify.KindCancelled, appt))
	return nil
}

// Complete moves a booked appointment that has started to COMPLETED.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	pre, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, lookupErr("appointment", err)
	}

	var completed *Appointment
	err = s.atomically(ctx, derefID(pre.DoctorID), func(ctx context.Context, u *unit) error {
		appt, err := s.repo.GetAppointment(ctx, id)
		if err != nil {
			return lookupErr("appointment", err)
		}
		switch appt.Status {
		case StatusCancelled:
			return newError(IllegalStateTransition, "appointment %s is cancelled and cannot be completed", id)
		case StatusCompleted:
			return newError(IllegalStateTransition, "appointment %s is already completed", id)
		}
		now := s.now()
		if now.Before(appt.Start) {
			return newError(IllegalStateTransition, "appointment %s has not started yet", id)
		}

		appt.Status = StatusCompleted
		appt.UpdatedAt = now
		if err := s.repo.UpdateAppointment(ctx, appt); err != nil {
			return fmt.Errorf("complete appointment: %w", err)
		}
		if appt.DoctorID != nil {
			if err := s.setSlotAvailability(ctx, *appt.DoctorID, appt.Start, appt.End, false); err != nil {
				return err
			}
		}

		u.emit(s.event(ctx, notify.KindCompleted, appt))
		completed = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("appointment_id", id.String()).Msg("appointment completed")
	return completed, nil
}

// setSlotAvailability updates the slot on (doctor, start, end) if it still exists.
func (s *Service) setSlotAvailability(ctx context.Context, doctorID uuid.UUID, start, end time.Time, available bool) error {
	slot, err := s.repo.FindSlot(ctx, doctorID, start, end)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil
		}
		return fmt.Errorf("load slot: %w", err)
	}
	if slot.IsAvailable == available {
		return nil
	}
	slot.IsAvailable = available
	slot.UpdatedAt = s.now()
	if err := s.repo.UpdateSlot(ctx, slot); err != nil {
		return fmt.Errorf("update slot availability: %w", err)
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, lookupErr("appointment", err)
	}
	return appt, nil
}

// ListAppointments returns matching appointments, latest start first.
func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	if f.Status != "" {
		st, ok := ParseStatus(strings.ToUpper(strings.TrimSpace(f.Status)))
		if !ok {
			return nil, newError(InvalidInput, "unknown appointment status %q", f.Status)
		}
		f.Status = string(st)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, newError(InvalidInput, "range end is before range start")
	}

	appts, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if len(appts) == 0 {
		return nil, newError(NotFound, "no appointments found")
	}
	return appts, nil
}

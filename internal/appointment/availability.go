package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/interval"
	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
)

const (
	MinSlotMinutes = 60
	MaxSlotMinutes = 180
)

func (s *Service) validateSlotBounds(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return newError(InvalidInput, "start and end are required")
	}
	if !start.Before(end) {
		return newError(InvalidInput, "start must be before end")
	}
	if !end.After(s.now()) {
		return newError(InvalidInput, "end must be in the future")
	}
	if !interval.ValidDuration(start, end, MinSlotMinutes, MaxSlotMinutes) {
		return newError(InvalidInput, "slot must last between %d and %d minutes", MinSlotMinutes, MaxSlotMinutes)
	}
	return nil
}

// checkSlotOverlap fails if [start, end) collides with any slot of the doctor
// other than skip.
func (s *Service) checkSlotOverlap(ctx context.Context, doctorID, skip uuid.UUID, start, end time.Time) error {
	slots, err := s.repo.ListDoctorSlots(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("load doctor slots: %w", err)
	}
	for _, other := range slots {
		if other.ID == skip {
			continue
		}
		if interval.Overlaps(start, end, other.Start, other.End) {
			return &Error{Kind: Conflict, Msg: fmt.Sprintf("slot %s", other.ID), Err: ErrSlotOverlap}
		}
	}
	return nil
}

// checkPatientFree locks the patient and fails if any of their booked
// appointments other than skip overlaps [start, end).
func (s *Service) checkPatientFree(ctx context.Context, patientID, skip uuid.UUID, start, end time.Time) error {
	if err := s.repo.LockActor(ctx, patientID); err != nil {
		return lookupErr("patient", err)
	}
	existing, err := s.repo.ListBookedForPatient(ctx, patientID)
	if err != nil {
		return fmt.Errorf("load patient appointments: %w", err)
	}
	for _, other := range existing {
		if other.ID == skip {
			continue
		}
		if interval.Overlaps(start, end, other.Start, other.End) {
			return &Error{Kind: Conflict, Msg: fmt.Sprintf("appointment %s", other.ID), Err: ErrPatientDoubleBooked}
		}
	}
	return nil
}

// CreateSlot publishes a new available slot for a doctor.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Slot, error) {
	start, end = normalize(start), normalize(end)

	var created *Slot
	err := s.atomically(ctx, doctorID, func(ctx context.Context, _ *unit) error {
		if _, err := s.requireActor(ctx, doctorID, RoleDoctor); err != nil {
			return err
		}
		if err := s.validateSlotBounds(start, end); err != nil {
			return err
		}
		if err := s.repo.LockActor(ctx, doctorID); err != nil {
			return lookupErr("doctor", err)
		}
		if err := s.checkSlotOverlap(ctx, doctorID, uuid.Nil, start, end); err != nil {
			return err
		}

		now := s.now()
		doc := doctorID
		slot := &Slot{
			ID:          uuid.New(),
			DoctorID:    &doc,
			Start:       start,
			End:         end,
			IsAvailable: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.CreateSlot(ctx, slot); err != nil {
			return fmt.Errorf("create slot: %w", err)
		}
		created = slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("slot_id", created.ID.String()).Str("doctor_id", doctorID.String()).
		Time("start", created.Start).Time("end", created.End).Msg("slot created")
	return created, nil
}

// EditSlot moves a slot owned by doctorID to new bounds. Booked appointments
// on the old bounds move with it.
func (s *Service) EditSlot(ctx context.Context, slotID, doctorID uuid.UUID, start, end time.Time) (*Slot, error) {
	start, end = normalize(start), normalize(end)

	var updated *Slot
	var moved int
	err := s.atomically(ctx, doctorID, func(ctx context.Context, u *unit) error {
		slot, err := s.repo.GetSlot(ctx, slotID)
		if err != nil {
			return lookupErr("slot", err)
		}
		if !slot.End.After(s.now()) {
			return newError(IllegalStateTransition, "slot %s has already ended", slotID)
		}
		if _, err := s.requireActor(ctx, doctorID, RoleDoctor); err != nil {
			return err
		}
		if !sameID(slot.DoctorID, doctorID) {
			return newError(InvalidInput, "slot %s does not belong to doctor %s", slotID, doctorID)
		}
		if err := s.validateSlotBounds(start, end); err != nil {
			return err
		}
		if err := s.repo.LockActor(ctx, doctorID); err != nil {
			return lookupErr("doctor", err)
		}
		if err := s.checkSlotOverlap(ctx, doctorID, slot.ID, start, end); err != nil {
			return err
		}

		appts, err := s.repo.ListAppointmentsForSlot(ctx, doctorID, slot.Start, slot.End)
		if err != nil {
			return fmt.Errorf("load slot appointments: %w", err)
		}
		for i := range appts {
			if appts[i].Status != StatusBooked || appts[i].PatientID == nil {
				continue
			}
			if err := s.checkPatientFree(ctx, *appts[i].PatientID, appts[i].ID, start, end); err != nil {
				return err
			}
		}

		now := s.now()
		for i := range appts {
			a := &appts[i]
			if a.Status != StatusBooked {
				continue
			}
			a.Start, a.End = start, end
			a.RemindedAt = nil
			a.UpdatedAt = now
			if err := s.repo.UpdateAppointment(ctx, a); err != nil {
				return fmt.Errorf("reschedule appointment %s: %w", a.ID, err)
			}
			u.emit(s.event(ctx, notify.KindRescheduled, a))
			moved++
		}

		slot.Start, slot.End = start, end
		slot.UpdatedAt = now
		if err := s.repo.UpdateSlot(ctx, slot); err != nil {
			return fmt.Errorf("update slot: %w", err)
		}
		updated = slot
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("slot_id", slotID.String()).Str("doctor_id", doctorID.String()).
		Int("rescheduled", moved).Msg("slot updated")
	return updated, nil
}

// DeleteSlot removes a slot, cancelling the booked appointments on it.
func (s *Service) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	pre, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return lookupErr("slot", err)
	}

	var cancelled int
	err = s.atomically(ctx, derefID(pre.DoctorID), func(ctx context.Context, u *unit) error {
		slot, err := s.repo.GetSlot(ctx, slotID)
		if err != nil {
			return lookupErr("slot", err)
		}

		if !slot.IsAvailable && slot.DoctorID != nil {
			appts, err := s.repo.ListAppointmentsForSlot(ctx, *slot.DoctorID, slot.Start, slot.End)
			if err != nil {
				return fmt.Errorf("load slot appointments: %w", err)
			}
			if len(appts) == 0 && slot.End.After(s.now()) {
				return &Error{Kind: DependencyFailure, Msg: fmt.Sprintf("slot %s", slotID), Err: ErrSlotStateInconsistent}
			}

			var booked []*Appointment
			for i := range appts {
				if appts[i].Status != StatusBooked {
					continue
				}
				has, err := s.hasConsultation(ctx, appts[i].ID)
				if err != nil {
					return err
				}
				if has {
					return &Error{Kind: Conflict, Msg: fmt.Sprintf("appointment %s", appts[i].ID), Err: ErrConsultationAttached}
				}
				booked = append(booked, &appts[i])
			}

			now := s.now()
			for _, a := range booked {
				a.Status = StatusCancelled
				a.UpdatedAt = now
				if err := s.repo.UpdateAppointment(ctx, a); err != nil {
					return fmt.Errorf("cancel appointment %s: %w", a.ID, err)
				}
				u.emit(s.event(ctx, notify.KindCancelled, a))
				cancelled++
			}
		}

		if err := s.repo.DeleteSlot(ctx, slot.ID); err != nil {
			return lookupErr("slot", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("slot_id", slotID.String()).Int("cancelled", cancelled).Msg("slot deleted")
	return nil
}

func (s *Service) hasConsultation(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	_, err := s.repo.GetConsultationByAppointment(ctx, appointmentID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrConsultationNotFound):
		return false, nil
	}
	return false, fmt.Errorf("load consultation: %w", err)
}

func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return nil, lookupErr("slot", err)
	}
	return slot, nil
}

// ListSlots returns matching slots ordered by start.
func (s *Service) ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error) {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, newError(InvalidInput, "range end is before range start")
	}
	slots, err := s.repo.ListSlots(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if len(slots) == 0 {
		return nil, newError(NotFound, "no availability slots found")
	}
	return slots, nil
}

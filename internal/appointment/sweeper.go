package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
)

type SweepResult struct {
	Slots     int // slots examined
	Closed    int // available slots flipped to unavailable
	Completed int // appointments completed
	Failed    int // slots whose unit of work failed
}

// ExpireSlots closes today's slots that have ended. Slots nobody booked are
// made unavailable; booked appointments on the others are completed. Each
// slot commits on its own so one failure does not stop the run.
func (s *Service) ExpireSlots(ctx context.Context) (SweepResult, error) {
	now := s.now()
	local := now.In(s.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var res SweepResult
	slots, err := s.repo.ListSlotsEnded(ctx, dayStart, dayEnd, now)
	if err != nil {
		return res, fmt.Errorf("find ended slots: %w", err)
	}
	res.Slots = len(slots)

	for _, candidate := range slots {
		if candidate.DoctorID == nil {
			continue
		}
		closed, completed, err := s.expireSlot(ctx, candidate.ID, *candidate.DoctorID)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			s.log.Error().Err(err).Str("slot_id", candidate.ID.String()).Msg("expire slot")
			continue
		}
		if closed {
			res.Closed++
		}
		res.Completed += completed
	}

	return res, nil
}

func (s *Service) expireSlot(ctx context.Context, slotID, doctorID uuid.UUID) (closed bool, completed int, err error) {
	err = s.atomically(ctx, doctorID, func(ctx context.Context, u *unit) error {
		closed, completed = false, 0

		slot, err := s.repo.GetSlot(ctx, slotID)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				return nil
			}
			return fmt.Errorf("load slot: %w", err)
		}

		now := s.now()
		if slot.IsAvailable {
			slot.IsAvailable = false
			slot.UpdatedAt = now
			if err := s.repo.UpdateSlot(ctx, slot); err != nil {
				return fmt.Errorf("close slot: %w", err)
			}
			closed = true
			return nil
		}

		appts, err := s.repo.ListAppointmentsForSlot(ctx, doctorID, slot.Start, slot.End)
		if err != nil {
			return fmt.Errorf("load slot appointments: %w", err)
		}
		for i := range appts {
			a := &appts[i]
			if a.Status != StatusBooked {
				continue
			}
			a.Status = StatusCompleted
			a.UpdatedAt = now
			if err := s.repo.UpdateAppointment(ctx, a); err != nil {
				return fmt.Errorf("complete appointment %s: %w", a.ID, err)
			}
			u.emit(s.event(ctx, notify.KindCompleted, a))
			completed++
		}
		return nil
	})
	return closed, completed, err
}

// SendReminders notifies both parties of booked appointments starting within
// the reminder window. Each appointment is reminded once.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.ListDueReminders(ctx, now, now.Add(s.cfg.ReminderWindow))
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for _, candidate := range due {
		reminded := false
		err := s.atomically(ctx, derefID(candidate.DoctorID), func(ctx context.Context, u *unit) error {
			appt, err := s.repo.GetAppointment(ctx, candidate.ID)
			if err != nil {
				if errors.Is(err, ErrAppointmentNotFound) {
					return nil
				}
				return fmt.Errorf("load appointment: %w", err)
			}
			if appt.Status != StatusBooked || appt.RemindedAt != nil {
				return nil
			}
			stamp := s.now()
			appt.RemindedAt = &stamp
			appt.UpdatedAt = stamp
			if err := s.repo.UpdateAppointment(ctx, appt); err != nil {
				return fmt.Errorf("stamp reminder: %w", err)
			}
			u.emit(s.event(ctx, notify.KindReminder, appt))
			reminded = true
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			s.log.Error().Err(err).Str("appointment_id", candidate.ID.String()).Msg("send reminder")
			continue
		}
		if reminded {
			sent++
		}
	}
	return sent, nil
}

// Sweeper drives ExpireSlots and SendReminders on their own schedules.
type Sweeper struct {
	svc         *Service
	log         zerolog.Logger
	sweepEvery  time.Duration
	remindEvery time.Duration
	runTimeout  time.Duration
}

func NewSweeper(svc *Service, logger zerolog.Logger, sweepEvery, remindEvery time.Duration) *Sweeper {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	if remindEvery <= 0 {
		remindEvery = time.Hour
	}
	return &Sweeper{
		svc:         svc,
		log:         logger.With().Str("component", "sweeper").Logger(),
		sweepEvery:  sweepEvery,
		remindEvery: remindEvery,
		runTimeout:  20 * time.Second,
	}
}

// Run executes both jobs once, then on every tick until ctx is done.
func (w *Sweeper) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.loop(ctx, w.sweepEvery, w.sweepOnce)
		return nil
	})
	g.Go(func() error {
		w.loop(ctx, w.remindEvery, w.remindOnce)
		return nil
	})
	return g.Wait()
}

func (w *Sweeper) loop(ctx context.Context, every time.Duration, run func(context.Context)) {
	run(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

func (w *Sweeper) sweepOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	start := time.Now()
	res, err := w.svc.ExpireSlots(runCtx)
	if err != nil {
		w.log.Error().Err(err).Msg("slot sweep failed")
		return
	}
	w.log.Info().
		Int("slots", res.Slots).
		Int("closed", res.Closed).
		Int("completed", res.Completed).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("slot sweep complete")
}

func (w *Sweeper) remindOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	start := time.Now()
	n, err := w.svc.SendReminders(runCtx)
	if err != nil {
		w.log.Error().Err(err).Msg("reminder run failed")
		return
	}
	w.log.Info().Int("reminded", n).Dur("took", time.Since(start)).Msg("reminder run complete")
}

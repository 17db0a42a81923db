package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier notify.Dispatcher
	log      zerolog.Logger
	cfg      config.Config
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier notify.Dispatcher, logger zerolog.Logger, cfg config.Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = 2 * time.Hour
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      logger.With().Str("component", "scheduling").Logger(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// unit collects what a mutation wants to announce once it has committed.
type unit struct {
	events []notify.Event
}

func (u *unit) emit(ev notify.Event) {
	u.events = append(u.events, ev)
}

// atomically runs fn under the schedule lock of doctorID (none for uuid.Nil)
// and inside one repository transaction.
func (s *Service) atomically(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, u *unit) error) error {
	var ids []uuid.UUID
	if doctorID != uuid.Nil {
		ids = []uuid.UUID{doctorID}
	}
	return s.atomicallyFor(ctx, ids, fn)
}

// atomicallyFor takes the locks of several doctors in a fixed order before
// opening the transaction.
func (s *Service) atomicallyFor(ctx context.Context, doctorIDs []uuid.UUID, fn func(ctx context.Context, u *unit) error) error {
	ids := uniqueSorted(doctorIDs)
	u := &unit{}

	run := func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(txCtx context.Context) error {
			return fn(txCtx, u)
		})
	}
	for i := len(ids) - 1; i >= 0; i-- {
		id, inner := ids[i], run
		run = func(ctx context.Context) error {
			return s.locker.WithDoctorLock(ctx, id, inner)
		}
	}

	if err := run(ctx); err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return conflict(ErrSlotBeingModified)
		}
		return err
	}

	for _, ev := range u.events {
		s.notifier.Dispatch(ev)
	}
	return nil
}

func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// requireActor loads id and checks it has the expected role.
func (s *Service) requireActor(ctx context.Context, id uuid.UUID, role Role) (*Actor, error) {
	a, err := s.repo.GetActor(ctx, id)
	if err != nil {
		if errors.Is(err, ErrActorNotFound) {
			return nil, &Error{Kind: NotFound, Msg: fmt.Sprintf("%s %s", roleLabel(role), id), Err: ErrActorNotFound}
		}
		return nil, fmt.Errorf("load %s: %w", roleLabel(role), err)
	}
	if a.Role != role {
		return nil, newError(InvalidInput, "actor %s is not a %s", id, roleLabel(role))
	}
	return a, nil
}

func roleLabel(r Role) string {
	if r == RoleDoctor {
		return "doctor"
	}
	return "patient"
}

// event builds a notification for appt. Actors that cannot be loaded are
// left out of the recipients.
func (s *Service) event(ctx context.Context, kind notify.Kind, appt *Appointment) notify.Event {
	ev := notify.Event{
		Kind:          kind,
		AppointmentID: appt.ID,
		Start:         appt.Start,
		End:           appt.End,
		Doctor:        s.party(ctx, appt.DoctorID),
		Patient:       s.party(ctx, appt.PatientID),
	}
	return ev
}

func (s *Service) party(ctx context.Context, id *uuid.UUID) *notify.Party {
	if id == nil {
		return nil
	}
	a, err := s.repo.GetActor(ctx, *id)
	if err != nil {
		if !errors.Is(err, ErrActorNotFound) {
			s.log.Warn().Err(err).Str("actor_id", id.String()).Msg("load notification recipient")
		}
		return nil
	}
	return &notify.Party{Name: a.Name, Email: a.Email}
}

func lookupErr(what string, err error) error {
	switch {
	case errors.Is(err, ErrActorNotFound), errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrConsultationNotFound):
		return notFound(err)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// normalize drops precision the database cannot store so exact-bound
// lookups keep matching after a round trip.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func derefID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func sameID(a *uuid.UUID, b uuid.UUID) bool {
	return a != nil && *a == b
}

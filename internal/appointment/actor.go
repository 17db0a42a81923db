package appointment

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// RegisterActor adds a doctor or patient to the directory.
func (s *Service) RegisterActor(ctx context.Context, name, role, email string) (*Actor, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, newError(InvalidInput, "name is required")
	}
	r, ok := ParseRole(strings.ToUpper(strings.TrimSpace(role)))
	if !ok {
		return nil, newError(InvalidInput, "role must be DOCTOR or PATIENT")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, newError(InvalidInput, "email %q is not a valid address", email)
	}

	if _, err := s.repo.GetActorByEmail(ctx, email); err == nil {
		return nil, conflict(ErrDuplicateEmail)
	} else if !errors.Is(err, ErrActorNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	now := s.now()
	a := &Actor{
		ID:        uuid.New(),
		Name:      name,
		Role:      r,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateActor(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, conflict(err)
		}
		return nil, fmt.Errorf("create actor: %w", err)
	}

	s.log.Info().Str("actor_id", a.ID.String()).Str("role", string(a.Role)).Msg("actor registered")
	return a, nil
}

func (s *Service) GetActor(ctx context.Context, id uuid.UUID) (*Actor, error) {
	a, err := s.repo.GetActor(ctx, id)
	if err != nil {
		return nil, lookupErr("actor", err)
	}
	return a, nil
}

func (s *Service) GetActorByEmail(ctx context.Context, email string) (*Actor, error) {
	a, err := s.repo.GetActorByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, lookupErr("actor", err)
	}
	return a, nil
}

func (s *Service) ListActors(ctx context.Context) ([]Actor, error) {
	actors, err := s.repo.ListActors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	if len(actors) == 0 {
		return nil, newError(NotFound, "no actors found")
	}
	return actors, nil
}

// DeleteActor cancels the actor's booked appointments, then removes the
// actor. Appointment history is kept with the reference cleared; a doctor's
// slots go with them.
func (s *Service) DeleteActor(ctx context.Context, id uuid.UUID) error {
	actor, err := s.repo.GetActor(ctx, id)
	if err != nil {
		return lookupErr("actor", err)
	}

	pending, err := s.repo.ListBookedForActor(ctx, id)
	if err != nil {
		return fmt.Errorf("load booked appointments: %w", err)
	}
	doctors := make([]uuid.UUID, 0, len(pending)+1)
	if actor.Role == RoleDoctor {
		doctors = append(doctors, id)
	}
	for _, a := range pending {
		doctors = append(doctors, derefID(a.DoctorID))
	}

	var cancelled int
	err = s.atomicallyFor(ctx, doctors, func(ctx context.Context, u *unit) error {
		if err := s.repo.LockActor(ctx, id); err != nil {
			return lookupErr("actor", err)
		}
		booked, err := s.repo.ListBookedForActor(ctx, id)
		if err != nil {
			return fmt.Errorf("load booked appointments: %w", err)
		}
		for i := range booked {
			if err := s.cancelLocked(ctx, u, &booked[i]); err != nil {
				return err
			}
			cancelled++
		}
		if err := s.repo.DeleteActor(ctx, id); err != nil {
			return lookupErr("actor", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("actor_id", id.String()).Int("cancelled", cancelled).Msg("actor deleted")
	return nil
}

package appointment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process memory. Transactions are
// serialized and roll back to a snapshot on error. Tests use it in place of
// PgRepository.
type MemoryRepository struct {
	mu sync.Mutex
	st *memState
}

type memState struct {
	actors        map[uuid.UUID]Actor
	slots         map[uuid.UUID]Slot
	appointments  map[uuid.UUID]Appointment
	consultations map[uuid.UUID]Consultation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{st: &memState{
		actors:        make(map[uuid.UUID]Actor),
		slots:         make(map[uuid.UUID]Slot),
		appointments:  make(map[uuid.UUID]Appointment),
		consultations: make(map[uuid.UUID]Consultation),
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		actors:        make(map[uuid.UUID]Actor, len(s.actors)),
		slots:         make(map[uuid.UUID]Slot, len(s.slots)),
		appointments:  make(map[uuid.UUID]Appointment, len(s.appointments)),
		consultations: make(map[uuid.UUID]Consultation, len(s.consultations)),
	}
	for k, v := range s.actors {
		c.actors[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.consultations {
		c.consultations[k] = v
	}
	return c
}

type memTxKey struct{}

func (r *MemoryRepository) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memTxKey{}).(*MemoryRepository)
	return owner == r
}

// lock takes the repository mutex unless ctx already runs inside one of our
// transactions, which holds it.
func (r *MemoryRepository) lock(ctx context.Context) func() {
	if r.inTx(ctx) {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.inTx(ctx) {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.st.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, r)); err != nil {
		r.st = snapshot
		return err
	}
	return nil
}

func hasPrefixFold(name, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(name), strings.ToLower(strings.TrimSpace(prefix)))
}

// Actors

func (r *MemoryRepository) CreateActor(ctx context.Context, a *Actor) error {
	defer r.lock(ctx)()
	for _, other := range r.st.actors {
		if strings.EqualFold(other.Email, a.Email) {
			return ErrDuplicateEmail
		}
	}
	r.st.actors[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetActor(ctx context.Context, id uuid.UUID) (*Actor, error) {
	defer r.lock(ctx)()
	a, ok := r.st.actors[id]
	if !ok {
		return nil, ErrActorNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) GetActorByEmail(ctx context.Context, email string) (*Actor, error) {
	defer r.lock(ctx)()
	for _, a := range r.st.actors {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, ErrActorNotFound
}

func (r *MemoryRepository) ListActors(ctx context.Context) ([]Actor, error) {
	defer r.lock(ctx)()
	out := make([]Actor, 0, len(r.st.actors))
	for _, a := range r.st.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MemoryRepository) DeleteActor(ctx context.Context, id uuid.UUID) error {
	defer r.lock(ctx)()
	if _, ok := r.st.actors[id]; !ok {
		return ErrActorNotFound
	}
	for sid, s := range r.st.slots {
		if sameID(s.DoctorID, id) {
			delete(r.st.slots, sid)
		}
	}
	for aid, a := range r.st.appointments {
		changed := false
		if sameID(a.PatientID, id) {
			a.PatientID = nil
			changed = true
		}
		if sameID(a.DoctorID, id) {
			a.DoctorID = nil
			changed = true
		}
		if changed {
			r.st.appointments[aid] = a
		}
	}
	delete(r.st.actors, id)
	return nil
}

func (r *MemoryRepository) LockActor(ctx context.Context, id uuid.UUID) error {
	defer r.lock(ctx)()
	if _, ok := r.st.actors[id]; !ok {
		return ErrActorNotFound
	}
	return nil
}

// Slots

func (r *MemoryRepository) CreateSlot(ctx context.Context, s *Slot) error {
	defer r.lock(ctx)()
	r.st.slots[s.ID] = *s
	return nil
}

func (r *MemoryRepository) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	defer r.lock(ctx)()
	s, ok := r.st.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) FindSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Slot, error) {
	defer r.lock(ctx)()
	for _, s := range r.sortedSlots() {
		if sameID(s.DoctorID, doctorID) && s.Start.Equal(start) && s.End.Equal(end) {
			return &s, nil
		}
	}
	return nil, ErrSlotNotFound
}

func (r *MemoryRepository) sortedSlots() []Slot {
	out := make([]Slot, 0, len(r.st.slots))
	for _, s := range r.st.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *MemoryRepository) ListDoctorSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	defer r.lock(ctx)()
	var out []Slot
	for _, s := range r.sortedSlots() {
		if sameID(s.DoctorID, doctorID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error) {
	defer r.lock(ctx)()
	var out []Slot
	for _, s := range r.sortedSlots() {
		if s.DoctorID == nil {
			continue
		}
		if f.DoctorID != nil && *s.DoctorID != *f.DoctorID {
			continue
		}
		if strings.TrimSpace(f.NamePrefix) != "" {
			d, ok := r.st.actors[*s.DoctorID]
			if !ok || !hasPrefixFold(d.Name, f.NamePrefix) {
				continue
			}
		}
		if f.From != nil && s.Start.Before(*f.From) {
			continue
		}
		if f.To != nil && s.End.After(*f.To) {
			continue
		}
		if f.Available != nil && s.IsAvailable != *f.Available {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *MemoryRepository) ListSlotsEnded(ctx context.Context, dayStart, dayEnd, now time.Time) ([]Slot, error) {
	defer r.lock(ctx)()
	var out []Slot
	for _, s := range r.sortedSlots() {
		if !s.Start.Before(dayStart) && s.Start.Before(dayEnd) && !s.End.After(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRepository) UpdateSlot(ctx context.Context, s *Slot) error {
	defer r.lock(ctx)()
	if _, ok := r.st.slots[s.ID]; !ok {
		return ErrSlotNotFound
	}
	r.st.slots[s.ID] = *s
	return nil
}

func (r *MemoryRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	defer r.lock(ctx)()
	if _, ok := r.st.slots[id]; !ok {
		return ErrSlotNotFound
	}
	delete(r.st.slots, id)
	return nil
}

// Appointments

func (r *MemoryRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	defer r.lock(ctx)()
	r.st.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	defer r.lock(ctx)()
	a, ok := r.st.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) UpdateAppointment(ctx context.Context, a *Appointment) error {
	defer r.lock(ctx)()
	cur, ok := r.st.appointments[a.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	cur.Start, cur.End = a.Start, a.End
	cur.Status = a.Status
	cur.RemindedAt = a.RemindedAt
	cur.UpdatedAt = a.UpdatedAt
	r.st.appointments[a.ID] = cur
	return nil
}

func (r *MemoryRepository) filterAppointments(keep func(a Appointment) bool, newestFirst bool) []Appointment {
	var out []Appointment
	for _, a := range r.st.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			if newestFirst {
				return out[i].Start.After(out[j].Start)
			}
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *MemoryRepository) ListAppointmentsForSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	defer r.lock(ctx)()
	return r.filterAppointments(func(a Appointment) bool {
		return sameID(a.DoctorID, doctorID) && a.Start.Equal(start) && a.End.Equal(end)
	}, false), nil
}

func (r *MemoryRepository) ListBookedForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	defer r.lock(ctx)()
	return r.filterAppointments(func(a Appointment) bool {
		return a.Status == StatusBooked && sameID(a.PatientID, patientID)
	}, false), nil
}

func (r *MemoryRepository) ListBookedForActor(ctx context.Context, actorID uuid.UUID) ([]Appointment, error) {
	defer r.lock(ctx)()
	return r.filterAppointments(func(a Appointment) bool {
		return a.Status == StatusBooked && (sameID(a.PatientID, actorID) || sameID(a.DoctorID, actorID))
	}, false), nil
}

func (r *MemoryRepository) actorNameHasPrefix(id *uuid.UUID, prefix string) bool {
	if id == nil {
		return false
	}
	a, ok := r.st.actors[*id]
	return ok && hasPrefixFold(a.Name, prefix)
}

func (r *MemoryRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	defer r.lock(ctx)()
	return r.filterAppointments(func(a Appointment) bool {
		if f.PatientID != nil && !sameID(a.PatientID, *f.PatientID) {
			return false
		}
		if f.DoctorID != nil && !sameID(a.DoctorID, *f.DoctorID) {
			return false
		}
		if strings.TrimSpace(f.PatientNamePrefix) != "" && !r.actorNameHasPrefix(a.PatientID, f.PatientNamePrefix) {
			return false
		}
		if strings.TrimSpace(f.DoctorNamePrefix) != "" && !r.actorNameHasPrefix(a.DoctorID, f.DoctorNamePrefix) {
			return false
		}
		if f.From != nil && a.Start.Before(*f.From) {
			return false
		}
		if f.To != nil && a.End.After(*f.To) {
			return false
		}
		if f.Status != "" && string(a.Status) != f.Status {
			return false
		}
		return true
	}, true), nil
}

func (r *MemoryRepository) ListDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	defer r.lock(ctx)()
	return r.filterAppointments(func(a Appointment) bool {
		return a.Status == StatusBooked && a.RemindedAt == nil &&
			!a.Start.Before(from) && !a.Start.After(to)
	}, false), nil
}

// Consultations

func (r *MemoryRepository) CreateConsultation(ctx context.Context, c *Consultation) error {
	defer r.lock(ctx)()
	for _, other := range r.st.consultations {
		if other.AppointmentID == c.AppointmentID {
			return ErrConsultationExists
		}
	}
	r.st.consultations[c.ID] = *c
	return nil
}

func (r *MemoryRepository) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	defer r.lock(ctx)()
	c, ok := r.st.consultations[id]
	if !ok {
		return nil, ErrConsultationNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) GetConsultationByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Consultation, error) {
	defer r.lock(ctx)()
	for _, c := range r.st.consultations {
		if c.AppointmentID == appointmentID {
			return &c, nil
		}
	}
	return nil, ErrConsultationNotFound
}

func (r *MemoryRepository) UpdateConsultation(ctx context.Context, c *Consultation) error {
	defer r.lock(ctx)()
	if _, ok := r.st.consultations[c.ID]; !ok {
		return ErrConsultationNotFound
	}
	r.st.consultations[c.ID] = *c
	return nil
}

func (r *MemoryRepository) DeleteConsultation(ctx context.Context, id uuid.UUID) error {
	defer r.lock(ctx)()
	if _, ok := r.st.consultations[id]; !ok {
		return ErrConsultationNotFound
	}
	delete(r.st.consultations, id)
	return nil
}

func (r *MemoryRepository) ListConsultations(ctx context.Context) ([]Consultation, error) {
	defer r.lock(ctx)()
	out := make([]Consultation, 0, len(r.st.consultations))
	for _, c := range r.st.consultations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

var _ Repository = (*MemoryRepository)(nil)
var _ Repository = (*PgRepository)(nil)

// day is the reference date for every test: 2026-03-02 08:00 UTC.
var day = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) Dispatch(ev notify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []notify.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]notify.Kind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	repo   *MemoryRepository
	svc    *Service
	events *eventLog

	mu  sync.Mutex
	now time.Time
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithRepo(t, NewMemoryRepository())
}

func newHarnessWithRepo(t *testing.T, repo Repository) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		ctx:    context.Background(),
		events: &eventLog{},
		now:    day,
	}
	if mem, ok := repo.(*MemoryRepository); ok {
		h.repo = mem
	}
	cfg := config.Config{Location: time.UTC, ReminderWindow: 2 * time.Hour}
	h.svc = NewService(repo, redisclient.NewLocalLocker(), h.events, zerolog.Nop(), cfg)
	h.svc.now = h.clock
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) setNow(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = t
}

// at returns the reference day at hh:mm.
func at(hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

func (h *harness) doctor(name string) *Actor {
	h.t.Helper()
	a, err := h.svc.RegisterActor(h.ctx, name, "DOCTOR", uuid.NewString()[:8]+"@clinic.test")
	if err != nil {
		h.t.Fatalf("register doctor: %v", err)
	}
	return a
}

func (h *harness) patient(name string) *Actor {
	h.t.Helper()
	a, err := h.svc.RegisterActor(h.ctx, name, "PATIENT", uuid.NewString()[:8]+"@mail.test")
	if err != nil {
		h.t.Fatalf("register patient: %v", err)
	}
	return a
}

func (h *harness) slot(doctor *Actor, start, end time.Time) *Slot {
	h.t.Helper()
	s, err := h.svc.CreateSlot(h.ctx, doctor.ID, start, end)
	if err != nil {
		h.t.Fatalf("create slot: %v", err)
	}
	return s
}

func (h *harness) book(patient, doctor *Actor, start, end time.Time) *Appointment {
	h.t.Helper()
	a, err := h.svc.Book(h.ctx, patient.ID, doctor.ID, start, end)
	if err != nil {
		h.t.Fatalf("book: %v", err)
	}
	return a
}

func (h *harness) slotState(id uuid.UUID) *Slot {
	h.t.Helper()
	s, err := h.repo.GetSlot(h.ctx, id)
	if err != nil {
		h.t.Fatalf("load slot: %v", err)
	}
	return s
}

func (h *harness) apptState(id uuid.UUID) *Appointment {
	h.t.Helper()
	a, err := h.repo.GetAppointment(h.ctx, id)
	if err != nil {
		h.t.Fatalf("load appointment: %v", err)
	}
	return a
}

func expectKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s: %v", want, got, err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{newError(Conflict, "x"), Conflict},
		{ErrSlotNotFound, NotFound},
		{notFound(ErrAppointmentNotFound), NotFound},
		{errors.New("boom"), Internal},
		{conflict(ErrSlotBeingModified), Conflict},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	err := &Error{Kind: Conflict, Msg: "slot 1", Err: ErrSlotOverlap}
	if !errors.Is(err, ErrSlotOverlap) {
		t.Error("Error should unwrap to its cause")
	}
	if err.Error() != "slot 1: "+ErrSlotOverlap.Error() {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestUniqueSorted(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got := uniqueSorted([]uuid.UUID{b, uuid.Nil, a, b})
	if len(got) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(got))
	}
	if got[0].String() > got[1].String() {
		t.Error("ids should be sorted")
	}
}

type contendedLocker struct{}

func (contendedLocker) WithDoctorLock(context.Context, uuid.UUID, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func TestAtomically_LockContentionIsConflict(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	h.svc.locker = contendedLocker{}

	_, err := h.svc.CreateSlot(h.ctx, doc.ID, at(10, 0), at(11, 0))
	expectKind(t, err, Conflict)
	if !errors.Is(err, ErrSlotBeingModified) {
		t.Errorf("expected ErrSlotBeingModified, got %v", err)
	}
}

func TestConcurrentBookingsOfOneSlot(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	h.slot(doc, at(10, 0), at(11, 0))

	const n = 12
	patients := make([]*Actor, n)
	for i := range patients {
		patients[i] = h.patient("Patient")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	success, conflicts := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(p *Actor) {
			defer wg.Done()
			_, err := h.svc.Book(h.ctx, p.ID, doc.ID, at(10, 0), at(11, 0))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case KindOf(err) == Conflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(patients[i])
	}
	wg.Wait()

	if success != 1 || conflicts != n-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", n-1, success, conflicts)
	}
}

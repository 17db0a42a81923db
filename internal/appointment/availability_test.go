package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
)

func TestCreateSlot(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")

	s := h.slot(doc, at(10, 0), at(11, 0))
	if !s.IsAvailable {
		t.Error("new slot should be available")
	}
	if !sameID(s.DoctorID, doc.ID) {
		t.Error("slot should belong to the doctor")
	}
}

func TestCreateSlot_Validation(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	pat := h.patient("Ana")

	tests := []struct {
		name     string
		doctorID uuid.UUID
		start    int // minutes after 10:00
		end      int
		want     Kind
	}{
		{"unknown doctor", uuid.New(), 0, 60, NotFound},
		{"patient as doctor", pat.ID, 0, 60, InvalidInput},
		{"start equals end", doc.ID, 0, 0, InvalidInput},
		{"start after end", doc.ID, 60, 0, InvalidInput},
		{"too short", doc.ID, 0, 59, InvalidInput},
		{"too long", doc.ID, 0, 181, InvalidInput},
		{"in the past", doc.ID, -180, -120, InvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateSlot(h.ctx, tt.doctorID, at(10, tt.start), at(10, tt.end))
			expectKind(t, err, tt.want)
		})
	}
}

func TestCreateSlot_Bounds(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")

	h.slot(doc, at(9, 0), at(10, 0))  // 60 minutes
	h.slot(doc, at(12, 0), at(15, 0)) // 180 minutes
}

func TestCreateSlot_Overlap(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	other := h.doctor("Shepherd")
	h.slot(doc, at(10, 0), at(11, 0))

	_, err := h.svc.CreateSlot(h.ctx, doc.ID, at(10, 30), at(11, 30))
	expectKind(t, err, Conflict)
	if !errors.Is(err, ErrSlotOverlap) {
		t.Errorf("expected ErrSlotOverlap, got %v", err)
	}

	// touching boundaries are fine
	h.slot(doc, at(11, 0), at(12, 0))
	// other doctors are independent
	h.slot(other, at(10, 0), at(11, 0))

	slots, _ := h.repo.ListDoctorSlots(h.ctx, doc.ID)
	if len(slots) != 2 {
		t.Errorf("expected 2 slots for doctor, got %d", len(slots))
	}
}

func TestEditSlot_ReschedulesBookedAppointments(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	pat := h.patient("Ana")
	s := h.slot(doc, at(10, 0), at(11, 0))
	appt := h.book(pat, doc, at(10, 0), at(11, 0))

	stamp := at(8, 0)
	appt.RemindedAt = &stamp
	if err := h.repo.UpdateAppointment(h.ctx, appt); err != nil {
		t.Fatal(err)
	}
	h.events.reset()

	updated, err := h.svc.EditSlot(h.ctx, s.ID, doc.ID, at(13, 0), at(14, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.Start.Equal(at(13, 0)) || !updated.End.Equal(at(14, 30)) {
		t.Errorf("slot bounds not updated: %v - %v", updated.Start, updated.End)
	}
	if updated.IsAvailable {
		t.Error("editing must not change availability")
	}

	got := h.apptState(appt.ID)
	if !got.Start.Equal(at(13, 0)) || !got.End.Equal(at(14, 30)) {
		t.Errorf("appointment not moved: %v - %v", got.Start, got.End)
	}
	if got.RemindedAt != nil {
		t.Error("reschedule should clear the reminder stamp")
	}
	if kinds := h.events.kinds(); len(kinds) != 1 || kinds[0] != notify.KindRescheduled {
		t.Errorf("expected one rescheduled notification, got %v", kinds)
	}
}

func TestEditSlot_InPlaceIgnoresItself(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	s := h.slot(doc, at(10, 0), at(11, 0))

	if _, err := h.svc.EditSlot(h.ctx, s.ID, doc.ID, at(10, 0), at(11, 30)); err != nil {
		t.Fatalf("extending a slot over its own range should work: %v", err)
	}
}

func TestEditSlot_PatientDoubleBooked(t *testing.T) {
	h := newHarness(t)
	grey := h.doctor("Grey")
	house := h.doctor("House")
	pat := h.patient("Ana")
	s := h.slot(grey, at(10, 0), at(11, 0))
	h.slot(house, at(13, 0), at(14, 0))
	appt := h.book(pat, grey, at(10, 0), at(11, 0))
	h.book(pat, house, at(13, 0), at(14, 0))
	h.events.reset()

	_, err := h.svc.EditSlot(h.ctx, s.ID, grey.ID, at(13, 0), at(14, 0))
	expectKind(t, err, Conflict)
	if !errors.Is(err, ErrPatientDoubleBooked) {
		t.Errorf("expected ErrPatientDoubleBooked, got %v", err)
	}

	if got := h.slotState(s.ID); !got.Start.Equal(at(10, 0)) {
		t.Errorf("slot should keep its bounds, starts at %v", got.Start)
	}
	if got := h.apptState(appt.ID); !got.Start.Equal(at(10, 0)) {
		t.Errorf("appointment should not move, starts at %v", got.Start)
	}
	if kinds := h.events.kinds(); len(kinds) != 0 {
		t.Errorf("expected no notifications, got %v", kinds)
	}

	// moving next to the other appointment is fine
	if _, err := h.svc.EditSlot(h.ctx, s.ID, grey.ID, at(14, 0), at(15, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// lockRecorder remembers which actor rows were locked.
type lockRecorder struct {
	*MemoryRepository
	locked []uuid.UUID
}

func (r *lockRecorder) LockActor(ctx context.Context, id uuid.UUID) error {
	r.locked = append(r.locked, id)
	return r.MemoryRepository.LockActor(ctx, id)
}

func TestEditSlot_LocksDoctorAndPatients(t *testing.T) {
	repo := &lockRecorder{MemoryRepository: NewMemoryRepository()}
	h := newHarnessWithRepo(t, repo)
	h.repo = repo.MemoryRepository

	doc := h.doctor("Grey")
	pat := h.patient("Ana")
	s := h.slot(doc, at(10, 0), at(11, 0))
	h.book(pat, doc, at(10, 0), at(11, 0))
	repo.locked = nil

	if _, err := h.svc.EditSlot(h.ctx, s.ID, doc.ID, at(12, 0), at(13, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.locked) != 2 || repo.locked[0] != doc.ID || repo.locked[1] != pat.ID {
		t.Errorf("expected doctor then patient locked, got %v", repo.locked)
	}
}

func TestEditSlot_Rejections(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	other := h.doctor("Shepherd")
	s := h.slot(doc, at(10, 0), at(11, 0))
	h.slot(doc, at(12, 0), at(13, 0))

	_, err := h.svc.EditSlot(h.ctx, uuid.New(), doc.ID, at(10, 0), at(11, 0))
	expectKind(t, err, NotFound)

	_, err = h.svc.EditSlot(h.ctx, s.ID, other.ID, at(14, 0), at(15, 0))
	expectKind(t, err, InvalidInput)

	_, err = h.svc.EditSlot(h.ctx, s.ID, doc.ID, at(12, 30), at(13, 30))
	expectKind(t, err, Conflict)

	_, err = h.svc.EditSlot(h.ctx, s.ID, doc.ID, at(14, 0), at(14, 30))
	expectKind(t, err, InvalidInput)

	h.setNow(at(11, 0))
	_, err = h.svc.EditSlot(h.ctx, s.ID, doc.ID, at(14, 0), at(15, 0))
	expectKind(t, err, IllegalStateTransition)
}

func TestDeleteSlot_Available(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	s := h.slot(doc, at(10, 0), at(11, 0))

	if err := h.svc.DeleteSlot(h.ctx, s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := h.svc.GetSlot(h.ctx, s.ID)
	expectKind(t, err, NotFound)

	expectKind(t, h.svc.DeleteSlot(h.ctx, s.ID), NotFound)
}

func TestDeleteSlot_CancelsBookedAppointments(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	pat := h.patient("Ana")
	s := h.slot(doc, at(10, 0), at(11, 0))
	appt := h.book(pat, doc, at(10, 0), at(11, 0))
	h.events.reset()

	if err := h.svc.DeleteSlot(h.ctx, s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.apptState(appt.ID); got.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}
	if kinds := h.events.kinds(); len(kinds) != 1 || kinds[0] != notify.KindCancelled {
		t.Errorf("expected one cancelled notification, got %v", kinds)
	}
}

func TestDeleteSlot_ConsultationBlocksAndChangesNothing(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	pat := h.patient("Ana")
	s := h.slot(doc, at(10, 0), at(11, 0))
	appt := h.book(pat, doc, at(10, 0), at(11, 0))

	h.setNow(at(10, 15))
	if _, err := h.svc.CreateConsultation(h.ctx, appt.ID, "Mild fever", "Paracetamol 500mg"); err != nil {
		t.Fatalf("create consultation: %v", err)
	}
	h.events.reset()

	err := h.svc.DeleteSlot(h.ctx, s.ID)
	expectKind(t, err, Conflict)

	if got := h.apptState(appt.ID); got.Status != StatusBooked {
		t.Errorf("appointment should stay BOOKED, got %s", got.Status)
	}
	if _, err := h.repo.GetSlot(h.ctx, s.ID); err != nil {
		t.Errorf("slot should still exist: %v", err)
	}
	if len(h.events.kinds()) != 0 {
		t.Error("failed delete must not notify")
	}
}

func TestDeleteSlot_UnavailableWithoutAppointments(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	s := h.slot(doc, at(10, 0), at(11, 0))
	s.IsAvailable = false
	if err := h.repo.UpdateSlot(h.ctx, s); err != nil {
		t.Fatal(err)
	}

	err := h.svc.DeleteSlot(h.ctx, s.ID)
	expectKind(t, err, DependencyFailure)

	// once the slot has ended the orphaned state is harmless
	h.setNow(at(12, 0))
	if err := h.svc.DeleteSlot(h.ctx, s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListSlots(t *testing.T) {
	h := newHarness(t)
	grey := h.doctor("Meredith Grey")
	shep := h.doctor("Derek Shepherd")
	pat := h.patient("Ana")
	h.slot(grey, at(14, 0), at(15, 0))
	h.slot(grey, at(10, 0), at(11, 0))
	h.slot(shep, at(12, 0), at(13, 0))
	h.book(pat, grey, at(14, 0), at(15, 0))

	all, err := h.svc.ListSlots(h.ctx, SlotFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || !all[0].Start.Equal(at(10, 0)) || !all[2].Start.Equal(at(14, 0)) {
		t.Errorf("expected 3 slots ordered by start, got %+v", all)
	}

	byName, err := h.svc.ListSlots(h.ctx, SlotFilter{NamePrefix: "  mer "})
	if err != nil || len(byName) != 2 {
		t.Errorf("name prefix: expected 2 slots, got %d (%v)", len(byName), err)
	}

	available := true
	open, err := h.svc.ListSlots(h.ctx, SlotFilter{DoctorID: &grey.ID, Available: &available})
	if err != nil || len(open) != 1 || !open[0].Start.Equal(at(10, 0)) {
		t.Errorf("available filter: got %+v (%v)", open, err)
	}

	from, to := at(11, 30), at(13, 0)
	ranged, err := h.svc.ListSlots(h.ctx, SlotFilter{From: &from, To: &to})
	if err != nil || len(ranged) != 1 || !sameID(ranged[0].DoctorID, shep.ID) {
		t.Errorf("range filter: got %+v (%v)", ranged, err)
	}

	_, err = h.svc.ListSlots(h.ctx, SlotFilter{NamePrefix: "zzz"})
	expectKind(t, err, NotFound)

	_, err = h.svc.ListSlots(h.ctx, SlotFilter{From: &to, To: &from})
	expectKind(t, err, InvalidInput)
}

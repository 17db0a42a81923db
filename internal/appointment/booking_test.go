package appointment

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
)

func TestBook(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	pat := h.patient("Ana")
	s := h.slot(doc, at(10, 0), at(11, 0))

	appt := h.book(pat, doc, at(10, 0), at(11, 0))
	if appt.Status != StatusBooked {
		t.Errorf("expected BOOKED, got %s", appt.Status)
	}
	if !sameID(appt.PatientID, pat.ID) || !sameID(appt.DoctorID, doc.ID) {
		t.Error("appointment should reference both actors")
	}
	if h.slotState(s.ID).IsAvailable {
		t.Error("booked slot should be unavailable")
	}

	kinds := h.events.kinds()
	if len(kinds) != 1 || kinds[0] != notify.KindBooked {
		t.Fatalf("expected one booked notification, got %v", kinds)
	}
	ev := h.events.events[0]
	if ev.Doctor == nil || ev.Patient == nil || ev.Patient.Email != pat.Email {
		t.Errorf("notification should carry both parties, got %+v", ev)
	}
}

func TestBook_Rejections(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	pat := h.patient("Ana")
	h.slot(doc, at(10, 0), at(11, 0))

	_, err := h.svc.Book(h.ctx, uuid.New(), doc.ID, at(10, 0), at(11, 0))
	expectKind(t, err, NotFound)

	_, err = h.svc.Book(h.ctx, doc.ID, doc.ID, at(10, 0), at(11, 0))
	expectKind(t, err, InvalidInput)

	_, err = h.svc.Book(h.ctx, pat.ID, pat.ID, at(10, 0), at(11, 0))
	expectKind(t, err, InvalidInput)

	_, err = h.svc.Book(h.ctx, pat.ID, uuid.New(), at(10, 0), at(11, 0))
	expectKind(t, err, NotFound)

	// bounds must match a slot exactly
	_, err = h.svc.Book(h.ctx, pat.ID, doc.ID, at(10, 0), at(10, 30))
	expectKind(t, err, NotFound)

	h.setNow(at(11, 0))
	_, err = h.svc.Book(h.ctx, pat.ID, doc.ID, at(10, 0), at(11, 0))
	expectKind(t, err, InvalidInput)
}

func TestBook_SlotTaken(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	h.slot(doc, at(10, 0), at(11, 0))
	h.book(h.patient("Ana"), doc, at(10, 0), at(11, 0))

	_, err := h.svc.Book(h.ctx, h.patient("Ben").ID, doc.ID, at(10, 0), at(11, 0))
	expectKind(t, err, Conflict)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable, got %v", err)
	}
}

func TestBook_PatientDoubleBooked(t *testing.T) {
	h := newHarness(t)
	grey := h.doctor("Grey")
	shep := h.doctor("Shepherd")
	house := h.doctor("House")
	pat := h.patient("Ana")
	h.slot(grey, at(10, 0), at(11, 0))
	h.slot(shep, at(10, 30), at(11, 30))
	h.slot(house, at(11, 0), at(12, 0))

	h.book(pat, grey, at(10, 0), at(11, 0))

	_, err := h.svc.Book(h.ctx, pat.ID, shep.ID, at(10, 30), at(11, 30))
	expectKind(t, err, Conflict)
	if !errors.Is(err, ErrPatientDoubleBooked) {
		t.Errorf("expected ErrPatientDoubleBooked, got %v", err)
	}

	// back to back is fine
	next := h.book(pat, house, at(11, 0), at(12, 0))
	if next.Status != StatusBooked {
		t.Errorf("expected BOOKED, got %s", next.Status)
	}
	booked, err := h.repo.ListBookedForPatient(h.ctx, pat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(booked) != 2 {
		t.Errorf("expected 2 booked appointments, got %d", len(booked))
	}
}

func TestBook_FailureLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	pat := h.patient("Ana")
	h.slot(doc, at(10, 0), at(11, 0))
	h.events.reset()

	_, err := h.svc.Book(h.ctx, pat.ID, doc.ID, at(10, 0), at(10, 45))
	expectKind(t, err, NotFound)

	all, _ := h.repo.ListAppointments(h.ctx, AppointmentFilter{})
	if len(all) != 0 {
		t.Errorf("expected no appointments, got %d", len(all))
	}
	if len(h.events.kinds()) != 0 {
		t.Error("failed booking must not notify")
	}
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	pat := h.patient("Ana")
	s := h.slot(doc, at(10, 0), at(11, 0))
	appt := h.book(pat, doc, at(10, 0), at(11, 0))
	h.events.reset()

	got, err := h.svc.Cancel(h.ctx, appt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Status)
	}
	if !h.slotState(s.ID).IsAvailable {
		t.Error("cancelling a future appointment should free the slot")
	}
	if kinds := h.events.kinds(); len(kinds) != 1 || kinds[0] != notify.KindCancelled {
		t.Errorf("expected cancelled notification, got %v", kinds)
	}

	_, err = h.svc.Cancel(h.ctx, appt.ID)
	expectKind(t, err, IllegalStateTransition)

	_, err = h.svc.Cancel(h.ctx, uuid.New())
	expectKind(t, err, NotFound)
}

func TestCancel_AfterEndKeepsSlotClosed(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	s := h.slot(doc, at(10, 0), at(11, 0))
	appt := h.book(h.patient("Ana"), doc, at(10, 0), at(11, 0))

	h.setNow(at(11, 0))
	if _, err := h.svc.Cancel(h.ctx, appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.slotState(s.ID).IsAvailable {
		t.Error("slot of an ended appointment must stay unavailable")
	}
}

func TestCancel_WithConsultation(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	h.slot(doc, at(10, 0), at(11, 0))
	appt := h.book(h.patient("Ana"), doc, at(10, 0), at(11, 0))

	h.setNow(at(10, 30))
	if _, err := h.svc.CreateConsultation(h.ctx, appt.ID, "Follow up", "Rest and fluids"); err != nil {
		t.Fatal(err)
	}

	_, err := h.svc.Cancel(h.ctx, appt.ID)
	expectKind(t, err, IllegalStateTransition)
	if !errors.Is(err, ErrConsultationAttached) {
		t.Errorf("expected ErrConsultationAttached, got %v", err)
	}
	if got := h.apptState(appt.ID); got.Status != StatusBooked {
		t.Errorf("status should be unchanged, got %s", got.Status)
	}
}

func TestComplete(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	s := h.slot(doc, at(10, 0), at(11, 0))
	appt := h.book(h.patient("Ana"), doc, at(10, 0), at(11, 0))

	_, err := h.svc.Complete(h.ctx, appt.ID)
	expectKind(t, err, IllegalStateTransition)

	h.setNow(at(10, 0))
	h.events.reset()
	got, err := h.svc.Complete(h.ctx, appt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", got.Status)
	}
	if h.slotState(s.ID).IsAvailable {
		t.Error("completed appointment's slot should be unavailable")
	}
	if kinds := h.events.kinds(); len(kinds) != 1 || kinds[0] != notify.KindCompleted {
		t.Errorf("expected completed notification, got %v", kinds)
	}

	_, err = h.svc.Complete(h.ctx, appt.ID)
	expectKind(t, err, IllegalStateTransition)

	_, err = h.svc.Cancel(h.ctx, appt.ID)
	expectKind(t, err, IllegalStateTransition)
}

func TestComplete_Cancelled(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	h.slot(doc, at(10, 0), at(11, 0))
	appt := h.book(h.patient("Ana"), doc, at(10, 0), at(11, 0))
	if _, err := h.svc.Cancel(h.ctx, appt.ID); err != nil {
		t.Fatal(err)
	}

	h.setNow(at(10, 30))
	_, err := h.svc.Complete(h.ctx, appt.ID)
	expectKind(t, err, IllegalStateTransition)
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	h := newHarness(t)
	doc := h.doctor("Grey")
	h.slot(doc, at(10, 0), at(11, 0))
	first := h.book(h.patient("Ana"), doc, at(10, 0), at(11, 0))
	if _, err := h.svc.Cancel(h.ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	second := h.book(h.patient("Ben"), doc, at(10, 0), at(11, 0))
	if second.ID == first.ID {
		t.Error("rebooking should create a new appointment")
	}
}

func TestListAppointments(t *testing.T) {
	h := newHarness(t)
	grey := h.doctor("Meredith Grey")
	shep := h.doctor("Derek Shepherd")
	ana := h.patient("Ana Lima")
	ben := h.patient("Ben Warren")
	h.slot(grey, at(10, 0), at(11, 0))
	h.slot(shep, at(12, 0), at(13, 0))
	h.slot(grey, at(14, 0), at(15, 0))

	a1 := h.book(ana, grey, at(10, 0), at(11, 0))
	h.book(ben, shep, at(12, 0), at(13, 0))
	h.book(ana, grey, at(14, 0), at(15, 0))
	if _, err := h.svc.Cancel(h.ctx, a1.ID); err != nil {
		t.Fatal(err)
	}

	all, err := h.svc.ListAppointments(h.ctx, AppointmentFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || !all[0].Start.Equal(at(14, 0)) || !all[2].Start.Equal(at(10, 0)) {
		t.Errorf("expected 3 appointments latest first, got %+v", all)
	}

	byPatient, err := h.svc.ListAppointments(h.ctx, AppointmentFilter{PatientNamePrefix: "ana"})
	if err != nil || len(byPatient) != 2 {
		t.Errorf("patient prefix: expected 2, got %d (%v)", len(byPatient), err)
	}

	booked, err := h.svc.ListAppointments(h.ctx, AppointmentFilter{DoctorID: &grey.ID, Status: "booked"})
	if err != nil || len(booked) != 1 || !booked[0].Start.Equal(at(14, 0)) {
		t.Errorf("status filter: got %+v (%v)", booked, err)
	}

	_, err = h.svc.ListAppointments(h.ctx, AppointmentFilter{Status: "LOST"})
	expectKind(t, err, InvalidInput)

	_, err = h.svc.ListAppointments(h.ctx, AppointmentFilter{DoctorNamePrefix: "house"})
	expectKind(t, err, NotFound)
}

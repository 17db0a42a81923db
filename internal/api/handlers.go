package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func bodyID(w http.ResponseWriter, field, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// queryFilters reads optional query parameters. The first malformed one
// stops parsing and is reported as a 400.
type queryFilters struct {
	r   *http.Request
	err error
}

func (q *queryFilters) id(name string) *uuid.UUID {
	raw := q.r.URL.Query().Get(name)
	if raw == "" || q.err != nil {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		q.err = fmt.Errorf("%s must be a valid UUID", name)
		return nil
	}
	return &id
}

func (q *queryFilters) instant(name string) *time.Time {
	raw := q.r.URL.Query().Get(name)
	if raw == "" || q.err != nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		q.err = fmt.Errorf("%s must be an RFC 3339 timestamp", name)
		return nil
	}
	return &t
}

func (q *queryFilters) flag(name string) *bool {
	raw := q.r.URL.Query().Get(name)
	if raw == "" || q.err != nil {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.err = fmt.Errorf("%s must be true or false", name)
		return nil
	}
	return &b
}

func (q *queryFilters) str(name string) string {
	return strings.TrimSpace(q.r.URL.Query().Get(name))
}

// actors

func createActorHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateActorRequest
		if !decodeBody(w, r, &req) {
			return
		}
		a, err := svc.RegisterActor(r.Context(), req.Name, req.Role, req.Email)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

func listActorsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actors, err := svc.ListActors(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, actors)
	}
}

func getActorHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		a, err := svc.GetActor(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func getActorByEmailHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if strings.TrimSpace(email) == "" {
			writeError(w, http.StatusBadRequest, "invalid_email", "email query parameter is required")
			return
		}
		a, err := svc.GetActorByEmail(r.Context(), email)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func deleteActorHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteActor(r.Context(), id); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// availabilities

func createSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SlotRequest
		if !decodeBody(w, r, &req) {
			return
		}
		doctorID, ok := bodyID(w, "doctor_id", req.DoctorID)
		if !ok {
			return
		}
		s, err := svc.CreateSlot(r.Context(), doctorID, req.Start, req.End)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

func listSlotsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := &queryFilters{r: r}
		f := appointment.SlotFilter{
			DoctorID:   q.id("doctor_id"),
			NamePrefix: q.str("doctor_name"),
			From:       q.instant("from"),
			To:         q.instant("to"),
			Available:  q.flag("available"),
		}
		if q.err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
			return
		}
		slots, err := svc.ListSlots(r.Context(), f)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, slots)
	}
}

func getSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		s, err := svc.GetSlot(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func editSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req SlotRequest
		if !decodeBody(w, r, &req) {
			return
		}
		doctorID, ok := bodyID(w, "doctor_id", req.DoctorID)
		if !ok {
			return
		}
		s, err := svc.EditSlot(r.Context(), id, doctorID, req.Start, req.End)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func deleteSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteSlot(r.Context(), id); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// appointments

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		patientID, ok := bodyID(w, "patient_id", req.PatientID)
		if !ok {
			return
		}
		doctorID, ok := bodyID(w, "doctor_id", req.DoctorID)
		if !ok {
			return
		}
		appt, err := svc.Book(r.Context(), patientID, doctorID, req.Start, req.End)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := &queryFilters{r: r}
		f := appointment.AppointmentFilter{
			PatientID:         q.id("patient_id"),
			DoctorID:          q.id("doctor_id"),
			PatientNamePrefix: q.str("patient_name"),
			DoctorNamePrefix:  q.str("doctor_name"),
			From:              q.instant("from"),
			To:                q.instant("to"),
			Status:            q.str("status"),
		}
		if q.err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
			return
		}
		appts, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appts)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		appt, err := svc.Complete(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

// consultations

func createConsultationHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateConsultationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		apptID, ok := bodyID(w, "appointment_id", req.AppointmentID)
		if !ok {
			return
		}
		c, err := svc.CreateConsultation(r.Context(), apptID, req.Notes, req.Prescription)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func listConsultationsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := &queryFilters{r: r}
		apptID := q.id("appointment_id")
		if q.err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
			return
		}
		list, err := svc.ListConsultations(r.Context(), apptID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getConsultationHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		c, err := svc.GetConsultation(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func updateConsultationHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req UpdateConsultationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		c, err := svc.UpdateConsultation(r.Context(), id, req.Notes, req.Prescription)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func deleteConsultationHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := svc.DeleteConsultation(r.Context(), id); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

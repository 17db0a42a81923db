package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// errorStatus maps a failure kind to its HTTP status and error code.
func errorStatus(kind appointment.Kind) (int, string) {
	switch kind {
	case appointment.NotFound:
		return http.StatusNotFound, "not_found"
	case appointment.InvalidInput:
		return http.StatusBadRequest, "invalid_input"
	case appointment.Conflict:
		return http.StatusConflict, "conflict"
	case appointment.IllegalStateTransition:
		return http.StatusUnprocessableEntity, "illegal_state_transition"
	case appointment.DependencyFailure:
		return http.StatusFailedDependency, "dependency_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(appointment.KindOf(err))
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

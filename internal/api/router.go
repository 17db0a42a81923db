package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service

	r.Route("/actors", func(r chi.Router) {
		r.Post("/", createActorHandler(svc))
		r.Get("/", listActorsHandler(svc))
		r.Get("/by-email", getActorByEmailHandler(svc))
		r.Get("/{id}", getActorHandler(svc))
		r.Delete("/{id}", deleteActorHandler(svc))
	})

	r.Route("/availabilities", func(r chi.Router) {
		r.Post("/", createSlotHandler(svc))
		r.Get("/", listSlotsHandler(svc))
		r.Get("/{id}", getSlotHandler(svc))
		r.Put("/{id}", editSlotHandler(svc))
		r.Delete("/{id}", deleteSlotHandler(svc))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(svc))
		r.Get("/", listAppointmentsHandler(svc))
		r.Get("/{id}", getAppointmentHandler(svc))
		r.Post("/{id}/cancel", cancelAppointmentHandler(svc))
		r.Post("/{id}/complete", completeAppointmentHandler(svc))
	})

	r.Route("/consultations", func(r chi.Router) {
		r.Post("/", createConsultationHandler(svc))
		r.Get("/", listConsultationsHandler(svc))
		r.Get("/{id}", getConsultationHandler(svc))
		r.Put("/{id}", updateConsultationHandler(svc))
		r.Delete("/{id}", deleteConsultationHandler(svc))
	})

	return r
}

package app

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
)

func TestNewSender(t *testing.T) {
	s, err := newSender(config.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*notify.LogSender); !ok {
		t.Errorf("expected log sender when smtp is disabled, got %T", s)
	}

	cfg := config.Config{SMTP: config.SMTPConfig{Enabled: true, Host: "smtp.clinic.test", Port: 587, From: "noreply@clinic.test"}}
	s, err = newSender(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*notify.SMTPSender); !ok {
		t.Errorf("expected smtp sender, got %T", s)
	}

	cfg.SMTP.Host = ""
	if _, err := newSender(cfg, zerolog.Nop()); err == nil {
		t.Error("expected an error without a host")
	}
}

func TestClose_Partial(t *testing.T) {
	rt := &Runtime{log: zerolog.Nop()}
	rt.Close()
}

package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

const signature = "Best Regards,\nHealthcare Appointment System"

type audience int

const (
	toPatient audience = iota
	toDoctor
)

type templateSet struct {
	subject string
	patient *template.Template
	doctor  *template.Template // nil when only the patient is told
}

var templates = map[Kind]templateSet{
	KindBooked: {
		subject: "Appointment Booked",
		patient: mustParse("booked.patient", `Dear {{.Recipient}},

Your appointment {{.ID}} with Dr. {{.Counterpart}} is booked for {{.Date}} from {{.StartTime}} to {{.EndTime}}.`),
		doctor: mustParse("booked.doctor", `Dear Dr. {{.Recipient}},

{{.Counterpart}} has booked appointment {{.ID}} with you on {{.Date}} from {{.StartTime}} to {{.EndTime}}.`),
	},
	KindCancelled: {
		subject: "Appointment Cancelled",
		patient: mustParse("cancelled.patient", `Dear {{.Recipient}},

Your appointment {{.ID}} with Dr. {{.Counterpart}} on {{.Date}} from {{.StartTime}} to {{.EndTime}} has been cancelled.`),
		doctor: mustParse("cancelled.doctor", `Dear Dr. {{.Recipient}},

Appointment {{.ID}} with {{.Counterpart}} on {{.Date}} from {{.StartTime}} to {{.EndTime}} has been cancelled.`),
	},
	KindCompleted: {
		subject: "Appointment Completed",
		patient: mustParse("completed.patient", `Dear {{.Recipient}},

Your appointment {{.ID}} with Dr. {{.Counterpart}} on {{.Date}} from {{.StartTime}} to {{.EndTime}} is now completed. Thank you for visiting.`),
		doctor: mustParse("completed.doctor", `Dear Dr. {{.Recipient}},

Appointment {{.ID}} with {{.Counterpart}} on {{.Date}} from {{.StartTime}} to {{.EndTime}} is marked as completed.`),
	},
	KindRescheduled: {
		subject: "Appointment Rescheduled",
		patient: mustParse("rescheduled.patient", `Dear {{.Recipient}},

Your appointment {{.ID}} with Dr. {{.Counterpart}} has been moved to {{.Date}} from {{.StartTime}} to {{.EndTime}}.`),
	},
	KindConsultation: {
		subject: "Consultation Given",
		patient: mustParse("consultation.patient", `Dear {{.Recipient}},

Dr. {{.Counterpart}} has recorded the consultation for your appointment {{.ID}} on {{.Date}}. You can review the notes and prescription in your records.`),
	},
	KindReminder: {
		subject: "Reminder: Upcoming Appointment",
		patient: mustParse("reminder.patient", `Dear {{.Recipient}},

This is a reminder of your appointment {{.ID}} with Dr. {{.Counterpart}} on {{.Date}} from {{.StartTime}} to {{.EndTime}}.`),
		doctor: mustParse("reminder.doctor", `Dear Dr. {{.Recipient}},

This is a reminder of appointment {{.ID}} with {{.Counterpart}} on {{.Date}} from {{.StartTime}} to {{.EndTime}}.`),
	},
}

func mustParse(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(body + "\n\n" + signature + "\n"))
}

type view struct {
	Recipient   string
	Counterpart string
	ID          string
	Date        string
	StartTime   string
	EndTime     string
}

// Renderer builds the messages for an event, one per reachable recipient.
type Renderer struct {
	loc *time.Location
}

func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{loc: loc}
}

func (r *Renderer) Render(ev Event) ([]Message, error) {
	set, ok := templates[ev.Kind]
	if !ok {
		return nil, fmt.Errorf("no template for notification kind %q", ev.Kind)
	}

	var msgs []Message
	if ev.Patient != nil && ev.Patient.Email != "" {
		m, err := r.render(set, set.patient, ev, toPatient)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if set.doctor != nil && ev.Doctor != nil && ev.Doctor.Email != "" {
		m, err := r.render(set, set.doctor, ev, toDoctor)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *Renderer) render(set templateSet, tmpl *template.Template, ev Event, to audience) (Message, error) {
	recipient, counterpart := ev.Patient, ev.Doctor
	if to == toDoctor {
		recipient, counterpart = ev.Doctor, ev.Patient
	}

	v := view{
		Recipient: recipient.Name,
		ID:        ev.AppointmentID.String(),
		Date:      ev.Start.In(r.loc).Format("2006-01-02"),
		StartTime: ev.Start.In(r.loc).Format("03:04:05 PM"),
		EndTime:   ev.End.In(r.loc).Format("03:04:05 PM"),
	}
	if counterpart != nil {
		v.Counterpart = counterpart.Name
	} else {
		v.Counterpart = "(removed)"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}

	return Message{
		To:      []string{recipient.Email},
		Subject: set.subject,
		Body:    buf.String(),
	}, nil
}

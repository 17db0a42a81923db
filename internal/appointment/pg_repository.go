package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, r.pool, fn)
}

func (r *PgRepository) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// forUpdate locks selected rows when running inside a transaction.
func forUpdate(ctx context.Context) string {
	if db.TxFromContext(ctx) != nil {
		return " FOR UPDATE"
	}
	return ""
}

const (
	actorColumns        = `id, name, role, email, created_at, updated_at`
	slotColumns         = `id, doctor_id, start_time, end_time, is_available, created_at, updated_at`
	appointmentColumns  = `id, patient_id, doctor_id, start_time, end_time, status, reminded_at, created_at, updated_at`
	consultationColumns = `id, appointment_id, notes, prescription, created_at, updated_at`
)

// Helpers

func scanActor(row pgx.Row) (*Actor, error) {
	var a Actor
	err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Email, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrActorNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.Start, &s.End, &s.IsAvailable, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Start, &a.End, &a.Status,
		&a.RemindedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.AppointmentID, &c.Notes, &c.Prescription, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConsultationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// likePrefix turns a user supplied prefix into a case-insensitive LIKE pattern.
func likePrefix(prefix string) string {
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return esc.Replace(strings.ToLower(strings.TrimSpace(prefix))) + "%"
}

type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Actors

func (r *PgRepository) CreateActor(ctx context.Context, a *Actor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO actors (id, name, role, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.Name, a.Role, a.Email, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

func (r *PgRepository) GetActor(ctx context.Context, id uuid.UUID) (*Actor, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = $1`, id)
	return scanActor(row)
}

func (r *PgRepository) GetActorByEmail(ctx context.Context, email string) (*Actor, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE lower(email) = lower($1)`, email)
	return scanActor(row)
}

func (r *PgRepository) ListActors(ctx context.Context) ([]Actor, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+actorColumns+` FROM actors ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	return collect(rows, scanActor)
}

// DeleteActor relies on the foreign keys: slots cascade, appointment
// references are set to NULL.
func (r *PgRepository) DeleteActor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM actors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete actor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrActorNotFound
	}
	return nil
}

func (r *PgRepository) LockActor(ctx context.Context, id uuid.UUID) error {
	if db.TxFromContext(ctx) == nil {
		return nil
	}
	var got uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM actors WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrActorNotFound
	}
	return err
}

// Slots

func (r *PgRepository) CreateSlot(ctx context.Context, s *Slot) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO availability_slots (id, doctor_id, start_time, end_time, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.DoctorID, s.Start, s.End, s.IsAvailable, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+slotColumns+` FROM availability_slots WHERE id = $1`+forUpdate(ctx), id)
	return scanSlot(row)
}

func (r *PgRepository) FindSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Slot, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1 AND start_time = $2 AND end_time = $3
		ORDER BY created_at
		LIMIT 1`+forUpdate(ctx), doctorID, start, end)
	return scanSlot(row)
}

func (r *PgRepository) ListDoctorSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1
		ORDER BY start_time`+forUpdate(ctx), doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor slots: %w", err)
	}
	return collect(rows, scanSlot)
}

func (r *PgRepository) ListSlots(ctx context.Context, f SlotFilter) ([]Slot, error) {
	var w whereBuilder
	if f.DoctorID != nil {
		w.add("s.doctor_id = $%d", *f.DoctorID)
	}
	if strings.TrimSpace(f.NamePrefix) != "" {
		w.add(`lower(d.name) LIKE $%d ESCAPE '\'`, likePrefix(f.NamePrefix))
	}
	if f.From != nil {
		w.add("s.start_time >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("s.end_time <= $%d", *f.To)
	}
	if f.Available != nil {
		w.add("s.is_available = $%d", *f.Available)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.id, s.doctor_id, s.start_time, s.end_time, s.is_available, s.created_at, s.updated_at
		FROM availability_slots s
		JOIN actors d ON d.id = s.doctor_id`+w.String()+`
		ORDER BY s.start_time, s.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return collect(rows, scanSlot)
}

func (r *PgRepository) ListSlotsEnded(ctx context.Context, dayStart, dayEnd, now time.Time) ([]Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE start_time >= $1 AND start_time < $2 AND end_time <= $3
		ORDER BY start_time`, dayStart, dayEnd, now)
	if err != nil {
		return nil, fmt.Errorf("list ended slots: %w", err)
	}
	return collect(rows, scanSlot)
}

func (r *PgRepository) UpdateSlot(ctx context.Context, s *Slot) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE availability_slots
		SET start_time = $2, end_time = $3, is_available = $4, updated_at = $5
		WHERE id = $1
	`, s.ID, s.Start, s.End, s.IsAvailable, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, start_time, end_time, status, reminded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.PatientID, a.DoctorID, a.Start, a.End, a.Status, a.RemindedAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`+forUpdate(ctx), id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET start_time = $2, end_time = $3, status = $4, reminded_at = $5, updated_at = $6
		WHERE id = $1
	`, a.ID, a.Start, a.End, a.Status, a.RemindedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListAppointmentsForSlot(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND start_time = $2 AND end_time = $3
		ORDER BY created_at`+forUpdate(ctx), doctorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list appointments for slot: %w", err)
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) ListBookedForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND status = 'BOOKED'
		ORDER BY start_time`+forUpdate(ctx), patientID)
	if err != nil {
		return nil, fmt.Errorf("list booked appointments for patient: %w", err)
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) ListBookedForActor(ctx context.Context, actorID uuid.UUID) ([]Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE (patient_id = $1 OR doctor_id = $1) AND status = 'BOOKED'
		ORDER BY start_time`+forUpdate(ctx), actorID)
	if err != nil {
		return nil, fmt.Errorf("list booked appointments for actor: %w", err)
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	var w whereBuilder
	if f.PatientID != nil {
		w.add("a.patient_id = $%d", *f.PatientID)
	}
	if f.DoctorID != nil {
		w.add("a.doctor_id = $%d", *f.DoctorID)
	}
	if strings.TrimSpace(f.PatientNamePrefix) != "" {
		w.add(`lower(p.name) LIKE $%d ESCAPE '\'`, likePrefix(f.PatientNamePrefix))
	}
	if strings.TrimSpace(f.DoctorNamePrefix) != "" {
		w.add(`lower(d.name) LIKE $%d ESCAPE '\'`, likePrefix(f.DoctorNamePrefix))
	}
	if f.From != nil {
		w.add("a.start_time >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("a.end_time <= $%d", *f.To)
	}
	if f.Status != "" {
		w.add("a.status = $%d", f.Status)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.patient_id, a.doctor_id, a.start_time, a.end_time, a.status, a.reminded_at, a.created_at, a.updated_at
		FROM appointments a
		LEFT JOIN actors p ON p.id = a.patient_id
		LEFT JOIN actors d ON d.id = a.doctor_id`+w.String()+`
		ORDER BY a.start_time DESC, a.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collect(rows, scanAppointment)
}

func (r *PgRepository) ListDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'BOOKED' AND reminded_at IS NULL AND start_time >= $1 AND start_time <= $2
		ORDER BY start_time`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return collect(rows, scanAppointment)
}

// Consultations

func (r *PgRepository) CreateConsultation(ctx context.Context, c *Consultation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultations (id, appointment_id, notes, prescription, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.AppointmentID, c.Notes, c.Prescription, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrConsultationExists
		}
		return fmt.Errorf("insert consultation: %w", err)
	}
	return nil
}

func (r *PgRepository) GetConsultation(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE id = $1`+forUpdate(ctx), id)
	return scanConsultation(row)
}

func (r *PgRepository) GetConsultationByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Consultation, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE appointment_id = $1`, appointmentID)
	return scanConsultation(row)
}

func (r *PgRepository) UpdateConsultation(ctx context.Context, c *Consultation) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultations SET notes = $2, prescription = $3, updated_at = $4 WHERE id = $1
	`, c.ID, c.Notes, c.Prescription, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update consultation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConsultationNotFound
	}
	return nil
}

func (r *PgRepository) DeleteConsultation(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM consultations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete consultation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConsultationNotFound
	}
	return nil
}

func (r *PgRepository) ListConsultations(ctx context.Context) ([]Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+consultationColumns+` FROM consultations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	return collect(rows, scanConsultation)
}

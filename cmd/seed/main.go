package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logging"
)

type seedOptions struct {
	doctors     int
	patients    int
	slotMinutes int
	dayStart    int // first slot hour, local time
	dayEnd      int // no slot ends after this hour
}

func main() {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Fill the database with fake doctors, patients and next week's slots",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().IntVar(&opts.doctors, "doctors", 50, "Number of doctors")
	cmd.Flags().IntVar(&opts.patients, "patients", 2000, "Number of patients")
	cmd.Flags().IntVar(&opts.slotMinutes, "slot-minutes", 60, "Length of each slot (60-180)")
	cmd.Flags().IntVar(&opts.dayStart, "day-start", 9, "Hour the first slot starts")
	cmd.Flags().IntVar(&opts.dayEnd, "day-end", 17, "Hour the last slot ends")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts seedOptions) error {
	if opts.slotMinutes < 60 || opts.slotMinutes > 180 {
		return fmt.Errorf("slot-minutes must be between 60 and 180")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	logger := logging.New("seed", cfg.Env, cfg.LogLevel)
	logger.Info().Int("doctors", opts.doctors).Int("patients", opts.patients).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := gofakeit.Seed(time.Now().UnixNano()); err != nil {
		return err
	}

	doctors, err := seedDoctors(ctx, pool, logger, opts.doctors)
	if err != nil {
		return fmt.Errorf("seed doctors: %w", err)
	}
	if err := seedPatients(ctx, pool, logger, opts.patients); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}

	grid := weekGrid(time.Now().In(cfg.Location), opts.dayStart, opts.dayEnd, time.Duration(opts.slotMinutes)*time.Minute)
	if err := seedSlots(ctx, pool, logger, doctors, grid); err != nil {
		return fmt.Errorf("seed slots: %w", err)
	}

	logger.Info().Msg("seed complete")
	return nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, count int) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		first, last := gofakeit.FirstName(), gofakeit.LastName()
		email := fmt.Sprintf("%s.%s.%d@clinic.test", strings.ToLower(first), strings.ToLower(last), i)

		_, err := tx.Exec(ctx, `
			INSERT INTO actors (id, name, role, email, created_at, updated_at)
			VALUES ($1, $2, 'DOCTOR', $3, now(), now())
		`, id, "Dr. "+first+" "+last, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	logger.Info().Int("count", len(ids)).Msg("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, count int) error {
	const batchSize = 500

	inserted := int64(0)
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			batch.Queue(`
				INSERT INTO actors (id, name, role, email, created_at, updated_at)
				VALUES ($1, $2, 'PATIENT', $3, now(), now())
				ON CONFLICT (email) DO NOTHING
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
		}

		results := pool.SendBatch(ctx, batch)
		for i := offset; i < end; i++ {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return err
			}
			inserted += tag.RowsAffected()
		}
		if err := results.Close(); err != nil {
			return err
		}

		logger.Info().Int("progress", end).Int("total", count).Msg("patients seeded")
	}

	logger.Info().Int64("inserted", inserted).Msg("patients seeded")
	return nil
}

type window struct {
	start, end time.Time
}

// weekGrid returns back-to-back windows for every weekday of the week after
// ref, between the given local hours.
func weekGrid(ref time.Time, fromHour, toHour int, length time.Duration) []window {
	loc := ref.Location()
	daysToMonday := (8 - int(ref.Weekday())) % 7
	if daysToMonday == 0 {
		daysToMonday = 7
	}
	monday := time.Date(ref.Year(), ref.Month(), ref.Day()+daysToMonday, 0, 0, 0, 0, loc)

	var out []window
	for d := 0; d < 5; d++ {
		day := monday.AddDate(0, 0, d)
		closing := day.Add(time.Duration(toHour) * time.Hour)
		for start := day.Add(time.Duration(fromHour) * time.Hour); !start.Add(length).After(closing); start = start.Add(length) {
			out = append(out, window{start: start.UTC(), end: start.Add(length).UTC()})
		}
	}
	return out
}

func seedSlots(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, doctors []uuid.UUID, grid []window) error {
	for _, doctorID := range doctors {
		batch := &pgx.Batch{}
		for _, w := range grid {
			batch.Queue(`
				INSERT INTO availability_slots (id, doctor_id, start_time, end_time, is_available, created_at, updated_at)
				VALUES ($1, $2, $3, $4, TRUE, now(), now())
			`, uuid.New(), doctorID, w.start, w.end)
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	logger.Info().Int("doctors", len(doctors)).Int("per_doctor", len(grid)).Msg("slots seeded")
	return nil
}

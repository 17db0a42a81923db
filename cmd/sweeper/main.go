package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-appointment-scheduling/internal/app"
	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logging"
)

func main() {
	var once bool
	cmd := &cobra.Command{
		Use:          "sweeper",
		Short:        "Close ended slots, complete past appointments and send reminders",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single sweep and reminder pass, then exit")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(once bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	logger := logging.New("sweeper", cfg.Env, cfg.LogLevel)
	logger.Info().
		Dur("sweep_interval", cfg.SweepInterval).
		Dur("reminder_interval", cfg.ReminderInterval).
		Str("timezone", cfg.Location.String()).
		Msg("sweeper starting")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(rootCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if once {
		ctx, cancel := context.WithTimeout(rootCtx, time.Minute)
		defer cancel()
		res, err := rt.Service.ExpireSlots(ctx)
		if err != nil {
			return err
		}
		n, err := rt.Service.SendReminders(ctx)
		if err != nil {
			return err
		}
		logger.Info().Int("closed", res.Closed).Int("completed", res.Completed).
			Int("failed", res.Failed).Int("reminded", n).Msg("single pass complete")
		return nil
	}

	if err := appointment.NewSweeper(rt.Service, logger, cfg.SweepInterval, cfg.ReminderInterval).Run(rootCtx); err != nil {
		return err
	}
	logger.Info().Msg("shutdown signal received, sweeper stopped")
	return nil
}

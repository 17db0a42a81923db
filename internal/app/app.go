// Package app wires configuration into a running scheduling service. It is
// shared by the api-server and sweeper commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

type Runtime struct {
	Service *appointment.Service
	Pool    *pgxpool.Pool
	Redis   *redis.Client // nil when REDIS_ENABLED is false

	dispatcher *notify.AsyncDispatcher
	log        zerolog.Logger
}

// Open connects Postgres and, if enabled, Redis, then builds the service with
// an asynchronous notification dispatcher.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Runtime, error) {
	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.DBMaxConns})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	logger.Info().Msg("connected to postgres")

	rt := &Runtime{Pool: pool, log: logger}

	var locker redisclient.Locker
	if cfg.RedisEnabled {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		rt.Redis = rdb
		locker = redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	} else {
		locker = redisclient.NewLocalLocker()
		logger.Warn().Msg("redis disabled, doctor locks are local to this process")
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.dispatcher = notify.NewAsyncDispatcher(sender, logger, notify.DispatcherOptions{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
		Location:    cfg.Location,
	})

	rt.Service = appointment.NewService(appointment.NewPgRepository(pool), locker, rt.dispatcher, logger, cfg)
	return rt, nil
}

func newSender(cfg config.Config, logger zerolog.Logger) (notify.Sender, error) {
	if !cfg.SMTP.Enabled {
		return notify.NewLogSender(logger), nil
	}
	s, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		UseTLS:   cfg.SMTP.UseTLS,
		Timeout:  cfg.Notify.SendTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return s, nil
}

// Close drains pending notifications before closing connections.
func (rt *Runtime) Close() {
	if rt.dispatcher != nil {
		rt.dispatcher.Close()
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.log.Error().Err(err).Msg("close redis")
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}

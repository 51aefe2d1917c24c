package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"tattty/internal/infra"
	"tattty/internal/session"
)

const defaultPurgeInterval = 15 * time.Minute

type purger interface {
	PurgeStale(ctx context.Context, ttl time.Duration) (int64, error)
}

// janitor deletes persisted drafts that have not been touched within ttl.
type janitor struct {
	drafts   purger
	ttl      time.Duration
	interval time.Duration
	logger   zerolog.Logger
}

func main() {
	var (
		onceFlag     bool
		intervalFlag time.Duration
	)
	flag.BoolVar(&onceFlag, "once", false, "purge once and exit")
	flag.DurationVar(&intervalFlag, "interval", defaultPurgeInterval, "time between purges")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	j := &janitor{
		drafts:   session.NewPostgresPersister(infra.NewSQLRunner(pool, logger)),
		ttl:      cfg.DraftTTL,
		interval: intervalFlag,
		logger:   logger,
	}
	if onceFlag {
		if _, err := j.purge(ctx); err != nil {
			logger.Fatal().Err(err).Msg("worker: purge failed")
		}
		return
	}
	if err := j.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
}

// Run purges immediately and then on every tick until ctx ends. Failed purges are logged
// and retried on the next tick.
func (j *janitor) Run(ctx context.Context) error {
	j.logger.Info().Dur("ttl", j.ttl).Dur("interval", j.interval).Msg("worker: started")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		if _, err := j.purge(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error().Err(err).Msg("worker: purge failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (j *janitor) purge(ctx context.Context) (int64, error) {
	n, err := j.drafts.PurgeStale(ctx, j.ttl)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info().Int64("deleted", n).Msg("worker: purged stale drafts")
	}
	return n, nil
}

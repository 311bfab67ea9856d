package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/aimq-dev/aimq/config"
	"github.com/aimq-dev/aimq/queue"
	"github.com/aimq-dev/aimq/queue/embedded"
	"github.com/aimq-dev/aimq/queue/pgmq"
	"github.com/aimq-dev/aimq/queue/realtime"
	"github.com/aimq-dev/aimq/telemetry"
)

// runtime bundles the pieces every subcommand needs: a queue.Client,
// a logger, and loaded config. It owns whatever transport resources
// it opened and must be closed when the command exits.
type runtime struct {
	cfg    *config.Config
	log    *logrus.Logger
	client queue.Client

	pool    *pgxpool.Pool
	sub     *realtime.Subscriber
	closeFn func()
}

// newRuntime loads config and connects to either queue/pgmq (when
// cfg.DatabaseURL is set) or queue/embedded (otherwise, a local
// sqlite file under ./aimq.db), matching SPEC_FULL.md §4.1's fallback
// rule for cmd/aimq.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := telemetry.New(cfg.WorkerLogLevel)

	if cfg.DatabaseURL == "" {
		client, err := embedded.Open(ctx, "file:aimq.db?cache=shared")
		if err != nil {
			return nil, fmt.Errorf("opening embedded backend: %w", err)
		}
		return &runtime{
			cfg:     cfg,
			log:     log,
			client:  client,
			closeFn: func() { client.Close() },
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	client := pgmq.New(pool)
	sub := realtime.New(pool, realtime.Config{Channel: cfg.RealtimeChannel}, log.WithField("component", "realtime"))
	go sub.Run(ctx)

	return &runtime{
		cfg:    cfg,
		log:    log,
		client: client,
		pool:   pool,
		sub:    sub,
		closeFn: func() {
			<-sub.Stop()
			pool.Close()
		},
	}, nil
}

func (r *runtime) Close() {
	if r.closeFn != nil {
		r.closeFn()
	}
}

// realtimeSource returns the Subscriber if one is active, or nil for
// the embedded backend, whose fibers fall back to idle-timer polling.
func (r *runtime) realtimeSource() *realtime.Subscriber {
	return r.sub
}

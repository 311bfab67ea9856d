package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	"github.com/aimq-dev/aimq/worker"
)

const shutdownGrace = 30 * time.Second

var healthPort string

var startCmd = &cobra.Command{
	Use:   "start <file>",
	Short: "Load a worker definition file and run until signaled",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&healthPort, "health-port", "8080", "port the /healthz probe listens on")
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	defs, err := loadDefinitions(args[0])
	if err != nil {
		return err
	}

	rtime, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rtime.Close()

	var rt worker.Realtime
	if sub := rtime.realtimeSource(); sub != nil {
		rt = sub
	}
	w := worker.New(rtime.client, rt, rtime.log)
	for _, d := range defs {
		desc := d.toDescriptor()
		if desc.IdleWait <= 0 {
			desc.IdleWait = rtime.cfg.WorkerIdleWait
		}
		if err := w.Register(desc); err != nil {
			return fmt.Errorf("registering queue %q: %w", d.Queue, err)
		}
	}

	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}
	rtime.log.WithField("worker_name", rtime.cfg.WorkerName).Info("worker started")

	srv := newHealthServer(healthPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rtime.log.WithError(err).Error("health server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	rtime.log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if err := w.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stopping worker: %w", err)
	}
	rtime.log.Info("worker stopped cleanly")
	return nil
}

// newHealthServer serves /healthz, the ambient probe surface added
// alongside the worker since metrics/observability proper stay out of
// scope (SPEC_FULL.md §6), grounded on SherlockOS's chi+cors wiring.
func newHealthServer(port string) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

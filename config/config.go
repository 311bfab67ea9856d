// Package config loads aimq's environment-variable configuration,
// grounded on SherlockOS's pkg/config: plain os.Getenv with defaults,
// no config file or third-party env library, since none of the
// examples pull one in for this kind of flat var=default loading.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-derived setting aimq needs to start.
type Config struct {
	// SupabaseURL is the base URL of the database HTTP API PGMQ RPCs
	// are issued against. Required.
	SupabaseURL string
	// SupabaseKey is the service credential used for RPC calls.
	// Required.
	SupabaseKey string
	// WorkerName is a diagnostic label; the start command logs it as
	// worker_name on its "worker started" line. Other log lines do not
	// carry it.
	WorkerName string
	// WorkerLogLevel is one of debug|info|warn|error.
	WorkerLogLevel string
	// WorkerIdleWait is how long a queue's scheduling fiber waits
	// between reads when idle and not woken by a realtime
	// notification.
	WorkerIdleWait time.Duration

	// DatabaseURL (ADDED) is a Postgres DSN used by queue/pgmq. When
	// unset, cmd/aimq falls back to queue/embedded against a local
	// sqlite file, since spec.md only names the Supabase HTTP
	// credentials and says nothing about a direct Postgres DSN, but
	// queue/pgmq's pgxpool.Pool needs one.
	DatabaseURL string
	// RealtimeChannel (ADDED) is the LISTEN/NOTIFY channel
	// queue/realtime subscribes to. queue/pgmq's CreateQueue and
	// EnableQueueRealtime do not read it: they always wire the trigger
	// to pgmq.DefaultRealtimeChannel.
	RealtimeChannel string
	// RealtimeEvent (ADDED) is the configured realtime event name. No
	// package reads it; the trigger is always created with
	// pgmq.DefaultRealtimeEvent.
	RealtimeEvent string
}

// Load reads Config from the environment, applying spec-mandated
// defaults. It returns an error if a required variable is missing.
func Load() (*Config, error) {
	cfg := &Config{
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseKey:     os.Getenv("SUPABASE_KEY"),
		WorkerName:      getEnv("WORKER_NAME", "peon"),
		WorkerLogLevel:  getEnv("WORKER_LOG_LEVEL", "info"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RealtimeChannel: getEnv("AIMQ_REALTIME_CHANNEL", "aimq:jobs"),
		RealtimeEvent:   getEnv("AIMQ_REALTIME_EVENT", "job_enqueued"),
	}

	idleWaitSeconds, err := strconv.ParseFloat(getEnv("WORKER_IDLE_WAIT", "10.0"), 64)
	if err != nil {
		return nil, fmt.Errorf("config: invalid WORKER_IDLE_WAIT: %w", err)
	}
	cfg.WorkerIdleWait = time.Duration(idleWaitSeconds * float64(time.Second))

	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("config: SUPABASE_URL is required")
	}
	if cfg.SupabaseKey == "" {
		return nil, fmt.Errorf("config: SUPABASE_KEY is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

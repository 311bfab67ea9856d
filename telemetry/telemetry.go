// Package telemetry configures the structured logger shared across
// aimq's components.
package telemetry

import (
	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Logger for level (one of logrus's level names:
// "debug", "info", "warn", "error"; case-insensitive). An unrecognized
// level falls back to info and logs a warning about the fallback.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("requested_level", level).Warn("unrecognized log level, defaulting to info")
		return log
	}
	log.SetLevel(lvl)
	return log
}

// WithWorker returns an entry tagged with worker_name, so lines logged
// through it can be filtered by worker instance in multi-worker
// deployments.
func WithWorker(log *logrus.Logger, workerName string) *logrus.Entry {
	return log.WithField("worker_name", workerName)
}

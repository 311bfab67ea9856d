package worker

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/aimq-dev/aimq/internal"
)

// State identifies where a Worker sits in its lifecycle.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

var (
	// ErrDoubleStarted is returned when Start is called on a worker
	// that is already starting or running.
	ErrDoubleStarted = errors.New("worker double start")

	// ErrDoubleStopped is returned when Stop is called on a worker
	// that is not running.
	ErrDoubleStopped = errors.New("worker double stop")

	// ErrStopTimeout is returned when a worker fails to reach the
	// stopped state within the timeout passed to Stop. The worker may
	// still be terminating in the background.
	ErrStopTimeout = errors.New("worker stop timeout")
)

// lcBase guards the starting -> running -> stopping -> stopped
// transitions behind a single atomic state word, so Start and Stop
// are safe to call concurrently and idempotency violations are
// reported rather than silently ignored.
type lcBase struct {
	state atomic.Int32
}

func (lb *lcBase) State() State {
	return State(lb.state.Load())
}

func (lb *lcBase) tryStart() error {
	if !lb.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrDoubleStarted
	}
	return nil
}

func (lb *lcBase) markRunning() {
	lb.state.Store(int32(StateRunning))
}

// tryStop moves the worker from running to stopping, invokes df to
// start the actual teardown, then waits for it to finish or for ctx
// to be done, whichever comes first. Callers pass a context carrying
// the grace deadline for shutdown.
func (lb *lcBase) tryStop(ctx context.Context, df internal.DoneFunc) error {
	if !lb.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrDoubleStopped
	}
	done := df()
	select {
	case <-done:
		lb.state.Store(int32(StateStopped))
		return nil
	case <-ctx.Done():
		return ErrStopTimeout
	}
}

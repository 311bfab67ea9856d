package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aimq-dev/aimq/pipeline"
	"github.com/aimq-dev/aimq/worker"
)

// queueDefinition is the on-disk shape of one entry in a worker
// definition file passed to `aimq start`. Durations are expressed in
// seconds, matching spec.md's env-var convention (WORKER_IDLE_WAIT is
// itself a float number of seconds).
//
// Go has no safe way to load an arbitrary user-authored Runnable
// graph from a file at runtime the way the source's dynamically
// imported worker module did; a definition file binds a queue name
// and policy to the built-in Echo pipeline, suitable for smoke-testing
// a deployment's plumbing end to end. Real pipelines are registered
// in Go via worker.Worker.Register/Task by an embedding program.
type queueDefinition struct {
	Queue             string   `json:"queue"`
	TimeoutSeconds    float64  `json:"timeout_seconds"`
	VisibilitySeconds float64  `json:"visibility_timeout_seconds"`
	BatchSize         int      `json:"batch_size"`
	DeleteOnFinish    bool     `json:"delete_on_finish"`
	IdleWaitSeconds   float64  `json:"idle_wait_seconds"`
	Tags              []string `json:"tags"`
}

func loadDefinitions(path string) ([]queueDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading worker definition file: %w", err)
	}
	var defs []queueDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("parsing worker definition file: %w", err)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("worker definition file %q declares no queues", path)
	}
	return defs, nil
}

func (d queueDefinition) toDescriptor() worker.Descriptor {
	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = worker.DefaultBatchSize
	}
	desc := worker.Descriptor{
		Queue:          d.Queue,
		Runnable:       pipeline.Echo(),
		BatchSize:      batchSize,
		DeleteOnFinish: d.DeleteOnFinish,
		Tags:           d.Tags,
	}
	if d.TimeoutSeconds > 0 {
		desc.Timeout = time.Duration(d.TimeoutSeconds * float64(time.Second))
	}
	if d.VisibilitySeconds > 0 {
		desc.VisibilityTimeout = time.Duration(d.VisibilitySeconds * float64(time.Second))
	}
	if d.IdleWaitSeconds > 0 {
		desc.IdleWait = time.Duration(d.IdleWaitSeconds * float64(time.Second))
	}
	return desc
}

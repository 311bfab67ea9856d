package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aimq-dev/aimq/job"
	"github.com/aimq-dev/aimq/pipeline"
	"github.com/aimq-dev/aimq/queue"
	"github.com/aimq-dev/aimq/value"
)

// fakeClient is an in-memory queue.Client used to exercise the
// scheduling fiber and processor without a real Postgres instance.
type fakeClient struct {
	mu       sync.Mutex
	nextID   int64
	pending  map[string][]job.Row
	archived map[int64]bool
	deleted  map[int64]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pending:  make(map[string][]job.Row),
		archived: make(map[int64]bool),
		deleted:  make(map[int64]bool),
	}
}

func (f *fakeClient) Send(_ context.Context, queue string, payload value.Object, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	raw, _ := value.FromObject(payload).MarshalJSON()
	f.pending[queue] = append(f.pending[queue], job.Row{
		MsgID:      f.nextID,
		EnqueuedAt: time.Now(),
		VT:         time.Now(),
		Message:    raw,
	})
	return f.nextID, nil
}

func (f *fakeClient) SendBatch(ctx context.Context, queue string, payloads []value.Object, delay time.Duration) ([]int64, error) {
	ids := make([]int64, len(payloads))
	for i, p := range payloads {
		id, err := f.Send(ctx, queue, p, delay)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (f *fakeClient) Read(_ context.Context, queue string, batch int, vt time.Duration) ([]job.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.pending[queue]
	if len(rows) > batch {
		rows = rows[:batch]
	}
	out := make([]job.Row, len(rows))
	for i, r := range rows {
		r.ReadCount++
		r.VT = time.Now().Add(vt)
		out[i] = r
	}
	f.pending[queue] = f.pending[queue][len(rows):]
	return out, nil
}

func (f *fakeClient) Pop(context.Context, string) (*job.Row, bool, error) {
	return nil, false, nil
}

func (f *fakeClient) Archive(_ context.Context, _ string, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived[messageID] = true
	return nil
}

func (f *fakeClient) Delete(_ context.Context, _ string, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[messageID] = true
	return nil
}

func (f *fakeClient) CreateQueue(context.Context, string) error { return nil }

func (f *fakeClient) ListQueues(context.Context) ([]queue.Info, error) { return nil, nil }

func (f *fakeClient) EnableQueueRealtime(context.Context, string) error { return nil }

func (f *fakeClient) wasDeleted(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted[id]
}

func (f *fakeClient) wasArchived(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.archived[id]
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestWorkerProcessesJobAndDeletes(t *testing.T) {
	client := newFakeClient()
	w := New(client, nil, quietLogger())

	handlerCalled := make(chan struct{}, 1)
	err := w.Task("emails", func(_ context.Context, in value.Object, _ pipeline.Context) (value.Value, error) {
		handlerCalled <- struct{}{}
		return value.FromObject(in), nil
	}, Descriptor{
		Timeout:           200 * time.Millisecond,
		VisibilityTimeout: 200 * time.Millisecond,
		BatchSize:         1,
		DeleteOnFinish:    true,
		IdleWait:          20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Task: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	id, err := w.Send(ctx, "emails", map[string]any{"to": "alice@example.com"}, 0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-handlerCalled:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if client.wasDeleted(id) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !client.wasDeleted(id) {
		t.Fatalf("message %d was not deleted", id)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestWorkerArchivesOnPipelineError(t *testing.T) {
	client := newFakeClient()
	w := New(client, nil, quietLogger())

	boom := make(chan struct{}, 1)
	err := w.Task("emails", func(context.Context, value.Object, pipeline.Context) (value.Value, error) {
		boom <- struct{}{}
		return value.Null(), &pipeline.Error{Kind: pipeline.Failed}
	}, Descriptor{
		Timeout:           200 * time.Millisecond,
		VisibilityTimeout: 200 * time.Millisecond,
		BatchSize:         1,
		DeleteOnFinish:    true,
		IdleWait:          20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Task: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	id, err := w.Send(ctx, "emails", map[string]any{}, 0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-boom:
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if client.wasArchived(id) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !client.wasArchived(id) {
		t.Fatalf("failed job %d was not archived", id)
	}
	if client.wasDeleted(id) {
		t.Fatalf("failed job %d must not be deleted", id)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	_ = w.Stop(stopCtx)
}

func TestRegisterAfterStartFails(t *testing.T) {
	client := newFakeClient()
	w := New(client, nil, quietLogger())
	if err := w.Task("a", noop, Descriptor{IdleWait: time.Hour, BatchSize: 1}); err != nil {
		t.Fatalf("Task: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Task("b", noop, Descriptor{BatchSize: 1}); err == nil {
		t.Fatalf("expected ConfigError registering after start")
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	_ = w.Stop(stopCtx)
}

func TestRegisterDuplicateQueueFails(t *testing.T) {
	client := newFakeClient()
	w := New(client, nil, quietLogger())
	if err := w.Task("a", noop, Descriptor{BatchSize: 1}); err != nil {
		t.Fatalf("Task: %v", err)
	}
	if err := w.Task("a", noop, Descriptor{BatchSize: 1}); err == nil {
		t.Fatalf("expected ConfigError for duplicate queue")
	}
}

func TestRegisterRejectsZeroBatchSize(t *testing.T) {
	client := newFakeClient()
	w := New(client, nil, quietLogger())
	if err := w.Task("a", noop, Descriptor{BatchSize: 0}); err == nil {
		t.Fatalf("expected ConfigError for batch_size=0 through Register")
	}
}

func TestDoubleStartFails(t *testing.T) {
	client := newFakeClient()
	w := New(client, nil, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(ctx); err != ErrDoubleStarted {
		t.Fatalf("Start again = %v, want ErrDoubleStarted", err)
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	_ = w.Stop(stopCtx)
}

func noop(context.Context, value.Object, pipeline.Context) (value.Value, error) {
	return value.NewObject(), nil
}

package job

import (
	"testing"
	"time"

	"github.com/aimq-dev/aimq/queueerr"
)

func TestFromRowRejectsMissingMsgID(t *testing.T) {
	_, err := FromRow("emails", Row{MsgID: 0, Message: []byte(`{}`)}, nil)
	if !queueerr.Is(err, queueerr.Validation) {
		t.Fatalf("FromRow with msg_id=0 error = %v, want validation", err)
	}
}

func TestFromRowRejectsNonObjectPayload(t *testing.T) {
	_, err := FromRow("emails", Row{MsgID: 1, Message: []byte(`[1,2,3]`)}, nil)
	if !queueerr.Is(err, queueerr.Validation) {
		t.Fatalf("FromRow with array payload error = %v, want validation", err)
	}
}

func TestFromRowParsesRow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	vt := now.Add(30 * time.Second)
	row := Row{
		MsgID:      42,
		ReadCount:  2,
		EnqueuedAt: now,
		VT:         vt,
		Message:    []byte(`{"to":"alice@example.com"}`),
	}
	j, err := FromRow("emails", row, []string{"billing"})
	if err != nil {
		t.Fatalf("FromRow: %v", err)
	}
	if j.MessageID != 42 || j.QueueName != "emails" || j.ReadCount != 2 {
		t.Fatalf("unexpected job: %+v", j)
	}
	if to, ok := j.Payload["to"].AsString(); !ok || to != "alice@example.com" {
		t.Fatalf("Payload[to] = %v, %v", to, ok)
	}
	if len(j.Tags) != 1 || j.Tags[0] != "billing" {
		t.Fatalf("Tags = %v", j.Tags)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	j := &Job{VisibleAt: now}
	if !j.IsExpired(now) {
		t.Fatalf("job visible exactly at now should be expired")
	}
	if j.IsExpired(now.Add(-time.Second)) {
		t.Fatalf("job should not be expired before its visibility deadline")
	}
}

func TestOriginalIncludesMetadata(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	j := &Job{
		MessageID:  7,
		QueueName:  "emails",
		ReadCount:  1,
		EnqueuedAt: now,
		Tags:       []string{"a", "b"},
	}
	orig := j.Original()
	if queue, ok := orig["queue"].AsString(); !ok || queue != "emails" {
		t.Fatalf("queue = %v, %v", queue, ok)
	}
	if id, ok := orig["message_id"].AsNumber(); !ok || id != 7 {
		t.Fatalf("message_id = %v, %v", id, ok)
	}
	tags, ok := orig["tags"].AsArray()
	if !ok || len(tags) != 2 {
		t.Fatalf("tags = %v, %v", tags, ok)
	}
}

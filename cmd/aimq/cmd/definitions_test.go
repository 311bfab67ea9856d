package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefinitionsParsesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workers.json")
	content := `[
		{"queue": "emails", "timeout_seconds": 30, "batch_size": 5},
		{"queue": "reports", "visibility_timeout_seconds": 120, "delete_on_finish": true}
	]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	defs, err := loadDefinitions(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(defs) != 2 {
		t.Fatalf("len(defs) = %d, want 2", len(defs))
	}
	if defs[0].Queue != "emails" || defs[0].BatchSize != 5 {
		t.Fatalf("defs[0] = %+v", defs[0])
	}
}

func TestLoadDefinitionsRejectsEmptyList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadDefinitions(path); err == nil {
		t.Fatal("expected an error for an empty definition file")
	}
}

func TestToDescriptorAppliesDurations(t *testing.T) {
	d := queueDefinition{
		Queue:             "emails",
		TimeoutSeconds:    30,
		VisibilitySeconds: 60,
		IdleWaitSeconds:   2.5,
		BatchSize:         3,
	}
	desc := d.toDescriptor()
	if desc.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", desc.Timeout)
	}
	if desc.VisibilityTimeout != 60*time.Second {
		t.Errorf("VisibilityTimeout = %v, want 60s", desc.VisibilityTimeout)
	}
	if desc.IdleWait != 2500*time.Millisecond {
		t.Errorf("IdleWait = %v, want 2.5s", desc.IdleWait)
	}
	if desc.Runnable == nil {
		t.Error("expected a non-nil Runnable")
	}
}

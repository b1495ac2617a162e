package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "uniset2.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsWhenKeyAbsent(t *testing.T) {
	path := writeTempConfig(t, `{"name": "udpsender1"}`)

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.Name != "udpsender1" {
		t.Fatalf("expected name to round trip, got %q", opts.Name)
	}
	if opts.SMReadyTimeout != 15*time.Second {
		t.Fatalf("expected default sm-ready-timeout, got %v", opts.SMReadyTimeout)
	}
	if opts.WSMaxSend != 64 {
		t.Fatalf("expected default ws-max-send, got %d", opts.WSMaxSend)
	}
	if opts.NodeID != 1 || opts.ProcID != 1 {
		t.Fatalf("expected default node-id/proc-id of 1, got %d/%d", opts.NodeID, opts.ProcID)
	}
}

func TestLoadZeroIsDefaultNegativeIsWaitForever(t *testing.T) {
	path := writeTempConfig(t, `{"sm-ready-timeout": 0, "activate-timeout": -1}`)

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.SMReadyTimeout != 15*time.Second {
		t.Fatalf("expected zero to resolve to default, got %v", opts.SMReadyTimeout)
	}
	if opts.ActivateTimeout >= 0 {
		t.Fatalf("expected negative activate-timeout to be preserved, got %v", opts.ActivateTimeout)
	}
}

func TestLoadFilterFields(t *testing.T) {
	path := writeTempConfig(t, `{"filter-field": "iotype", "filter-value": "AI"}`)

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := opts.Filter()
	if f.Field != "iotype" || f.Value != "AI" {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadEmptyPathUsesDefaultsOnly(t *testing.T) {
	opts, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if opts.HTTPServerPort != 8081 {
		t.Fatalf("expected default httpserver port, got %d", opts.HTTPServerPort)
	}
}

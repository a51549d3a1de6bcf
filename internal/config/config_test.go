package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8470" || !cfg.SyncWrites {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.JournalPath != Default().JournalPath {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nerve.yaml")
	body := "journal_path: /data/nerve.jsonl\nlisten_addr: \":9000\"\nsync_writes: false\ntest_timeout_seconds: 5\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JournalPath != "/data/nerve.jsonl" || cfg.ListenAddr != ":9000" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.SyncWrites {
		t.Fatal("sync_writes=false not applied")
	}
	if cfg.TestTimeout().Seconds() != 5 {
		t.Fatalf("expected 5s timeout, got %v", cfg.TestTimeout())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nerve.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":9000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NERVE_ADDR", ":7000")
	t.Setenv("NERVE_SYNC_WRITES", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7000" {
		t.Fatalf("env override lost: %s", cfg.ListenAddr)
	}
	if cfg.SyncWrites {
		t.Fatal("env bool override lost")
	}
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("NERVE_TEST_TIMEOUT_SECONDS", "soon")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric timeout")
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Outline.MaxIndent != 8 || cfg.Sync.FlushInterval != 5*time.Second || cfg.Sync.MaxRetries != 5 || !cfg.Sync.AutoFlush {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Remote.Kind != RemoteNone || cfg.Log.Level != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	body := strings.Join([]string{
		"outline:",
		"  maxIndent: 4",
		"sync:",
		"  flushInterval: 2s",
		"  maxRetries: 3",
		"remote:",
		"  kind: redis",
		"  redisURL: redis://localhost:6379/0",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("JOTLINE_SYNC_MAX_RETRIES", "9")
	t.Setenv("JOTLINE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Outline.MaxIndent != 4 || cfg.Sync.FlushInterval != 2*time.Second {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Sync.MaxRetries != 9 || cfg.Log.Format != "json" {
		t.Fatalf("env values not applied: %+v", cfg)
	}
	if cfg.Remote.Kind != RemoteRedis || cfg.Remote.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("remote = %+v", cfg.Remote)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"remote kind":    "remote:\n  kind: carrier-pigeon\n",
		"redis url":      "remote:\n  kind: redis\n",
		"indent":         "outline:\n  maxIndent: 0\n",
		"retries":        "sync:\n  maxRetries: 0\n",
		"log format":     "log:\n  format: xml\n",
		"postgres url":   "remote:\n  kind: postgres\n",
		"flush interval": "sync:\n  flushInterval: 0s\n",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), FileName)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("%s: WriteFile: %v", name, err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", FileName)
	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

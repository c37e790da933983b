package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.AssistantName != "Shade" {
		t.Errorf("expected assistant name Shade, got %s", cfg.AssistantName)
	}
	if cfg.Poll.Message != 2*time.Second {
		t.Errorf("expected 2s message interval, got %v", cfg.Poll.Message)
	}
	if cfg.Poll.IPC != 1*time.Second {
		t.Errorf("expected 1s ipc interval, got %v", cfg.Poll.IPC)
	}
	if cfg.Concurrency.MaxGlobal != 5 {
		t.Errorf("expected max global 5, got %d", cfg.Concurrency.MaxGlobal)
	}
	if cfg.Retry.BaseDelay != 5*time.Second {
		t.Errorf("expected 5s base delay, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("expected 5 max retries, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Trigger.Default != "@Shade" {
		t.Errorf("expected @Shade trigger, got %s", cfg.Trigger.Default)
	}
}

func TestDerivedPaths(t *testing.T) {
	p := PathsConfig{DataDir: "/data"}

	if got := p.GroupsDir(); got != filepath.Join("/data", "groups") {
		t.Errorf("unexpected groups dir %s", got)
	}
	if got := p.SessionsDir(); got != filepath.Join("/data", "sessions") {
		t.Errorf("unexpected sessions dir %s", got)
	}
	if got := p.IPCDir(); got != filepath.Join("/data", "ipc") {
		t.Errorf("unexpected ipc dir %s", got)
	}
	if got := p.DatabasePath(); got != filepath.Join("/data", "shade.db") {
		t.Errorf("unexpected db path %s", got)
	}

	p.IPC = "/elsewhere/ipc"
	if got := p.IPCDir(); got != "/elsewhere/ipc" {
		t.Errorf("explicit ipc dir not honored, got %s", got)
	}
}

func TestLoadFileAndEnvPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"assistantName":"FileBot","concurrency":{"maxGlobal":3}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHADE_CONFIG", path)
	t.Setenv("SHADE_CONCURRENCY_MAX_GLOBAL", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AssistantName != "FileBot" {
		t.Errorf("expected file value FileBot, got %s", cfg.AssistantName)
	}
	// Env beats file
	if cfg.Concurrency.MaxGlobal != 7 {
		t.Errorf("expected env override 7, got %d", cfg.Concurrency.MaxGlobal)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SHADE_CONFIG", filepath.Join(t.TempDir(), "nope.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AssistantName != "Shade" {
		t.Errorf("expected defaults, got %s", cfg.AssistantName)
	}
}

func TestEnsureDirs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "data")

	if err := EnsureDirs(cfg); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}
	for _, dir := range []string{
		cfg.Paths.GroupsDir(),
		cfg.Paths.SessionsDir(),
		cfg.Paths.IPCDir(),
	} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

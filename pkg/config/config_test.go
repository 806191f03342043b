package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.BaseURL != "http://localhost:11434" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Orchestrator.MaxConcurrentTasks != 5 {
		t.Errorf("max concurrent = %d", cfg.Orchestrator.MaxConcurrentTasks)
	}
	if cfg.Orchestrator.ArchivePath != "" {
		t.Errorf("archive path = %q, want disabled by default", cfg.Orchestrator.ArchivePath)
	}
	if cfg.Memory.MaxSize != 100 || cfg.Memory.Provider != "conversation" {
		t.Errorf("memory = %+v", cfg.Memory)
	}
	if cfg.Webhook.BaseURL != "http://localhost:5678" || cfg.Webhook.Timeout != 2*time.Minute {
		t.Errorf("webhook = %+v", cfg.Webhook)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
log:
  level: debug
orchestrator:
  max_concurrent_tasks: 2
  archive_path: /tmp/tasks.db
webhook:
  timeout: 90s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Orchestrator.MaxConcurrentTasks != 2 {
		t.Errorf("max concurrent = %d", cfg.Orchestrator.MaxConcurrentTasks)
	}
	if cfg.Orchestrator.ArchivePath != "/tmp/tasks.db" {
		t.Errorf("archive path = %q", cfg.Orchestrator.ArchivePath)
	}
	if cfg.Webhook.Timeout != 90*time.Second {
		t.Errorf("timeout = %v", cfg.Webhook.Timeout)
	}
	// Untouched keys keep their defaults.
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("llm provider = %q", cfg.LLM.Provider)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "log:\n  level: debug\n")
	t.Setenv("CONDUCTOR_LOG_LEVEL", "warn")
	t.Setenv("CONDUCTOR_LLM_MODEL", "llama3.1:8b")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, env should win over file", cfg.Log.Level)
	}
	if cfg.LLM.Model != "llama3.1:8b" {
		t.Errorf("llm model = %q", cfg.LLM.Model)
	}
}

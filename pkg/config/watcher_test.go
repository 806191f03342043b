// Copyright 2026 © The Conductor Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherInitialConfig(t *testing.T) {
	path := writeConfigFile(t, "log:\n  level: debug\n")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	if w.Config().Log.Level != "debug" {
		t.Errorf("level = %q", w.Config().Log.Level)
	}
}

func TestWatcherRequiresLoadableFile(t *testing.T) {
	path := writeConfigFile(t, "log: [not a mapping\n")
	if _, err := NewWatcher(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeConfigFile(t, "log:\n  level: debug\n")

	w, err := NewWatcher(path, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	changed := make(chan *Config, 1)
	w.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Nudge the mtime forward in case the filesystem clock is coarse.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changed:
		if cfg.Log.Level != "warn" {
			t.Errorf("reloaded level = %q", cfg.Log.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reload notification never arrived")
	}
}

// Copyright 2026 © The Conductor Authors
// SPDX-License-Identifier: Apache-2.0

// Command conductor runs the task orchestration service: it assembles the
// LLM provider, workflow capabilities, the intent-routing agent, and the
// orchestrator, then serves until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/protean-labs/conductor/pkg/agent"
	"github.com/protean-labs/conductor/pkg/capability"
	"github.com/protean-labs/conductor/pkg/config"
	"github.com/protean-labs/conductor/pkg/core"
	"github.com/protean-labs/conductor/pkg/llm"
	"github.com/protean-labs/conductor/pkg/memory"
	"github.com/protean-labs/conductor/pkg/memory/ollama"
	"github.com/protean-labs/conductor/pkg/memory/qdrant"
	"github.com/protean-labs/conductor/pkg/orchestrator"
	"github.com/protean-labs/conductor/pkg/router"
	"github.com/protean-labs/conductor/pkg/telemetry"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("conductor " + version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "conductor:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	// Reloads pick up log level changes without a restart; everything else
	// keeps the values it was built with.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath)
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		watcher.OnChange(func(next *config.Config) {
			telemetry.SetLogLevel(next.Log.Level)
			slog.Info("config reloaded", slog.String("log_level", next.Log.Level))
		})
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	shutdown, err := telemetry.InitWithConfig("conductor", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		Attributes: []attribute.KeyValue{
			attribute.Int("conductor.max_concurrent_tasks", cfg.Orchestrator.MaxConcurrentTasks),
			attribute.String("conductor.llm.model", cfg.LLM.Model),
			attribute.String("conductor.memory.provider", cfg.Memory.Provider),
		},
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	provider := llm.NewOllama(cfg.LLM.BaseURL, cfg.LLM.Model)

	capMetrics, err := telemetry.NewCapabilityMetrics()
	if err != nil {
		return fmt.Errorf("init capability metrics: %w", err)
	}

	capabilities := buildCapabilities(cfg, capMetrics)

	mem, err := buildMemory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build memory: %w", err)
	}

	intentRouter, err := router.New("MasterRouter",
		router.WithProvider(provider),
		router.WithCapabilities(capabilities...),
		router.WithIntents(router.DefaultIntents()...),
	)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	master, err := agent.New("MasterAgent",
		agent.WithDescription("Routes user requests to workflow capabilities"),
		agent.WithProvider(provider),
		agent.WithCapabilities(capabilities...),
		agent.WithMemory(mem),
		agent.WithTaskFunc(intentRouter.TaskFunc()),
	)
	if err != nil {
		return fmt.Errorf("build master agent: %w", err)
	}

	metrics, err := telemetry.NewTaskMetrics()
	if err != nil {
		return fmt.Errorf("init task metrics: %w", err)
	}

	opts := []orchestrator.Option{orchestrator.WithMetrics(metrics)}
	if cfg.Orchestrator.ArchivePath != "" {
		archive, err := orchestrator.OpenArchive(cfg.Orchestrator.ArchivePath)
		if err != nil {
			return fmt.Errorf("open task archive: %w", err)
		}
		defer archive.Close()
		opts = append(opts, orchestrator.WithArchive(archive))
	}

	orch := orchestrator.New(cfg.Orchestrator.MaxConcurrentTasks, opts...)
	orch.RegisterAgent(master)

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	slog.Info("conductor started",
		slog.String("version", version),
		slog.String("model", cfg.LLM.Model),
		slog.Int("max_concurrent_tasks", cfg.Orchestrator.MaxConcurrentTasks),
	)

	<-ctx.Done()
	slog.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return orch.Stop(stopCtx)
}

// buildMemory selects the memory backend: recency-based conversation memory
// by default, or semantic recall over Qdrant when configured.
func buildMemory(ctx context.Context, cfg *config.Config) (core.Memory, error) {
	if cfg.Memory.Provider != "vector" {
		return memory.NewConversation(cfg.Memory.MaxSize), nil
	}

	store, err := qdrant.New(cfg.Memory.QdrantAddr)
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	embedder := ollama.NewEmbedder(cfg.Memory.EmbedderBaseURL, cfg.Memory.EmbedderModel)

	vm := memory.NewVectorMemory(store, embedder, cfg.Memory.Collection)
	if err := vm.Initialize(ctx); err != nil {
		return nil, err
	}
	return vm, nil
}

func buildCapabilities(cfg *config.Config, metrics *telemetry.CapabilityMetrics) []core.Capability {
	workflows := []struct {
		name        string
		webhookID   string
		description string
	}{
		{"todo_workflow", "todo", "Extracts tasks from text and adds them to the to-do list"},
		{"calendar_workflow", "calendar", "Creates calendar events"},
		{"drive_workflow", "drive", "Saves files to cloud storage"},
		{"mail_categorization_workflow", "mail-categorization", "Categorizes inbox email"},
		{"mail_prioritizing_workflow", "mail-prioritizing", "Prioritizes inbox email"},
	}

	capabilities := []core.Capability{capability.NewClock(capability.WithMetrics(metrics))}
	for _, wf := range workflows {
		capabilities = append(capabilities, capability.NewWebhook(wf.name, wf.description, capability.WebhookConfig{
			BaseURL:   cfg.Webhook.BaseURL,
			WebhookID: wf.webhookID,
			Timeout:   cfg.Webhook.Timeout,
		}, capability.WithMetrics(metrics)))
	}
	return capabilities
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/bigquery"
	"github.com/fwojciec/dataops/gemini"
	dataopsjson "github.com/fwojciec/dataops/json"
	"github.com/fwojciec/dataops/memory"
	"github.com/fwojciec/dataops/pipeline"
	"github.com/fwojciec/dataops/prompt"
	"github.com/fwojciec/dataops/tools"
)

// app holds the process-wide dependencies of the local agent.
type app struct {
	cfg      Config
	log      *slog.Logger
	sessions dataops.SessionService
	runner   *pipeline.Runner

	closers []func()
}

// newApp builds the local agent backend.
func newApp(ctx context.Context, cfg Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	var provider *gemini.Client
	var err error
	if cfg.GeminiAPIKey != "" {
		provider, err = gemini.New(ctx, cfg.GeminiAPIKey)
	} else {
		provider, err = gemini.NewVertex(ctx, cfg.Project, cfg.Location)
	}
	if err != nil {
		return nil, err
	}

	bq, err := bigquery.New(ctx, bigquery.Config{
		Project:        cfg.BigQueryProject,
		Location:       cfg.Location,
		MaxBytesBilled: cfg.MaxBytesBilled,
		MaxRows:        cfg.MaxRows,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := bq.Close(); err != nil {
			log.Warn("failed to close bigquery client", "error", err)
		}
	})

	exec, err := tools.New(tools.Config{
		Warehouse:      bq,
		Timeout:        cfg.QueryTimeout,
		MaxResultBytes: cfg.MaxResultBytes,
		Logger:         log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.SessionDir != "" {
		if err := os.MkdirAll(cfg.SessionDir, 0o700); err != nil {
			a.Close()
			return nil, fmt.Errorf("create session dir: %w", err)
		}
		a.sessions = dataopsjson.NewStore(cfg.SessionDir)
	} else {
		mem := memory.NewSessionService(cfg.SessionTTL)
		mem.Start()
		a.sessions = mem
		a.closers = append(a.closers, mem.Stop)
	}

	pcfg := prompt.Config{Dataset: cfg.Dataset, MaxRows: cfg.MaxRows, Logger: log}
	if cfg.PromptDir != "" {
		pcfg.Override = os.DirFS(cfg.PromptDir)
	}

	consent := pipeline.NewChannelGate()
	var gate dataops.Gate = consent
	if cfg.AutoApproveBytes > 0 {
		gate = pipeline.ThresholdGate{Limit: cfg.AutoApproveBytes, Next: consent}
	}

	p, err := pipeline.New(&pipeline.Config{
		Provider:       provider,
		Tools:          exec,
		Sessions:       a.sessions,
		Gate:           gate,
		Instructions:   prompt.Load(pcfg),
		GeneratorModel: cfg.GeneratorModel,
		ToolModel:      cfg.ToolModel,
		Logger:         log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = pipeline.NewRunner(p, consent)

	log.Info("agent ready",
		"project", cfg.Project,
		"location", cfg.Location,
		"agent_engine", cfg.AgentEngineID,
		"generator_model", cfg.GeneratorModel,
		"tool_model", cfg.ToolModel,
	)
	return a, nil
}

// Close releases dependencies in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

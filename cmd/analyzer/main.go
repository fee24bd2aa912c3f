// Package main is the entrypoint for the Shortify analytics server.
//
// Without flags it serves the HTTP API and, when SCHEDULER_ENABLED is set,
// fires the configured cron jobs. With -once it runs a single trigger,
// prints the result as JSON and exits.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/shortify/shortify/internal/analyzer"
	"github.com/shortify/shortify/internal/app"
	"github.com/shortify/shortify/internal/config"
	"github.com/shortify/shortify/internal/scheduler"
	"github.com/shortify/shortify/internal/server"
)

func main() {
	once := flag.String("once", "", `run one trigger and exit, e.g. '{"job":"ai_only"}'`)
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logFile, err := app.NewLogger(cfg, os.Stdout)
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *once != "" {
		if err := runOnce(ctx, a, *once); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := server.New(a.Router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if cfg.SchedulerEnabled {
		sched := scheduler.New(a.Analyzer, cfg.WriteTimeout, logger)
		for _, s := range cfg.ScheduleSpecs() {
			if err := sched.Add(s.Name, s.Spec); err != nil {
				logger.Error("invalid schedule", "name", s.Name, "spec", s.Spec, "error", err)
				os.Exit(1)
			}
		}
		sched.Start()
		srv.OnShutdown("scheduler", sched.Stop)
		logger.Info("scheduler started", "jobs", sched.Len())
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"state_backend", cfg.StateBackend,
	)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, a *app.App, raw string) error {
	t, err := analyzer.ParseTrigger([]byte(raw))
	if err != nil {
		return err
	}
	result, err := a.Analyzer.Invoke(ctx, t)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

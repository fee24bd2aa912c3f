// Package main is the serverless entrypoint. One function serves the HTTP
// API events, the SNS alarm deliveries and the scheduled job triggers.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/shortify/shortify/internal/app"
	"github.com/shortify/shortify/internal/config"
	"github.com/shortify/shortify/internal/invoke"
)

func main() {
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

	var alarms invoke.AlarmHandler
	if a.Alarms != nil {
		alarms = a.Alarms
	}
	dispatcher := invoke.NewDispatcher(a.Router, a.Analyzer, alarms, logger)
	lambda.Start(dispatcher.Handle)
}

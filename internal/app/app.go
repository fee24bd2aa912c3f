// Package app assembles the analytics components from configuration. Both
// the long-running server and the serverless entry point build through it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/shortify/shortify/internal/alert"
	"github.com/shortify/shortify/internal/analytics"
	"github.com/shortify/shortify/internal/analyzer"
	"github.com/shortify/shortify/internal/awsclient"
	"github.com/shortify/shortify/internal/config"
	"github.com/shortify/shortify/internal/export"
	"github.com/shortify/shortify/internal/handler"
	"github.com/shortify/shortify/internal/metrics"
	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/notify"
	"github.com/shortify/shortify/internal/repository"
	"github.com/shortify/shortify/internal/service"
	"github.com/shortify/shortify/internal/statestore"
	"github.com/shortify/shortify/internal/summarizer"
	"github.com/shortify/shortify/internal/textgen"
)

// redisKeyPrefix namespaces state documents in a shared Redis.
const redisKeyPrefix = "shortify:"

// App holds the wired components.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Repo       *repository.Repository
	Analyzer   *analyzer.Analyzer
	Summarizer *summarizer.Pipeline
	Alarms     *summarizer.AlarmSummarizer // nil when alarm summaries are off
	Metrics    *metrics.PrometheusRecorder
	Router     http.Handler

	redis *redis.Client
}

// Build connects to every configured backend and wires the analyzer, the
// summary pipeline and the HTTP router.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	alertPeriod, err := model.ParsePeriodKey(cfg.AlertOnlyPeriod)
	if err != nil {
		return nil, fmt.Errorf("ALERT_ONLY_PERIOD: %w", err)
	}
	aiPeriod, err := model.ParsePeriodKey(cfg.AIPeriodDefault)
	if err != nil {
		return nil, fmt.Errorf("AI_PERIOD_DEFAULT: %w", err)
	}
	sourcePeriod, err := model.ParsePeriodKey(cfg.AISourcePeriodDefault)
	if err != nil {
		return nil, fmt.Errorf("AI_SOURCE_PERIOD_DEFAULT: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.NewPrometheus()}

	a.Repo, err = repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %s", SanitizeError(err, cfg.DatabaseURL))
	}
	logger.Info("connected to database", "database_url", RedactURL(cfg.DatabaseURL))

	awsCfg, err := awsclient.Load(ctx, awsclient.Options{
		Region:    cfg.AWSRegion,
		Endpoint:  cfg.AWSEndpointURL,
		AccessKey: cfg.AWSAccessKeyID,
		SecretKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	var objects *statestore.S3Store
	if cfg.AnalyticsBucket != "" {
		objects = statestore.NewS3(awsclient.NewS3(awsCfg, cfg.AWSEndpointURL), cfg.AnalyticsBucket)
	}

	state, err := a.stateStore(ctx, objects)
	if err != nil {
		a.Close()
		return nil, err
	}

	links := repository.NewLinkRepository(a.Repo)
	clicks := repository.NewClickEventRepository(a.Repo)
	insights := repository.NewInsightRepository(a.Repo)
	results := repository.NewAIResultRepository(a.Repo)

	alertSlack := notify.NewSlack(notify.SlackOptions{
		WebhookURL: cfg.SlackWebhookURL,
		Timeout:    cfg.NotifyTimeout,
		MaxRetries: cfg.NotifyMaxRetries,
	}, logger)
	alerts := alert.NewManager(alert.NewStateFile(state, cfg.AlertStateKey), alertSlack, alert.Options{
		Period:    alertPeriod,
		MaxPerRun: cfg.MaxAlertsPerRun,
	}, logger)

	gen := textgen.NewBedrock(bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	}))
	a.Summarizer = summarizer.New(summarizer.Deps{
		Catalog:   links,
		Events:    clicks,
		Results:   results,
		Insights:  insights,
		Generator: gen,
		Clock:     clock.New(),
		Metrics:   a.Metrics,
		Logger:    logger,
	}, summarizer.Options{
		TrendModel:     cfg.BedrockModelTrend,
		InsightModel:   cfg.BedrockModelInsight,
		TopURLs:        cfg.AITopURLN,
		TopTimeBins:    cfg.AITopTimeBinN,
		MaxURLs:        cfg.MaxURLsPerRun,
		MaxClicksPerID: cfg.MaxClicksPerSID,
	})

	if cfg.AIEnabled && cfg.SlackAIWebhookURL != "" {
		aiSlack := notify.NewSlack(notify.SlackOptions{
			WebhookURL: cfg.SlackAIWebhookURL,
			Timeout:    cfg.NotifyTimeout,
			MaxRetries: cfg.NotifyMaxRetries,
		}, logger)
		a.Alarms = summarizer.NewAlarmSummarizer(gen, aiSlack, summarizer.AlarmOptions{
			Model:        cfg.BedrockModelAlarm,
			AIOnStates:   cfg.AIOnStates,
			SendOKSimple: cfg.SendOKSimple,
		}, a.Metrics, logger)
	}

	deps := analyzer.Deps{
		Catalog:  links,
		Events:   clicks,
		Insights: insights,
		Detector: analytics.NewDetector(cfg.SuspWindow(), cfg.SuspRepeatThreshold),
		Alerts:   alerts,
		Metrics:  a.Metrics,
		Logger:   logger,
	}
	if cfg.AIEnabled {
		deps.Summarizer = a.Summarizer
	}
	if cfg.CloudWatchEnabled {
		cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWSEndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
			}
		})
		deps.Emitter = metrics.NewCloudWatch(cw, cfg.MetricsNamespace)
	}
	switch {
	case cfg.ExportEnabled && objects == nil:
		logger.Warn("export disabled: ANALYTICS_BUCKET is not set")
	case cfg.ExportEnabled:
		deps.Exporter = export.New(export.Options{
			Enabled:        true,
			Bucket:         cfg.AnalyticsBucket,
			Prefix:         cfg.AnalyticsPrefix,
			CheckpointKey:  cfg.ExportCheckpoint(),
			Period:         model.Period1H,
			MaxClicksPerID: cfg.MaxClicksPerSID,
		}, state, clicks, export.NewJSONLSink(objects), logger)
	}
	a.Analyzer = analyzer.New(deps, analyzer.Options{
		MaxURLs:        cfg.MaxURLsPerRun,
		MaxClicksPerID: cfg.MaxClicksPerSID,
		TopReferers:    cfg.TopNReferer,
		AIPeriod:       aiPeriod,
		SourcePeriod:   sourcePeriod,
	})

	checks := map[string]handler.HealthChecker{"postgres": a.Repo}
	if a.redis != nil {
		checks["redis"] = statestore.NewRedis(a.redis, redisKeyPrefix)
	}

	var alarms handler.AlarmHandler
	if a.Alarms != nil {
		alarms = a.Alarms
	}

	a.Router = handler.NewRouter(handler.RouterConfig{
		AI:                 handler.NewAIHandler(a.Summarizer, logger),
		Stats:              handler.NewStatsHandler(service.NewStatsService(links, clicks, cfg.TopNReferer, nil), logger),
		Jobs:               handler.NewJobsHandler(a.Analyzer, alarms, logger),
		Health:             handler.NewHealthHandler(checks),
		Metrics:            a.Metrics.Handler(),
		JobsToken:          cfg.JobsToken,
		AllowedOrigins:     cfg.GetCORSAllowedOrigins(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Logger:             logger,
	})

	logger.Info("components wired",
		"state_backend", cfg.StateBackend,
		"ai_enabled", cfg.AIEnabled,
		"alarm_summaries", a.Alarms != nil,
		"export_enabled", deps.Exporter != nil,
		"cloudwatch_enabled", cfg.CloudWatchEnabled,
	)
	return a, nil
}

// stateStore picks the key/value backend for the alert watermark and the
// export checkpoint. Without a bucket the S3 backend degrades to memory.
func (a *App) stateStore(ctx context.Context, objects *statestore.S3Store) (statestore.Store, error) {
	if a.Config.StateBackend == config.StateBackendRedis {
		client, err := statestore.DialRedis(ctx, a.Config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %s", SanitizeError(err, a.Config.RedisURL))
		}
		a.redis = client
		a.Logger.Info("connected to redis", "redis_url", RedactURL(a.Config.RedisURL))
		return statestore.NewRedis(client, redisKeyPrefix), nil
	}
	if objects == nil {
		a.Logger.Warn("ANALYTICS_BUCKET is not set; alert state is kept in memory")
		return statestore.NewMemory(), nil
	}
	return objects, nil
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Error("redis close failed", "error", err)
		}
	}
	if a.Repo != nil {
		a.Repo.Close()
	}
}

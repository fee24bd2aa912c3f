// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// State backends for the alert watermark and the export checkpoint.
const (
	StateBackendS3    = "s3"
	StateBackendRedis = "redis"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Key/value state
	RedisURL     string `env:"REDIS_URL"`
	StateBackend string `env:"STATE_BACKEND" envDefault:"s3"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Aggregation
	TopNReferer         int `env:"TOP_N_REFERER" envDefault:"5"`
	MaxURLsPerRun       int `env:"MAX_URLS_PER_RUN" envDefault:"200"`
	MaxClicksPerSID     int `env:"MAX_CLICKS_PER_SID" envDefault:"1000"`
	SuspWindowSec       int `env:"SUSP_WINDOW_SEC" envDefault:"60"`
	SuspRepeatThreshold int `env:"SUSP_REPEAT_THRESHOLD" envDefault:"10"`

	// Alerting
	SlackWebhookURL   string        `env:"SLACK_WEBHOOK_URL"`
	SlackAIWebhookURL string        `env:"SLACK_AI_WEBHOOK_URL"`
	AlertOnlyPeriod   string        `env:"ALERT_ONLY_PERIOD" envDefault:"P#1H"`
	AlertStateKey     string        `env:"ALERT_STATE_KEY" envDefault:"analytics/state/alert_last_suspicious_by_sid_p1h.json"`
	MaxAlertsPerRun   int           `env:"MAX_ALERTS_PER_RUN" envDefault:"5"`
	NotifyTimeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
	NotifyMaxRetries  uint64        `env:"NOTIFY_MAX_RETRIES" envDefault:"2"`

	// Export
	ExportEnabled       bool   `env:"EXPORT_ENABLED" envDefault:"false"`
	AnalyticsBucket     string `env:"ANALYTICS_BUCKET"`
	AnalyticsPrefix     string `env:"ANALYTICS_PREFIX" envDefault:"analytics"`
	ExportCheckpointKey string `env:"EXPORT_CHECKPOINT_KEY"`

	// AWS
	AWSRegion          string `env:"AWS_REGION" envDefault:"ap-northeast-2"`
	AWSEndpointURL     string `env:"AWS_ENDPOINT_URL"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	// Text generation
	AIEnabled             bool     `env:"AI_ENABLED" envDefault:"true"`
	BedrockModelTrend     string   `env:"BEDROCK_MODEL_TREND" envDefault:"amazon.nova-micro-v1:0"`
	BedrockModelInsight   string   `env:"BEDROCK_MODEL_INSIGHT" envDefault:"amazon.nova-lite-v1:0"`
	BedrockModelAlarm     string   `env:"BEDROCK_MODEL_ALARM" envDefault:"amazon.nova-lite-v1:0"`
	AITopURLN             int      `env:"AI_TOP_URL_N" envDefault:"20"`
	AITopTimeBinN         int      `env:"AI_TOP_TIMEBIN_N" envDefault:"10"`
	AIPeriodDefault       string   `env:"AI_PERIOD_DEFAULT" envDefault:"P#30MIN"`
	AISourcePeriodDefault string   `env:"AI_SOURCE_PERIOD_DEFAULT" envDefault:"P#24H"`
	AIOnStates            []string `env:"AI_ON_STATES" envDefault:"ALARM" envSeparator:","`
	SendOKSimple          bool     `env:"SEND_OK_SIMPLE" envDefault:"true"`

	// Metrics
	MetricsNamespace  string `env:"METRICS_NAMESPACE" envDefault:"UrlShortener/Analytics"`
	CloudWatchEnabled bool   `env:"CLOUDWATCH_ENABLED" envDefault:"false"`

	// Scheduling: job name to cron spec, e.g. "aggregate_1h=@hourly;ai=*/30 * * * *"
	SchedulerEnabled bool              `env:"SCHEDULER_ENABLED" envDefault:"false"`
	Schedules        map[string]string `env:"SCHEDULES" envSeparator:";" envKeyValSeparator:"="`

	// HTTP
	JobsToken          string `env:"JOBS_TOKEN"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`
	MaxRequestBodySize int64  `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SuspWindow returns the burst window as a duration.
func (c *Config) SuspWindow() time.Duration {
	return time.Duration(c.SuspWindowSec) * time.Second
}

// ExportCheckpoint returns the checkpoint key, derived from the prefix when unset.
func (c *Config) ExportCheckpoint() string {
	if c.ExportCheckpointKey != "" {
		return c.ExportCheckpointKey
	}
	return strings.TrimSuffix(c.AnalyticsPrefix, "/") + "/state/last_export_ts.json"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Schedule is one named cron entry.
type Schedule struct {
	Name string
	Spec string
}

// ScheduleSpecs returns the configured schedules sorted by name.
func (c *Config) ScheduleSpecs() []Schedule {
	out := make([]Schedule, 0, len(c.Schedules))
	for name, spec := range c.Schedules {
		name, spec = strings.TrimSpace(name), strings.TrimSpace(spec)
		if name == "" || spec == "" {
			continue
		}
		out = append(out, Schedule{Name: name, Spec: spec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.StateBackend != StateBackendS3 && cfg.StateBackend != StateBackendRedis {
		return nil, fmt.Errorf("failed to parse config: unknown STATE_BACKEND %q", cfg.StateBackend)
	}
	if cfg.StateBackend == StateBackendRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("failed to parse config: REDIS_URL is required for the redis state backend")
	}
	return cfg, nil
}

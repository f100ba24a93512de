package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                   string
	AppEnv                    string
	AppPort                   string
	DatabaseDriver            string
	DatabaseURL               string
	DatabaseMaxOpenConns      int
	DatabaseMaxIdleConns      int
	DatabaseConnMaxLife       time.Duration
	DatabaseSlowQuery         time.Duration
	RedisURL                  string
	NATSURL                   string
	EventsSubjectPrefix       string
	RealtimeChannel           string
	JWTSecret                 string
	CORSAllowOrigins          string
	CloudinaryCloudName       string
	CloudinaryAPIKey          string
	CloudinaryAPISecret       string
	CloudinaryUploadFolder    string
	AIProvider                string
	OpenAIAPIKey              string
	OpenAIBaseURL             string
	AIModel                   string
	AIMaxTokens               int
	AITemperature             float32
	EvaluationWorkers         int
	EvaluationCallTimeout     time.Duration
	EvaluationClaimTTL        time.Duration
	LeaderboardCacheTTL       time.Duration
	AnalyticsCacheTTL         time.Duration
	SubmissionMaxFileBytes    int64
	NotificationKeepAlive     time.Duration
	SubmissionRateLimitPerMin int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "InkLaunch API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_life", "30m")
	v.SetDefault("database.slow_query", "500ms")
	v.SetDefault("events.channel", "inklaunch.competitions")
	v.SetDefault("realtime.channel", "inklaunch")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("cloudinary.folder", "inklaunch/manuscripts")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_tokens", 1200)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("evaluation.workers", 4)
	v.SetDefault("evaluation.call_timeout", "90s")
	v.SetDefault("evaluation.claim_ttl", "15m")
	v.SetDefault("leaderboard.cache_ttl", "2m")
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("submission.max_file_mb", 20)
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("rate_limit.submissions_per_minute", 10)

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"database.conn_max_life",
		"database.slow_query",
		"evaluation.call_timeout",
		"evaluation.claim_ttl",
		"leaderboard.cache_ttl",
		"analytics.cache_ttl",
		"notifications.keepalive",
	} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                   v.GetString("app.name"),
		AppEnv:                    v.GetString("app.env"),
		AppPort:                   v.GetString("app.port"),
		DatabaseDriver:            strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:               v.GetString("database.url"),
		DatabaseMaxOpenConns:      v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:      v.GetInt("database.max_idle_conns"),
		DatabaseConnMaxLife:       durations["database.conn_max_life"],
		DatabaseSlowQuery:         durations["database.slow_query"],
		RedisURL:                  v.GetString("redis.url"),
		NATSURL:                   v.GetString("nats.url"),
		EventsSubjectPrefix:       v.GetString("events.channel"),
		RealtimeChannel:           v.GetString("realtime.channel"),
		JWTSecret:                 v.GetString("jwt.secret"),
		CORSAllowOrigins:          v.GetString("cors.allow_origins"),
		CloudinaryCloudName:       v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:          v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:       v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder:    v.GetString("cloudinary.folder"),
		AIProvider:                strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:              v.GetString("openai_api_key"),
		OpenAIBaseURL:             v.GetString("ai.base_url"),
		AIModel:                   v.GetString("ai.model"),
		AIMaxTokens:               v.GetInt("ai.max_tokens"),
		AITemperature:             float32(v.GetFloat64("ai.temperature")),
		EvaluationWorkers:         v.GetInt("evaluation.workers"),
		EvaluationCallTimeout:     durations["evaluation.call_timeout"],
		EvaluationClaimTTL:        durations["evaluation.claim_ttl"],
		LeaderboardCacheTTL:       durations["leaderboard.cache_ttl"],
		AnalyticsCacheTTL:         durations["analytics.cache_ttl"],
		SubmissionMaxFileBytes:    int64(v.GetInt("submission.max_file_mb")) << 20,
		NotificationKeepAlive:     durations["notifications.keepalive"],
		SubmissionRateLimitPerMin: v.GetInt("rate_limit.submissions_per_minute"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.EvaluationWorkers <= 0 {
		cfg.EvaluationWorkers = 4
	}
	if cfg.SubmissionMaxFileBytes <= 0 {
		cfg.SubmissionMaxFileBytes = 20 << 20
	}
	if cfg.SubmissionRateLimitPerMin <= 0 {
		cfg.SubmissionRateLimitPerMin = 10
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Runner backends.
const (
	RunnerBackendProcess = "process"
	RunnerBackendDocker  = "docker"
)

// Config holds runtime configuration values for the autograder.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	JWTSecret         string
	LogLevel          string
	LogFormat         string
	LogFile           string
	DashboardCacheTTL time.Duration

	RunnerBackend       string
	RunnerGoBinary      string
	RunnerWorkspaceRoot string
	RunnerMaxConcurrent int64
	ExecutionTimeout    time.Duration
	DockerHost          string
	RunnerImage         string
	CodeRunMemoryMB     int
	CodeRunCPUShares    int

	AIAPIKey      string
	AIBaseURL     string
	AIModels      []string
	AIMaxTokens   int
	AITemperature float32

	EnrichmentWorkers   int
	EnrichmentQueueSize int
	EnrichmentSubject   string

	SubmissionRateLimit int
	FixScratchDir       string
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
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	return cfg, nil
}

// LoadTooling reads the same configuration for command line tools, which
// never issue tokens and so do not need the JWT secret.
func LoadTooling() (Config, error) {
	return load()
}

func load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Autograder")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("runner.backend", RunnerBackendProcess)
	v.SetDefault("runner.go_binary", "go")
	v.SetDefault("runner.workspace_root", os.TempDir())
	v.SetDefault("runner.max_concurrent", 4)
	v.SetDefault("runner.image", "golang:1.24-alpine")
	v.SetDefault("execution_timeout_ms", 10000)
	v.SetDefault("code_run_memory_mb", 256)
	v.SetDefault("code_run_cpu_shares", 512)
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("ai.models", "gemini-2.5-flash,gemini-2.5-pro,gemini-pro-latest,gemini-flash-latest")
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.temperature", 0.4)
	v.SetDefault("enrichment.workers", 2)
	v.SetDefault("enrichment.queue_size", 64)
	v.SetDefault("enrichment.subject", "gema.enrichment")
	v.SetDefault("submission.rate_limit", 10)
	v.SetDefault("fix.scratch_dir", os.TempDir())

	ttlString := v.GetString("dashboard.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid dashboard cache ttl: %w", err)
	}

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		LogLevel:          strings.ToLower(v.GetString("log.level")),
		LogFormat:         strings.ToLower(v.GetString("log.format")),
		LogFile:           v.GetString("log.file"),
		DashboardCacheTTL: ttl,

		RunnerBackend:       strings.ToLower(v.GetString("runner.backend")),
		RunnerGoBinary:      v.GetString("runner.go_binary"),
		RunnerWorkspaceRoot: v.GetString("runner.workspace_root"),
		RunnerMaxConcurrent: v.GetInt64("runner.max_concurrent"),
		ExecutionTimeout:    time.Duration(timeoutMs) * time.Millisecond,
		DockerHost:          v.GetString("docker_host"),
		RunnerImage:         v.GetString("runner.image"),
		CodeRunMemoryMB:     v.GetInt("code_run_memory_mb"),
		CodeRunCPUShares:    v.GetInt("code_run_cpu_shares"),

		AIAPIKey:      firstNonEmpty(v.GetString("ai.api_key"), os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		AIBaseURL:     v.GetString("ai.base_url"),
		AIModels:      splitList(v.GetString("ai.models")),
		AIMaxTokens:   v.GetInt("ai.max_tokens"),
		AITemperature: float32(v.GetFloat64("ai.temperature")),

		EnrichmentWorkers:   v.GetInt("enrichment.workers"),
		EnrichmentQueueSize: v.GetInt("enrichment.queue_size"),
		EnrichmentSubject:   v.GetString("enrichment.subject"),

		SubmissionRateLimit: v.GetInt("submission.rate_limit"),
		FixScratchDir:       v.GetString("fix.scratch_dir"),
	}

	switch cfg.RunnerBackend {
	case RunnerBackendProcess, RunnerBackendDocker:
	default:
		return Config{}, fmt.Errorf("unknown runner backend %q", cfg.RunnerBackend)
	}

	if cfg.CodeRunMemoryMB <= 0 {
		cfg.CodeRunMemoryMB = 256
	}

	if cfg.CodeRunCPUShares <= 0 {
		cfg.CodeRunCPUShares = 512
	}

	if cfg.SubmissionRateLimit <= 0 {
		cfg.SubmissionRateLimit = 10
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

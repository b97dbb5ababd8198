package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Scanner      ScannerConfig      `json:"scanner"`
	Registry     RegistryConfig     `json:"registry"`
	Redis        RedisConfig        `json:"redis"`
	Logging      LoggingConfig      `json:"logging"`
	GitHub       GitHubConfig       `json:"github"`
	Jira         JiraConfig         `json:"jira"`
	Supabase     SupabaseConfig     `json:"supabase"`
	Notify       NotifyConfig       `json:"notify"`
	Tracing      TracingConfig      `json:"tracing"`
}

// ServerConfig contains the admin HTTP server's (/healthz, /metrics) configuration.
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// ScannerConfig contains the scanner runner's (C4) timeout and path policy.
type ScannerConfig struct {
	DefaultTimeout time.Duration `json:"default_timeout"`
	MaxTimeout     time.Duration `json:"max_timeout"`
	VersionProbeTimeout time.Duration `json:"version_probe_timeout"`
	AuditLogPath   string        `json:"audit_log_path"`
}

// RegistryConfig contains the best-effort Postgres mirror's connection settings.
type RegistryConfig struct {
	DatabaseURL     string        `json:"database_url"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// RedisConfig contains the ticket-writer dedup/rate cache's connection settings.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// GitHubConfig holds GitHub ticket-target credentials: either a personal
// access token, or a GitHub App installation.
type GitHubConfig struct {
	Token                string `json:"token"`
	AppID                int64  `json:"app_id"`
	AppPrivateKey        string `json:"app_private_key"`
	AppInstallationID    int64  `json:"app_installation_id"`
}

// UsesApp reports whether App-based authentication is configured.
func (g GitHubConfig) UsesApp() bool {
	return g.AppID != 0 && g.AppPrivateKey != "" && g.AppInstallationID != 0
}

// JiraConfig holds Jira ticket-target credentials.
type JiraConfig struct {
	BaseURL    string `json:"base_url"`
	Email      string `json:"email"`
	APIToken   string `json:"api_token"`
	ProjectKey string `json:"project_key"`
}

// SupabaseConfig holds optional Supabase Storage archival settings.
type SupabaseConfig struct {
	URL            string `json:"url"`
	ServiceRoleKey string `json:"service_role_key"`
	ExportBucket   string `json:"export_bucket"`
}

// Enabled reports whether Supabase archival is configured.
func (s SupabaseConfig) Enabled() bool {
	return s.URL != "" && s.ServiceRoleKey != "" && s.ExportBucket != ""
}

// NotifyConfig holds best-effort packet-ready notification channel settings.
type NotifyConfig struct {
	SlackWebhookURL string `json:"slack_webhook_url"`
	TeamsWebhookURL string `json:"teams_webhook_url"`
	SMTPHost        string `json:"smtp_host"`
	SMTPPort        int    `json:"smtp_port"`
	SMTPFrom        string `json:"smtp_from"`
	SMTPTo          string `json:"smtp_to"`
	SMTPUsername    string `json:"smtp_username"`
	SMTPPassword    string `json:"smtp_password"`
}

// TracingConfig holds Jaeger exporter settings.
type TracingConfig struct {
	JaegerEndpoint string `json:"jaeger_endpoint"`
	ServiceName    string `json:"service_name"`
}

// Enabled reports whether a Jaeger collector endpoint was configured.
// Tracing is opt-in: with no endpoint set, every component falls back to a
// no-op tracer rather than failing to build a Jaeger exporter.
func (t TracingConfig) Enabled() bool {
	return t.JaegerEndpoint != ""
}

// Load loads configuration from environment variables with sensible
// defaults, first loading a .env file in development if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Scanner: ScannerConfig{
			DefaultTimeout:      getEnvDuration("SCANNER_DEFAULT_TIMEOUT", 10*time.Minute),
			MaxTimeout:          getEnvDuration("SCANNER_MAX_TIMEOUT", 60*time.Minute),
			VersionProbeTimeout: getEnvDuration("SCANNER_VERSION_PROBE_TIMEOUT", 10*time.Second),
			AuditLogPath:        getEnvString("AUDIT_LOG_PATH", "logs/compliance-audit-chain.jsonl"),
		},
		Registry: RegistryConfig{
			DatabaseURL:     getEnvString("REGISTRY_DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("REGISTRY_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("REGISTRY_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvDuration("REGISTRY_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", ""),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		GitHub: GitHubConfig{
			Token:             getEnvString("GITHUB_TOKEN", ""),
			AppID:             getEnvInt64("GITHUB_APP_ID", 0),
			AppPrivateKey:     getEnvString("GITHUB_APP_PRIVATE_KEY", ""),
			AppInstallationID: getEnvInt64("GITHUB_APP_INSTALLATION_ID", 0),
		},
		Jira: JiraConfig{
			BaseURL:    getEnvString("JIRA_BASE_URL", ""),
			Email:      getEnvString("JIRA_EMAIL", ""),
			APIToken:   getEnvString("JIRA_API_TOKEN", ""),
			ProjectKey: getEnvString("JIRA_PROJECT_KEY", ""),
		},
		Supabase: SupabaseConfig{
			URL:            getEnvString("SUPABASE_URL", ""),
			ServiceRoleKey: getEnvString("SUPABASE_SERVICE_ROLE_KEY", ""),
			ExportBucket:   getEnvString("SUPABASE_EXPORT_BUCKET", ""),
		},
		Notify: NotifyConfig{
			SlackWebhookURL: getEnvString("SLACK_WEBHOOK_URL", ""),
			TeamsWebhookURL: getEnvString("TEAMS_WEBHOOK_URL", ""),
			SMTPHost:        getEnvString("NOTIFY_SMTP_HOST", ""),
			SMTPPort:        getEnvInt("NOTIFY_SMTP_PORT", 587),
			SMTPFrom:        getEnvString("NOTIFY_SMTP_FROM", ""),
			SMTPTo:          getEnvString("NOTIFY_SMTP_TO", ""),
			SMTPUsername:    getEnvString("NOTIFY_SMTP_USERNAME", ""),
			SMTPPassword:    getEnvString("NOTIFY_SMTP_PASSWORD", ""),
		},
		Tracing: TracingConfig{
			JaegerEndpoint: getEnvString("JAEGER_ENDPOINT", ""),
			ServiceName:    getEnvString("TRACING_SERVICE_NAME", "compliance-navigator"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks the minimal set of invariants the core always needs.
// Everything else (registry, GitHub/Jira, Supabase, notifications, tracing)
// is optional and validated lazily by the component that uses it.
func (c *Config) Validate() error {
	if c.Scanner.MaxTimeout < c.Scanner.DefaultTimeout {
		return fmt.Errorf("scanner max timeout must be >= default timeout")
	}
	if c.Scanner.AuditLogPath == "" {
		return fmt.Errorf("audit log path is required")
	}
	return nil
}

// Helper functions for environment variable parsing.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

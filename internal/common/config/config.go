// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Tavus         TavusConfig         `mapstructure:"tavus"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Realtime      RealtimeConfig      `mapstructure:"realtime"`
	Integrations  IntegrationConfig   `mapstructure:"integrations"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// IsProduction reports whether the service runs with production semantics.
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
}

// TavusConfig holds the webhook secret and the tool-call parsing toggles.
type TavusConfig struct {
	WebhookSecret        string `mapstructure:"webhook_secret"`
	ToolcallTextFallback bool   `mapstructure:"toolcall_text_fallback"`
	E2ETestMode          bool   `mapstructure:"e2e_test_mode"`
	SignedURLTTL         int    `mapstructure:"signed_url_ttl"` // seconds
}

// SignedURLDuration returns the presigned URL lifetime.
func (t TavusConfig) SignedURLDuration() time.Duration {
	return time.Duration(t.SignedURLTTL) * time.Second
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig configures the optional analytics index.
type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	DemoCacheTTL int    `mapstructure:"demo_cache_ttl"` // seconds
}

// StorageConfig points at the S3-compatible bucket holding demo videos.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseTLS    bool   `mapstructure:"use_tls"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

type RealtimeConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ChannelPrefix  string   `mapstructure:"channel_prefix"`
}

// IntegrationConfig holds settings for outbound notifications.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}

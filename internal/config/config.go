// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Catalog  CatalogConfig
	Scorer   ScorerConfig
	Pipeline PipelineConfig
	Identity IdentityConfig
	Mail     MailConfig
	PDF      PDFConfig
	Logging  LoggingConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	Port           int
	MaxConnections int
	MinConnections int
}

// RedisConfig contains the lease store connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RabbitMQConfig contains RabbitMQ connection and queue configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
}

// CatalogConfig contains the external video catalog configuration.
type CatalogConfig struct {
	APIKey            string
	RequestTimeout    time.Duration
	RequestsPerSecond int
}

// ScorerConfig contains the similarity scoring service configuration.
type ScorerConfig struct {
	BaseURL         string
	Timeout         time.Duration
	RegistryVersion string
}

// PipelineConfig contains the survey cycle tuning knobs.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type PipelineConfig struct {
	MinDuration        int
	MaxDuration        int
	MaxResultsPerQuery int
	DiscoveryWindow    time.Duration
	CopiedThreshold    float64
	QueryFanout        int
	ScoreFanout        int
	MaxScoreAttempts   int
	LeaseTTL           time.Duration
	CycleTimeout       time.Duration
	CycleInterval      time.Duration
}

// IdentityConfig points at the identity collaborator.
type IdentityConfig struct {
	BaseURL string
	Timeout time.Duration
}

// MailConfig points at the transactional mail collaborator.
type MailConfig struct {
	BaseURL string
	From    string
	To      string
}

// PDFConfig points at the notice PDF renderer collaborator.
type PDFConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Pipeline.MinDuration > cfg.Pipeline.MaxDuration {
		return nil, fmt.Errorf("pipeline.minduration %d exceeds pipeline.maxduration %d",
			cfg.Pipeline.MinDuration, cfg.Pipeline.MaxDuration)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "securerights")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 2)

	// Redis (per-video scoring leases)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// RabbitMQ (completed-result events)
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "securerights.results")
	viper.SetDefault("rabbitmq.queue", "securerights.results.completed")
	viper.SetDefault("rabbitmq.routingkey", "result.completed")

	// Catalog
	viper.SetDefault("catalog.apikey", "")
	viper.SetDefault("catalog.requesttimeout", 10*time.Second)
	viper.SetDefault("catalog.requestspersecond", 5)

	// Scorer
	viper.SetDefault("scorer.baseurl", "http://localhost:8001")
	viper.SetDefault("scorer.timeout", 2*time.Minute)
	viper.SetDefault("scorer.registryversion", "v1")

	// Pipeline
	viper.SetDefault("pipeline.minduration", 15)
	viper.SetDefault("pipeline.maxduration", 600)
	viper.SetDefault("pipeline.maxresultsperquery", 10)
	viper.SetDefault("pipeline.discoverywindow", 7*24*time.Hour)
	viper.SetDefault("pipeline.copiedthreshold", 40.0)
	viper.SetDefault("pipeline.queryfanout", 4)
	viper.SetDefault("pipeline.scorefanout", 2)
	viper.SetDefault("pipeline.maxscoreattempts", 3)
	viper.SetDefault("pipeline.leasettl", 10*time.Minute)
	viper.SetDefault("pipeline.cycletimeout", 30*time.Minute)
	// Zero disables the scheduler; cycles then run on demand only.
	viper.SetDefault("pipeline.cycleinterval", 10*time.Minute)

	// Identity
	viper.SetDefault("identity.baseurl", "http://localhost:8002")
	viper.SetDefault("identity.timeout", 5*time.Second)

	// Mail
	viper.SetDefault("mail.baseurl", "http://localhost:8003")
	viper.SetDefault("mail.from", "alerts@securerights.example")
	viper.SetDefault("mail.to", "")

	// PDF renderer
	viper.SetDefault("pdf.baseurl", "http://localhost:8004")
	viper.SetDefault("pdf.timeout", 30*time.Second)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}

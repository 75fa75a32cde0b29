package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	MaxDBConns  int
	RedisURL    string

	EngineURL          string
	EngineTimeout      time.Duration
	EngineRetryMax     int
	EngineRetryBackoff time.Duration

	DefaultAsset string
	FeeBps       int64

	IdempotencyTTL     time.Duration
	EventDedupTTL      time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		DatabaseURL string `yaml:"database_url"`
		MaxDBConns  int    `yaml:"max_db_conns"`
		RedisURL    string `yaml:"redis_url"`
		EngineURL   string `yaml:"engine_url"`
	} `yaml:"dependencies"`
	Links struct {
		DefaultAsset string `yaml:"default_asset"`
		FeeBps       int64  `yaml:"fee_bps"`
	} `yaml:"links"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "M21-Payment-Link-Service",
		HTTPPort:           8080,
		GRPCPort:           9090,
		MaxDBConns:         10,
		EngineTimeout:      60 * time.Second,
		EngineRetryMax:     3,
		EngineRetryBackoff: 2 * time.Second,
		DefaultAsset:       "USDC",
		FeeBps:             0,
		IdempotencyTTL:     7 * 24 * time.Hour,
		EventDedupTTL:      7 * 24 * time.Hour,
		OutboxPollInterval: 5 * time.Second,
		OutboxBatchSize:    100,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		cfg.DatabaseURL = f.Dependencies.DatabaseURL
		if f.Dependencies.MaxDBConns > 0 {
			cfg.MaxDBConns = f.Dependencies.MaxDBConns
		}
		cfg.RedisURL = f.Dependencies.RedisURL
		cfg.EngineURL = f.Dependencies.EngineURL
		if f.Links.DefaultAsset != "" {
			cfg.DefaultAsset = f.Links.DefaultAsset
		}
		if f.Links.FeeBps > 0 {
			cfg.FeeBps = f.Links.FeeBps
		}
	}

	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.EngineURL = envOrDefault("ENGINE_URL", cfg.EngineURL)
	cfg.DefaultAsset = envOrDefault("LINK_DEFAULT_ASSET", cfg.DefaultAsset)
	cfg.FeeBps = int64(envInt("LINK_FEE_BPS", int(cfg.FeeBps)))
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = envInt("MAX_DB_CONNS", cfg.MaxDBConns)
	cfg.EngineTimeout = time.Duration(envInt("ENGINE_TIMEOUT_SECONDS", int(cfg.EngineTimeout.Seconds()))) * time.Second
	cfg.EngineRetryMax = envInt("ENGINE_RETRY_MAX", cfg.EngineRetryMax)
	cfg.EngineRetryBackoff = time.Duration(envInt("ENGINE_RETRY_BACKOFF_SECONDS", int(cfg.EngineRetryBackoff.Seconds()))) * time.Second
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

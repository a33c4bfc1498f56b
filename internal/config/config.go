// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package config loads application configuration with Koanf v2 layering:
// struct defaults first, an optional YAML file second, environment
// variables last. The loaded Config is immutable and safe for concurrent
// reads.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/antonioacampos/letterbesdbackend/internal/validation"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/letterbesd/config.yaml",
	"/etc/letterbesd/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config holds all application settings.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Cache      CacheConfig      `koanf:"cache"`
	Letterboxd LetterboxdConfig `koanf:"letterboxd"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig configures the optional Postgres ratings store. An empty
// URL disables the store and the service runs scrape-only.
type DatabaseConfig struct {
	URL       string `koanf:"url"`
	MinRaters int    `koanf:"min_raters" validate:"gte=1"`
}

// Enabled reports whether a database URL is configured.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// CacheConfig configures the in-memory snapshot cache.
type CacheConfig struct {
	TTL        time.Duration `koanf:"ttl" validate:"gt=0"`
	MaxEntries int           `koanf:"max_entries" validate:"gte=1"`
}

// LetterboxdConfig configures the scraper.
type LetterboxdConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"url"`
	PageInterval time.Duration `koanf:"page_interval" validate:"gte=0"`
	PageLimit    int           `koanf:"page_limit" validate:"gte=1,lte=20"`
}

// RecommendConfig configures the recommendation flow.
type RecommendConfig struct {
	TopN            int           `koanf:"top_n" validate:"gte=1,lte=50"`
	Deadline        time.Duration `koanf:"deadline" validate:"gt=0"`
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gt=0"`
}

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	RequestsPerMinute int `koanf:"requests_per_minute" validate:"gte=1"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			URL:       "",
			MinRaters: 2,
		},
		Cache: CacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
		},
		Letterboxd: LetterboxdConfig{
			BaseURL:      "https://letterboxd.com",
			PageInterval: time.Second,
			PageLimit:    5,
		},
		Recommend: RecommendConfig{
			TopN:            5,
			Deadline:        10 * time.Second,
			RefreshInterval: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints via struct tags.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c)
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env var strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DATABASE_URL -> database.url
//   - CACHE_TTL -> cache.ttl
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"http_host":        "server.host",
		"http_port":        "server.port",
		"read_timeout":     "server.read_timeout",
		"write_timeout":    "server.write_timeout",
		"shutdown_timeout": "server.shutdown_timeout",
		"cors_origins":     "server.cors_origins",

		"database_url":       "database.url",
		"database_minraters": "database.min_raters",

		"cache_ttl":         "cache.ttl",
		"cache_max_entries": "cache.max_entries",

		"letterboxd_base_url":      "letterboxd.base_url",
		"letterboxd_page_interval": "letterboxd.page_interval",
		"letterboxd_page_limit":    "letterboxd.page_limit",

		"recommend_top_n":       "recommend.top_n",
		"recommend_deadline":    "recommend.deadline",
		"popularity_refresh":    "recommend.refresh_interval",
		"rate_limit_per_minute": "rate_limit.requests_per_minute",

		"log_level":  "logging.level",
		"log_format": "logging.format",
	}
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	// Unknown variables are dropped so arbitrary process env does not
	// collide with config keys.
	return ""
}

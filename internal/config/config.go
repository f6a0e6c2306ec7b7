// Package config loads the relay's configuration from environment
// variables (prefix PULSAR_), an optional config.yaml, and built-in
// defaults, in that precedence order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server
	APIPort string

	// Storage backend: "memory" or "store".
	StorageBackend string

	// Store (Redis) connection.
	StoreHost     string
	StorePort     int
	StorePassword string
	StoreTLS      bool

	// Log trim cap and retention.
	MaxMessagesPerTopic     int
	PersistentTierRetention time.Duration
	HotTierRetention        time.Duration

	// JWT
	JWTSecretKey         string
	JWTAlgorithm         string
	JWTExpirationMinutes int

	// Bootstrap admin, created on startup if set.
	BootstrapAdminUsername string
	BootstrapAdminPassword string
	BootstrapAdminEmail    string

	// App
	LogLevel string
}

// fileConfig mirrors Config's yaml-recognized keys. Only fields present in
// config.yaml override the built-in defaults; env vars override both.
type fileConfig struct {
	APIPort                 *string `yaml:"api_port"`
	StorageBackend          *string `yaml:"storage_backend"`
	StoreHost               *string `yaml:"store_host"`
	StorePort               *int    `yaml:"store_port"`
	StorePassword           *string `yaml:"store_password"`
	StoreTLS                *bool   `yaml:"store_tls"`
	MaxMessagesPerTopic     *int    `yaml:"max_messages_per_topic"`
	PersistentTierRetention *string `yaml:"persistent_tier_retention"`
	HotTierRetention        *string `yaml:"hot_tier_retention"`
	JWTSecretKey            *string `yaml:"jwt_secret_key"`
	JWTAlgorithm            *string `yaml:"jwt_algorithm"`
	JWTExpirationMinutes    *int    `yaml:"jwt_expiration_minutes"`
	BootstrapAdminUsername  *string `yaml:"bootstrap_admin_username"`
	BootstrapAdminPassword  *string `yaml:"bootstrap_admin_password"`
	BootstrapAdminEmail     *string `yaml:"bootstrap_admin_email"`
	LogLevel                *string `yaml:"log_level"`
}

// Load builds a Config from config.yaml (if present at path, optional) and
// PULSAR_-prefixed environment variables, falling back to built-in
// defaults. Environment variables always win over the config file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		APIPort:                 "8080",
		StorageBackend:          "memory",
		StoreHost:               "localhost",
		StorePort:               6379,
		MaxMessagesPerTopic:     1000,
		PersistentTierRetention: 7 * 24 * time.Hour,
		HotTierRetention:        time.Hour,
		JWTAlgorithm:            "HS256",
		JWTExpirationMinutes:    60,
		LogLevel:                "info",
	}

	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.APIPort != nil {
		cfg.APIPort = *fc.APIPort
	}
	if fc.StorageBackend != nil {
		cfg.StorageBackend = *fc.StorageBackend
	}
	if fc.StoreHost != nil {
		cfg.StoreHost = *fc.StoreHost
	}
	if fc.StorePort != nil {
		cfg.StorePort = *fc.StorePort
	}
	if fc.StorePassword != nil {
		cfg.StorePassword = *fc.StorePassword
	}
	if fc.StoreTLS != nil {
		cfg.StoreTLS = *fc.StoreTLS
	}
	if fc.MaxMessagesPerTopic != nil {
		cfg.MaxMessagesPerTopic = *fc.MaxMessagesPerTopic
	}
	if fc.PersistentTierRetention != nil {
		d, err := time.ParseDuration(*fc.PersistentTierRetention)
		if err != nil {
			return fmt.Errorf("config: persistent_tier_retention: %w", err)
		}
		cfg.PersistentTierRetention = d
	}
	if fc.HotTierRetention != nil {
		d, err := time.ParseDuration(*fc.HotTierRetention)
		if err != nil {
			return fmt.Errorf("config: hot_tier_retention: %w", err)
		}
		cfg.HotTierRetention = d
	}
	if fc.JWTSecretKey != nil {
		cfg.JWTSecretKey = *fc.JWTSecretKey
	}
	if fc.JWTAlgorithm != nil {
		cfg.JWTAlgorithm = *fc.JWTAlgorithm
	}
	if fc.JWTExpirationMinutes != nil {
		cfg.JWTExpirationMinutes = *fc.JWTExpirationMinutes
	}
	if fc.BootstrapAdminUsername != nil {
		cfg.BootstrapAdminUsername = *fc.BootstrapAdminUsername
	}
	if fc.BootstrapAdminPassword != nil {
		cfg.BootstrapAdminPassword = *fc.BootstrapAdminPassword
	}
	if fc.BootstrapAdminEmail != nil {
		cfg.BootstrapAdminEmail = *fc.BootstrapAdminEmail
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIPort = getEnv("PULSAR_API_PORT", cfg.APIPort)
	cfg.StorageBackend = getEnv("PULSAR_STORAGE_BACKEND", cfg.StorageBackend)
	cfg.StoreHost = getEnv("PULSAR_STORE_HOST", cfg.StoreHost)
	cfg.StorePort = getEnvInt("PULSAR_STORE_PORT", cfg.StorePort)
	cfg.StorePassword = getEnv("PULSAR_STORE_PASSWORD", cfg.StorePassword)
	cfg.StoreTLS = getEnvBool("PULSAR_STORE_TLS", cfg.StoreTLS)
	cfg.MaxMessagesPerTopic = getEnvInt("PULSAR_MAX_MESSAGES_PER_TOPIC", cfg.MaxMessagesPerTopic)
	cfg.PersistentTierRetention = getEnvDuration("PULSAR_PERSISTENT_TIER_RETENTION", cfg.PersistentTierRetention)
	cfg.HotTierRetention = getEnvDuration("PULSAR_HOT_TIER_RETENTION", cfg.HotTierRetention)
	cfg.JWTSecretKey = getEnv("PULSAR_JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.JWTAlgorithm = getEnv("PULSAR_JWT_ALGORITHM", cfg.JWTAlgorithm)
	cfg.JWTExpirationMinutes = getEnvInt("PULSAR_JWT_EXPIRATION_MINUTES", cfg.JWTExpirationMinutes)
	cfg.BootstrapAdminUsername = getEnv("PULSAR_BOOTSTRAP_ADMIN_USERNAME", cfg.BootstrapAdminUsername)
	cfg.BootstrapAdminPassword = getEnv("PULSAR_BOOTSTRAP_ADMIN_PASSWORD", cfg.BootstrapAdminPassword)
	cfg.BootstrapAdminEmail = getEnv("PULSAR_BOOTSTRAP_ADMIN_EMAIL", cfg.BootstrapAdminEmail)
	cfg.LogLevel = getEnv("PULSAR_LOG_LEVEL", cfg.LogLevel)
}

func (c *Config) validate() error {
	if c.StorageBackend != "memory" && c.StorageBackend != "store" {
		return fmt.Errorf("storage_backend must be \"memory\" or \"store\", got %q", c.StorageBackend)
	}
	if c.StorageBackend == "store" && c.StoreHost == "" {
		return fmt.Errorf("store_host is required when storage_backend is \"store\"")
	}
	if c.JWTSecretKey == "" {
		return fmt.Errorf("jwt_secret_key is required")
	}
	if c.MaxMessagesPerTopic <= 0 {
		return fmt.Errorf("max_messages_per_topic must be positive")
	}
	return nil
}

// JWTExpiration returns JWTExpirationMinutes as a time.Duration.
func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.JWTExpirationMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

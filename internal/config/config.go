// Package config loads server settings from a .env file (if present),
// the environment, and an optional YAML file, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable the server and cleanup binaries need.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	NATSURL string `yaml:"nats_url"`

	RoomTTL    time.Duration `yaml:"room_ttl"`
	Countdown  time.Duration `yaml:"countdown"`
	GuessLimit int           `yaml:"guess_limit"`
	MaxPlayers int           `yaml:"max_players"`
	MaxBoards  int           `yaml:"max_boards"`

	QueueRetryAttempts int           `yaml:"queue_retry_attempts"`
	QueueBaseDelay     time.Duration `yaml:"queue_base_delay"`
	QueueMaxSize       int           `yaml:"queue_max_size"`
}

// Load resolves the configuration. A .env file in the working directory is
// loaded first when present; environment variables override YAML values, and
// YAML (path from WUZZLE_CONFIG, optional) overrides the defaults.
func Load() (*Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("WUZZLE_CONFIG"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvAsInt("REDIS_DB", cfg.RedisDB)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.RoomTTL = getEnvAsDuration("ROOM_TTL", cfg.RoomTTL)
	cfg.Countdown = getEnvAsDuration("COUNTDOWN", cfg.Countdown)
	cfg.GuessLimit = getEnvAsInt("GUESS_LIMIT", cfg.GuessLimit)
	cfg.MaxPlayers = getEnvAsInt("MAX_PLAYERS", cfg.MaxPlayers)
	cfg.MaxBoards = getEnvAsInt("MAX_BOARDS", cfg.MaxBoards)
	cfg.QueueRetryAttempts = getEnvAsInt("QUEUE_RETRY_ATTEMPTS", cfg.QueueRetryAttempts)
	cfg.QueueBaseDelay = getEnvAsDuration("QUEUE_BASE_DELAY", cfg.QueueBaseDelay)
	cfg.QueueMaxSize = getEnvAsInt("QUEUE_MAX_SIZE", cfg.QueueMaxSize)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTPAddr:           ":8080",
		RedisAddr:          "localhost:6379",
		RedisDB:            0,
		NATSURL:            "nats://localhost:4222",
		RoomTTL:            30 * time.Minute,
		Countdown:          3 * time.Second,
		GuessLimit:         6,
		MaxPlayers:         8,
		MaxBoards:          8,
		QueueRetryAttempts: 3,
		QueueBaseDelay:     2 * time.Second,
		QueueMaxSize:       100,
	}
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	if c.RoomTTL <= 0 {
		return fmt.Errorf("ROOM_TTL must be positive, got %s", c.RoomTTL)
	}
	if c.GuessLimit <= 0 {
		return fmt.Errorf("GUESS_LIMIT must be positive, got %d", c.GuessLimit)
	}
	if c.MaxBoards <= 0 {
		return fmt.Errorf("MAX_BOARDS must be positive, got %d", c.MaxBoards)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

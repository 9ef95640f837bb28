package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Store backends
const (
	BackendBolt  = "bolt"
	BackendMongo = "mongo"
)

// Config holds all application configuration
type Config struct {
	// Telegram
	BotToken            string
	TelegramAPIEndpoint string // Optional, e.g. a self-hosted Bot API server

	// TMDB
	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBImageBaseURL string
	TMDBLanguage     string
	LookupCacheTTL   time.Duration

	// Sweep
	SweepSchedule string // cron expression (default: daily at 18:00)
	SweepTimezone string
	SweepWorkers  int

	// Storage
	StoreBackend  string // "bolt" or "mongo"
	MongoURI      string
	MongoDatabase string

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/releasebot.db

	// Logging
	LogLevel string
	LogFile  string

	// Tracing
	TraceExporter string // "log" or "none"
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	v.SetDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3")
	v.SetDefault("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500")
	v.SetDefault("TMDB_LANGUAGE", "en-US")
	v.SetDefault("LOOKUP_CACHE_MINUTES", 60)
	v.SetDefault("SWEEP_SCHEDULE", "0 18 * * *")
	v.SetDefault("SWEEP_TIMEZONE", "UTC")
	v.SetDefault("SWEEP_WORKERS", 4)
	v.SetDefault("STORE_BACKEND", BackendBolt)
	v.SetDefault("MONGODB_DATABASE", "releasebot")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TRACE_EXPORTER", "log")

	configDir := v.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "releasebot")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		BotToken:            v.GetString("BOT_TOKEN"),
		TelegramAPIEndpoint: v.GetString("TELEGRAM_API_ENDPOINT"),

		TMDBAPIKey:       v.GetString("TMDB_API_KEY"),
		TMDBBaseURL:      v.GetString("TMDB_BASE_URL"),
		TMDBImageBaseURL: v.GetString("TMDB_IMAGE_BASE_URL"),
		TMDBLanguage:     v.GetString("TMDB_LANGUAGE"),
		LookupCacheTTL:   time.Duration(v.GetInt("LOOKUP_CACHE_MINUTES")) * time.Minute,

		SweepSchedule: v.GetString("SWEEP_SCHEDULE"),
		SweepTimezone: v.GetString("SWEEP_TIMEZONE"),
		SweepWorkers:  v.GetInt("SWEEP_WORKERS"),

		StoreBackend:  v.GetString("STORE_BACKEND"),
		MongoURI:      v.GetString("MONGODB_URI"),
		MongoDatabase: v.GetString("MONGODB_DATABASE"),

		ServerPort: v.GetString("SERVER_PORT"),

		DatabaseFile: filepath.Join(configDir, "releasebot.db"),

		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  v.GetString("LOG_FILE"),

		TraceExporter: v.GetString("TRACE_EXPORTER"),
	}

	if config.SweepWorkers < 1 {
		config.SweepWorkers = 1
	}

	if config.LookupCacheTTL <= 0 {
		return nil, fmt.Errorf("LOOKUP_CACHE_MINUTES must be positive")
	}

	switch config.TraceExporter {
	case "log", "none":
	default:
		return nil, fmt.Errorf("unknown TRACE_EXPORTER %q", config.TraceExporter)
	}

	switch config.StoreBackend {
	case BackendBolt:
	case BackendMongo:
		if config.MongoURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is required when STORE_BACKEND=mongo")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", config.StoreBackend)
	}

	return config, nil
}

// Validate checks the settings needed to talk to Telegram and TMDB
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.TMDBAPIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is required")
	}
	return nil
}

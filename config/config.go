/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One place for every tunable. Values come from environment variables with
  an optional .env file for local development (never committed). Defaults
  are production-sane so an empty environment still boots.

VARIABLES:
  PORT                    HTTP listen port            (default 8080)
  DB_PATH                 SQLite database path        (default inventory.db)
  LOG_LEVEL               zerolog level string        (default info)
  ALERT_HORIZON_DAYS      expiry alert lookahead      (default 60)
  EDIT_WINDOW_DAYS        opening-stock edit window,
                          0 disables the limit        (default 0)
  LIFECYCLE_SWEEP_MINUTES expire/deplete sweep cadence (default 60)
  SNAPSHOT_SWEEP_MINUTES  snapshot self-heal cadence   (default 5)
*/
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings.
type Config struct {
	Port     int
	DBPath   string
	LogLevel string

	AlertHorizon time.Duration
	EditWindow   time.Duration

	LifecycleSweepInterval time.Duration
	SnapshotSweepInterval  time.Duration
}

// Load reads .env if present, then the environment.
func Load() Config {
	// Missing .env is fine; the environment wins anyway.
	_ = godotenv.Load()

	return Config{
		Port:     getEnvInt("PORT", 8080),
		DBPath:   getEnv("DB_PATH", "inventory.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AlertHorizon: time.Duration(getEnvInt("ALERT_HORIZON_DAYS", 60)) * 24 * time.Hour,
		EditWindow:   time.Duration(getEnvInt("EDIT_WINDOW_DAYS", 0)) * 24 * time.Hour,

		LifecycleSweepInterval: time.Duration(getEnvInt("LIFECYCLE_SWEEP_MINUTES", 60)) * time.Minute,
		SnapshotSweepInterval:  time.Duration(getEnvInt("SNAPSHOT_SWEEP_MINUTES", 5)) * time.Minute,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

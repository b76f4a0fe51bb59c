package bootstrap

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/gridbase/gridbase/internal/infrastructure/database"
)

// Config holds everything the process reads from the environment
type Config struct {
	HTTPPort string
	DB       database.Config

	// IndexDir is where search indexes live; empty means in-memory
	IndexDir string

	OutboxInterval  time.Duration
	OutboxRetention time.Duration
}

// LoadConfig reads the environment, letting a local .env file fill gaps
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("ℹ️ No .env file loaded: %v", err)
	}

	return Config{
		HTTPPort: envOr("PORT", "8080"),
		DB: database.Config{
			Host:     envOr("DB_HOST", "127.0.0.1"),
			Port:     envOr("DB_PORT", "3306"),
			User:     envOr("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: envOr("DB_NAME", "gridbase"),
			MaxConns: envInt("DB_MAX_CONNS", 20),
		},
		IndexDir:        envOr("INDEX_DIR", "data/indexes"),
		OutboxInterval:  envDuration("OUTBOX_INTERVAL", 2*time.Second),
		OutboxRetention: envDuration("OUTBOX_RETENTION", 7*24*time.Hour),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("⚠️ Invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("⚠️ Invalid %s=%q, using %v", key, v, fallback)
	}
	return fallback
}

package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	// empty values fall through to the defaults
	for _, key := range []string{"PORT", "DB_HOST", "DB_PORT", "DB_MAX_CONNS", "OUTBOX_INTERVAL", "OUTBOX_RETENTION"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "127.0.0.1", cfg.DB.Host)
	assert.Equal(t, "3306", cfg.DB.Port)
	assert.Equal(t, 20, cfg.DB.MaxConns)
	assert.Equal(t, 2*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.OutboxRetention)
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("DB_PORT", "4000")
	t.Setenv("DB_MAX_CONNS", "5")
	t.Setenv("OUTBOX_INTERVAL", "500ms")

	cfg := LoadConfig()

	assert.Equal(t, "4000", cfg.DB.Port)
	assert.Equal(t, 5, cfg.DB.MaxConns)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxInterval)
}

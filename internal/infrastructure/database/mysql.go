package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Config holds the connection parameters for the primary store
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string

	// MaxConns bounds both open and idle connections. Idle must match open to
	// avoid ephemeral-port exhaustion under high concurrency.
	MaxConns int
}

// Connection wraps the primary store's connection pool.
// sql.DB is already thread-safe and manages its own pooling; no extra locking
// is layered on top. The pool is constructed once at the composition root and
// injected into everything that needs it.
type Connection struct {
	db *sql.DB
}

// Connect opens and verifies a connection pool for the given config
func Connect(cfg Config) (*Connection, error) {
	port := cfg.Port
	if port == "" {
		port = "3306"
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 50
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	// Recycle connections before the server side considers them stale
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(3 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{db: db}, nil
}

// FromDB wraps an existing handle; used by tests with sqlmock
func FromDB(db *sql.DB) *Connection {
	return &Connection{db: db}
}

// DB returns the underlying pool
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Begin starts a new transaction
func (c *Connection) Begin() (*sql.Tx, error) {
	return c.db.Begin()
}

// Close closes the pool
func (c *Connection) Close() error {
	return c.db.Close()
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// Migration is one schema step. Steps run in Version order, once each.
type Migration struct {
	Version int
	Name    string
	Stmts   []string
}

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds SQLite configuration.
type ClientConfig struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
	WAL          bool
}

// WithBusyTimeout sets how long a writer waits on a locked database.
func WithBusyTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.BusyTimeout = d
	}
}

// WithMaxOpenConns bounds the pool.
func WithMaxOpenConns(n int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = n
	}
}

// WithWAL toggles write-ahead logging.
func WithWAL(enabled bool) ClientOption {
	return func(c *ClientConfig) {
		c.WAL = enabled
	}
}

// Client wraps a pure-Go SQLite database handle.
type Client struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path. Parent directories are created.
func Open(path string, opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
		WAL:          true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", buildDSN(*cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	// WAL lets readers proceed while a prediction is being written.
	if cfg.WAL && cfg.Path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	return &Client{db: db, path: cfg.Path}, nil
}

func buildDSN(cfg ClientConfig) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+strconv.FormatInt(cfg.BusyTimeout.Milliseconds(), 10)+")")
	q.Add("_pragma", "foreign_keys(1)")
	// BEGIN IMMEDIATE: a transaction takes the write lock up front and waits
	// out busy_timeout rather than failing on a lock upgrade.
	q.Add("_txlock", "immediate")
	return "file:" + cfg.Path + "?" + q.Encode()
}

// DB returns *sql.DB for direct use.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Path returns the database file.
func (c *Client) Path() string {
	return c.path
}

// Health performs health check.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Migrate applies pending migrations and records them in schema_migrations.
func (c *Client) Migrate(ctx context.Context, migrations []Migration) error {
	if _, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := c.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := c.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (c *Client) apply(ctx context.Context, m Migration) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, s := range m.Stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, time.Now().Unix()); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Options describe one ClickHouse endpoint. Zero values take defaults.
type Options struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	// HTTP selects the HTTP interface instead of the native protocol.
	HTTP bool
	// AsyncInsert lets the server buffer small inserts; WaitForAsync makes
	// the insert return only after the buffer is flushed.
	AsyncInsert  bool
	WaitForAsync bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	MaxExecution time.Duration
	MaxOpenConns int
}

func (o Options) withDefaults() Options {
	if o.Port == 0 {
		o.Port = 9000
	}
	if o.Database == "" {
		o.Database = "default"
	}
	if o.User == "" {
		o.User = "default"
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 4
	}
	return o
}

// DSN renders o as a clickhouse-go connection URL.
func (o Options) DSN() string {
	u := url.URL{
		Scheme: "clickhouse",
		Host:   o.Host + ":" + strconv.Itoa(o.Port),
		Path:   "/" + o.Database,
	}
	if o.HTTP {
		u.Scheme = "http"
	}
	if o.User != "" {
		u.User = url.UserPassword(o.User, o.Password)
	}

	q := url.Values{}
	if o.DialTimeout > 0 {
		q.Set("dial_timeout", o.DialTimeout.String())
	}
	if o.ReadTimeout > 0 {
		q.Set("read_timeout", o.ReadTimeout.String())
	}
	// No write_timeout: some server versions reject it as a setting.
	if o.MaxExecution > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(o.MaxExecution.Seconds())))
	}
	if o.AsyncInsert {
		q.Set("async_insert", "1")
		if o.WaitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Client is a pinged connection pool.
type Client struct {
	db *sql.DB
}

func NewClient(o Options) (*Client, error) {
	if o.Host == "" {
		return nil, fmt.Errorf("clickhouse: host is required")
	}
	o = o.withDefaults()

	db, err := sql.Open("clickhouse", o.DSN())
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), o.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s:%d: %w", o.Host, o.Port, err)
	}
	return &Client{db: db}, nil
}

// DB returns *sql.DB for direct use.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Health performs health check.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// InsertBatch sends rows as one block. The driver batches every Exec of a
// prepared INSERT inside a transaction and flushes on Commit.
func (c *Client) InsertBatch(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

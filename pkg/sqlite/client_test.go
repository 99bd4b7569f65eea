package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenCreatesDirectoryAndMigratesOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	c, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	migrations := []Migration{
		{Version: 1, Name: "items", Stmts: []string{`CREATE TABLE items (id TEXT PRIMARY KEY)`}},
		{Version: 2, Name: "items_name", Stmts: []string{`ALTER TABLE items ADD COLUMN name TEXT`}},
	}
	if err := c.Migrate(ctx, migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// A second run must be a no-op, otherwise ALTER TABLE would fail.
	if err := c.Migrate(ctx, migrations); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}

	if _, err := c.DB().ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('a', 'b')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var n int
	if err := c.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("schema_migrations rows=%d", n)
	}

	var mode string
	if err := c.DB().QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode=%q", mode)
	}
}

func TestMigrateRollsBackFailedStep(t *testing.T) {
	ctx := context.Background()
	c, err := Open(filepath.Join(t.TempDir(), "bad.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	err = c.Migrate(ctx, []Migration{{Version: 1, Name: "broken", Stmts: []string{
		`CREATE TABLE ok (id INTEGER)`,
		`CREATE TABLE oops (`,
	}}})
	if err == nil {
		t.Fatalf("expected migration error")
	}
	var n int
	if err := c.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'ok'`).Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 0 {
		t.Errorf("partial migration was committed")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDSNBeginsImmediate(t *testing.T) {
	dsn := buildDSN(ClientConfig{Path: "data/x.db", BusyTimeout: 2 * time.Second})
	for _, want := range []string{"_txlock=immediate", "busy_timeout%282000%29"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q lacks %s", dsn, want)
		}
	}
}

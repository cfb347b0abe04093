package engine

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestOpenInMemory verifies that we can open an in-memory SQLite database
// using the modernc.org/sqlite driver and execute a trivial statement.
func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE t(x INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO t(x) VALUES (1),(2),(3)"); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
	var n int
	if err := db.QueryRow("SELECT count(*) FROM t").Scan(&n); err != nil || n != 3 {
		t.Fatalf("count = %d, %v; want 3, nil", n, err)
	}
}

func TestOpenFileAppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.sqlite")
	db, err := OpenFile(path, DefaultOptions())
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
	var timeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout failed: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestOpenFileEmptyPath(t *testing.T) {
	if _, err := OpenFile(" ", DefaultOptions()); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN("/tmp/x.sqlite", Options{BusyTimeout: 2 * time.Second, WAL: true, Immediate: true})
	for _, want := range []string{"file:/tmp/x.sqlite?", "busy_timeout%282000%29", "journal_mode%28WAL%29", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("DSN %q missing %q", dsn, want)
		}
	}
	if strings.Contains(DSN("x", Options{}), "_txlock") {
		t.Fatalf("DSN without Immediate must not set _txlock")
	}
}

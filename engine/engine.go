package engine

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// Open opens a SQLite database using the modernc.org/sqlite driver. The
// vector functions are registered before the first connection is made.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:"; the pool is then limited to one connection
// since every connection would otherwise see its own empty database.
func Open(dsn string) (*sql.DB, error) {
	if err := RegisterVectorFunctions(nil); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Options controls the pragmas applied by OpenFile.
type Options struct {
	// BusyTimeout bounds how long a writer waits for the database lock.
	BusyTimeout time.Duration
	// WAL enables write-ahead logging so readers do not block the writer.
	WAL bool
	// Immediate makes every transaction take the write lock on BEGIN, which
	// serializes concurrent read-modify-write transactions.
	Immediate bool
	// MaxOpenConns limits the connection pool; zero keeps the driver default.
	MaxOpenConns int
}

// DefaultOptions returns the options used by the duplicate store.
func DefaultOptions() Options {
	return Options{BusyTimeout: 5 * time.Second, WAL: true, Immediate: true, MaxOpenConns: 8}
}

// OpenFile opens a file database with the given options.
func OpenFile(path string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("engine: database path is empty")
	}
	db, err := Open(DSN(path, opts))
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}
	return db, nil
}

// DSN builds a modernc.org/sqlite connection string for path.
func DSN(path string, opts Options) string {
	q := url.Values{}
	if opts.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	if opts.WAL {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Add("_pragma", "foreign_keys(1)")
	if opts.Immediate {
		q.Set("_txlock", "immediate")
	}
	return "file:" + path + "?" + q.Encode()
}

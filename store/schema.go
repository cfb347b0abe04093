package store

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	// LogTable records every change of assets.duplicate_id.
	LogTable = "duplicate_log"

	// SeqTable stores the embedding sequence per owner.
	SeqTable = "embedding_seq"
)

const assetsDDL = `
CREATE TABLE IF NOT EXISTS assets (
    id                     TEXT PRIMARY KEY,
    owner_id               TEXT NOT NULL,
    type                   TEXT NOT NULL,
    visibility             TEXT NOT NULL DEFAULT 'normal',
    stack_id               TEXT,
    duplicate_id           TEXT,
    embedding              BLOB,
    duplicates_detected_at INTEGER,
    created_at             INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS assets_owner_type ON assets(owner_id, type);
CREATE INDEX IF NOT EXISTS assets_duplicate ON assets(duplicate_id) WHERE duplicate_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS assets_detected ON assets(duplicates_detected_at);
`

const logDDL = `
CREATE TABLE IF NOT EXISTS duplicate_log (
    seq              INTEGER PRIMARY KEY AUTOINCREMENT,
    asset_id         TEXT NOT NULL,
    old_duplicate_id TEXT,
    new_duplicate_id TEXT,
    changed_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS duplicate_log_asset ON duplicate_log(asset_id, seq);
`

const seqDDL = `
CREATE TABLE IF NOT EXISTS embedding_seq (
    owner_id TEXT PRIMARY KEY,
    next_seq INTEGER NOT NULL
);
`

// nowMillis is evaluated inside triggers.
const nowMillis = `CAST((julianday('now') - 2440587.5) * 86400000 AS INTEGER)`

// triggers returns the trigger DDL maintaining duplicate_log and
// embedding_seq.
func triggers() []string {
	logRow := func(alias string) string {
		return fmt.Sprintf(`INSERT INTO %s(asset_id, old_duplicate_id, new_duplicate_id, changed_at)
    VALUES (%s.id, %s, NEW.duplicate_id, %s);`, LogTable, alias, oldDuplicate(alias), nowMillis)
	}
	bump := func(alias string) string {
		return fmt.Sprintf(`INSERT INTO %[1]s(owner_id, next_seq)
    VALUES (%[2]s.owner_id, 1)
    ON CONFLICT(owner_id) DO UPDATE SET next_seq = next_seq + 1;`, SeqTable, alias)
	}
	return []string{
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS assets_dup_ai AFTER INSERT ON assets
WHEN NEW.duplicate_id IS NOT NULL
BEGIN
    %s
END;`, logRow("NEW")),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS assets_dup_au AFTER UPDATE OF duplicate_id ON assets
WHEN OLD.duplicate_id IS NOT NEW.duplicate_id
BEGIN
    %s
END;`, logRow("OLD")),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS assets_seq_ai AFTER INSERT ON assets
BEGIN
    %s
END;`, bump("NEW")),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS assets_seq_au AFTER UPDATE OF owner_id, type, visibility, stack_id, embedding ON assets
BEGIN
    %s
    %s
END;`, bump("NEW"), bump("OLD")),
		fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS assets_seq_ad AFTER DELETE ON assets
BEGIN
    %s
END;`, bump("OLD")),
	}
}

func oldDuplicate(alias string) string {
	if alias == "NEW" {
		return "NULL"
	}
	return alias + ".duplicate_id"
}

// EnsureSchema creates the tables, indexes and triggers used by the store if
// they do not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("store: db is nil")
	}
	stmts := append([]string{assetsDDL, logDDL, seqDDL}, triggers()...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

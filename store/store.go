package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/engine"
	"github.com/viant/sqlite-dedup/vector"
)

// SearchLimit caps the number of candidates a duplicate search returns.
const SearchLimit = 64

// maxVars keeps IN lists well below SQLite's bound variable limit.
const maxVars = 500

// Store is the SQLite implementation of the asset source, similarity search
// and duplicate store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a Store over db and ensures the schema exists.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is nil")
	}
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Open opens (or creates) the database file at path with the engine's
// default options and returns a Store over it.
func Open(ctx context.Context, path string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	if path == ":memory:" {
		db, err = engine.Open(path)
	} else {
		db, err = engine.OpenFile(path, engine.DefaultOptions())
	}
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Upsert inserts or updates assets. Existing group membership is preserved
// unless the asset is stacked, hidden or locked, in which case it is
// detached, including on first insert. Changing the embedding resets the detection timestamp so the next
// incremental scan picks the asset up again.
func (s *Store) Upsert(ctx context.Context, assets []asset.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO assets(id, owner_id, type, visibility, stack_id, duplicate_id, embedding, duplicates_detected_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  owner_id = excluded.owner_id,
  type = excluded.type,
  visibility = excluded.visibility,
  stack_id = excluded.stack_id,
  embedding = excluded.embedding,
  duplicate_id = CASE
    WHEN excluded.stack_id IS NOT NULL OR excluded.visibility IN ('hidden', 'locked') THEN NULL
    ELSE assets.duplicate_id END,
  duplicates_detected_at = CASE
    WHEN assets.embedding IS excluded.embedding THEN assets.duplicates_detected_at
    ELSE NULL END`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	created := s.now().UnixMilli()
	for _, a := range assets {
		if err := validate(&a); err != nil {
			return err
		}
		emb, err := vector.EncodeEmbedding(a.Embedding)
		if err != nil {
			return fmt.Errorf("store: asset %s: %w", a.ID, err)
		}
		var blob any
		if emb != nil {
			blob = emb
		}
		if _, err := stmt.ExecContext(ctx, a.ID, a.OwnerID, string(a.Type), string(a.Visibility),
			nullString(a.StackID), nullString(a.DuplicateID), blob, nullTime(a.DuplicatesDetectedAt), created); err != nil {
			return fmt.Errorf("store: upsert %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func validate(a *asset.Asset) error {
	if a.ID == "" {
		return fmt.Errorf("store: asset id must be set")
	}
	if a.OwnerID == "" {
		return fmt.Errorf("store: asset %s: owner id must be set", a.ID)
	}
	if a.Type == "" {
		a.Type = asset.TypeImage
	}
	if a.Visibility == "" {
		a.Visibility = asset.VisibilityNormal
	}
	if a.Stacked() || a.Visibility.Excluded() {
		a.DuplicateID = nil
	}
	return nil
}

// Remove deletes an asset. Its group keeps its remaining members.
func (s *Store) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("store: Remove called with empty id")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: asset %s: %w", id, asset.ErrNotFound)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64)
	return &t
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func args(prefix []any, ids []string) []any {
	out := make([]any, 0, len(prefix)+len(ids))
	out = append(out, prefix...)
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

// chunks splits ids into slices of at most maxVars elements.
func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > maxVars {
		out = append(out, ids[:maxVars])
		ids = ids[maxVars:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// dedupe removes empty and repeated ids, keeping first-appearance order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

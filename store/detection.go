package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/vector"
)

// eligible is the predicate shared by enumeration and search: visible,
// unstacked assets that carry an embedding.
const eligible = `visibility NOT IN ('hidden', 'locked') AND stack_id IS NULL AND embedding IS NOT NULL`

// StreamForDetection calls fn with the id of every asset eligible for
// duplicate detection. Unless force is set, assets that were already scanned
// are left out. Rows are read through a cursor, so the collection is never
// loaded into memory; a non-nil error from fn stops the enumeration and is
// returned. Each call starts a fresh enumeration.
func (s *Store) StreamForDetection(ctx context.Context, force bool, fn func(id string) error) error {
	q := `SELECT id FROM assets WHERE ` + eligible
	if !force {
		q += ` AND duplicates_detected_at IS NULL`
	}
	q += ` ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("store: enumerate assets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LoadForDetection returns the scan-relevant fields of one asset. It returns
// an error wrapping asset.ErrNotFound when the asset does not exist.
func (s *Store) LoadForDetection(ctx context.Context, id string) (*asset.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, owner_id, type, visibility, stack_id, duplicate_id, embedding, duplicates_detected_at
FROM assets WHERE id = ?`, id)
	var (
		a          asset.Asset
		typ, vis   string
		stack, dup sql.NullString
		emb        []byte
		detected   sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.OwnerID, &typ, &vis, &stack, &dup, &emb, &detected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("store: asset %s: %w", id, asset.ErrNotFound)
		}
		return nil, err
	}
	vec, err := vector.DecodeEmbedding(emb)
	if err != nil {
		return nil, fmt.Errorf("store: asset %s: %w", id, err)
	}
	a.Type = asset.Type(typ)
	a.Visibility = asset.Visibility(vis)
	a.StackID = stringPtr(stack)
	a.DuplicateID = stringPtr(dup)
	a.Embedding = vec
	a.DuplicatesDetectedAt = timePtr(detected)
	return &a, nil
}

// StampScanned records at as the detection time of every id in one
// transaction.
func (s *Store) StampScanned(ctx context.Context, ids []string, at time.Time) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, chunk := range chunks(ids) {
		q := `UPDATE assets SET duplicates_detected_at = ? WHERE id IN (` + placeholders(len(chunk)) + `)`
		if _, err := tx.ExecContext(ctx, q, args([]any{at.UnixNano()}, chunk)...); err != nil {
			return fmt.Errorf("store: stamp scanned: %w", err)
		}
	}
	return tx.Commit()
}

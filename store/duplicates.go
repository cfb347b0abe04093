package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/viant/sqlite-dedup/asset"
)

// LogEntry is one recorded change of an asset's duplicate group.
type LogEntry struct {
	Seq            int64
	AssetID        string
	OldDuplicateID *string
	NewDuplicateID *string
	ChangedAt      time.Time
}

// Merge assigns targetID to every asset in assetIDs and to every member of
// the groups in sourceIDs, in one transaction. Assets that became stacked,
// hidden or locked since they were found are left alone.
func (s *Store) Merge(ctx context.Context, targetID string, assetIDs, sourceIDs []string) error {
	if targetID == "" {
		return fmt.Errorf("store: merge target is empty")
	}
	assetIDs = dedupe(assetIDs)
	sources := make([]string, 0, len(sourceIDs))
	for _, id := range dedupe(sourceIDs) {
		if id != targetID {
			sources = append(sources, id)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, chunk := range chunks(assetIDs) {
		q := `UPDATE assets SET duplicate_id = ?
WHERE id IN (` + placeholders(len(chunk)) + `)
  AND duplicate_id IS NOT ?
  AND stack_id IS NULL AND visibility NOT IN ('hidden', 'locked')`
		params := args([]any{targetID}, chunk)
		params = append(params, targetID)
		if _, err := tx.ExecContext(ctx, q, params...); err != nil {
			return fmt.Errorf("store: merge into %s: %w", targetID, err)
		}
	}
	for _, chunk := range chunks(sources) {
		q := `UPDATE assets SET duplicate_id = ? WHERE duplicate_id IN (` + placeholders(len(chunk)) + `)`
		if _, err := tx.ExecContext(ctx, q, args([]any{targetID}, chunk)...); err != nil {
			return fmt.Errorf("store: absorb groups into %s: %w", targetID, err)
		}
	}
	return tx.Commit()
}

// ClearGroup detaches a single asset from its group. Other members keep
// their group id.
func (s *Store) ClearGroup(ctx context.Context, assetID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE assets SET duplicate_id = NULL WHERE id = ? AND duplicate_id IS NOT NULL`, assetID); err != nil {
		return fmt.Errorf("store: clear group of %s: %w", assetID, err)
	}
	return nil
}

// Groups lists the duplicate groups of an owner that still have at least two
// members. Member ids keep insertion order.
func (s *Store) Groups(ctx context.Context, ownerID string) ([]asset.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT duplicate_id, id FROM assets
WHERE owner_id = ? AND duplicate_id IN (
    SELECT duplicate_id FROM assets
    WHERE owner_id = ? AND duplicate_id IS NOT NULL
    GROUP BY duplicate_id HAVING COUNT(*) > 1
)
ORDER BY duplicate_id, rowid`, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	defer rows.Close()

	var out []asset.Group
	for rows.Next() {
		var groupID, id string
		if err := rows.Scan(&groupID, &id); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != groupID {
			out = append(out, asset.Group{ID: groupID})
		}
		g := &out[len(out)-1]
		g.AssetIDs = append(g.AssetIDs, id)
	}
	return out, rows.Err()
}

// Group returns the members of one group. It returns an error wrapping
// asset.ErrNotFound when no asset references id.
func (s *Store) Group(ctx context.Context, id string) (*asset.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM assets WHERE duplicate_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("store: load group: %w", err)
	}
	defer rows.Close()
	g := &asset.Group{ID: id}
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		g.AssetIDs = append(g.AssetIDs, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(g.AssetIDs) == 0 {
		return nil, fmt.Errorf("store: group %s: %w", id, asset.ErrNotFound)
	}
	return g, nil
}

// DeleteGroup detaches every member of a group, which ceases to exist.
func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assets SET duplicate_id = NULL WHERE duplicate_id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete group %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: group %s: %w", id, asset.ErrNotFound)
	}
	return nil
}

// DeleteGroups detaches every asset of an owner from its group and returns
// the number of assets changed.
func (s *Store) DeleteGroups(ctx context.Context, ownerID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE assets SET duplicate_id = NULL WHERE owner_id = ? AND duplicate_id IS NOT NULL`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("store: delete groups: %w", err)
	}
	return res.RowsAffected()
}

// History returns the recorded group changes of an asset, oldest first.
func (s *Store) History(ctx context.Context, assetID string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, asset_id, old_duplicate_id, new_duplicate_id, changed_at
FROM `+LogTable+` WHERE asset_id = ? ORDER BY seq`, assetID)
	if err != nil {
		return nil, fmt.Errorf("store: load history: %w", err)
	}
	defer rows.Close()
	var out []LogEntry
	for rows.Next() {
		var (
			e          LogEntry
			prev, next sql.NullString
			changed    int64
		)
		if err := rows.Scan(&e.Seq, &e.AssetID, &prev, &next, &changed); err != nil {
			return nil, err
		}
		e.OldDuplicateID = stringPtr(prev)
		e.NewDuplicateID = stringPtr(next)
		e.ChangedAt = time.UnixMilli(changed)
		out = append(out, e)
	}
	return out, rows.Err()
}

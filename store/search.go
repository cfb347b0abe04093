package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/viant/sqlite-dedup/asset"
	"github.com/viant/sqlite-dedup/vector"
)

// SearchDuplicates returns assets of the same type and owners whose cosine
// distance to the query embedding is at most MaxDistance, nearest first and
// capped at SearchLimit. The queried asset itself and ineligible assets are
// never returned.
func (s *Store) SearchDuplicates(ctx context.Context, query asset.SearchQuery) ([]asset.Match, error) {
	owners := dedupe(query.OwnerIDs)
	if len(owners) == 0 || len(query.Embedding) == 0 {
		return nil, nil
	}
	emb, err := vector.EncodeEmbedding(query.Embedding)
	if err != nil {
		return nil, err
	}
	q := `
SELECT id, duplicate_id, distance FROM (
    SELECT id, duplicate_id, vec_cosine_distance(embedding, ?) AS distance
    FROM assets
    WHERE owner_id IN (` + placeholders(len(owners)) + `)
      AND type = ? AND id <> ? AND ` + eligible + `
)
WHERE distance IS NOT NULL AND distance <= ?
ORDER BY distance, id
LIMIT ?`
	params := args([]any{emb}, owners)
	params = append(params, string(query.Type), query.AssetID, query.MaxDistance, SearchLimit)
	rows, err := s.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("store: search duplicates: %w", err)
	}
	defer rows.Close()

	var out []asset.Match
	for rows.Next() {
		var (
			m   asset.Match
			dup sql.NullString
		)
		if err := rows.Scan(&m.AssetID, &dup, &m.Distance); err != nil {
			return nil, err
		}
		m.DuplicateID = stringPtr(dup)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Embeddings returns the ids and embeddings of every eligible asset of the
// given owner and type, used to build in-memory indexes.
func (s *Store) Embeddings(ctx context.Context, ownerID string, typ asset.Type) ([]string, [][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM assets WHERE owner_id = ? AND type = ? AND `+eligible+` ORDER BY rowid`, ownerID, string(typ))
	if err != nil {
		return nil, nil, fmt.Errorf("store: load embeddings: %w", err)
	}
	defer rows.Close()
	var (
		ids  []string
		vecs [][]float32
	)
	for rows.Next() {
		var (
			id  string
			emb []byte
		)
		if err := rows.Scan(&id, &emb); err != nil {
			return nil, nil, err
		}
		v, err := vector.DecodeEmbedding(emb)
		if err != nil {
			return nil, nil, fmt.Errorf("store: asset %s: %w", id, err)
		}
		if len(v) == 0 {
			continue
		}
		ids = append(ids, id)
		vecs = append(vecs, v)
	}
	return ids, vecs, rows.Err()
}

// DuplicateIDs returns the current group id of each existing asset in ids;
// assets without a group map to nil.
func (s *Store) DuplicateIDs(ctx context.Context, ids []string) (map[string]*string, error) {
	out := make(map[string]*string, len(ids))
	for _, chunk := range chunks(dedupe(ids)) {
		rows, err := s.db.QueryContext(ctx, `SELECT id, duplicate_id FROM assets WHERE id IN (`+placeholders(len(chunk))+`)`, args(nil, chunk)...)
		if err != nil {
			return nil, fmt.Errorf("store: load duplicate ids: %w", err)
		}
		for rows.Next() {
			var (
				id  string
				dup sql.NullString
			)
			if err := rows.Scan(&id, &dup); err != nil {
				rows.Close()
				return nil, err
			}
			out[id] = stringPtr(dup)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EmbeddingSeq returns the embedding sequence of an owner. It changes
// whenever an asset of the owner is added, removed, or has its embedding or
// eligibility changed.
func (s *Store) EmbeddingSeq(ctx context.Context, ownerID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT next_seq FROM `+SeqTable+` WHERE owner_id = ?`, ownerID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seq, err
}

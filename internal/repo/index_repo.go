package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/cortexa-labs/ragserve/internal/model"
)

// IndexRepo persists the two-level vector index. Parents carry the text
// handed to the prompt; child rows carry the embeddings searched against.
// Both tables are partitioned by a collection value derived from the
// owner, so one owner's vectors never match another's queries.
type IndexRepo struct {
	db *sqlx.DB
}

func NewIndexRepo(db *sqlx.DB) *IndexRepo {
	return &IndexRepo{db: db}
}

// ExistingFiles reports the indexed generation of every source for the
// owner as a filename to fingerprint map.
func (r *IndexRepo) ExistingFiles(ctx context.Context, owner string) (map[string]string, error) {
	const query = `
		SELECT DISTINCT source, fingerprint
		FROM rag_chunks
		WHERE collection = $1
	`
	rows, err := r.db.QueryContext(ctx, query, DeriveCollection(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	files := make(map[string]string)
	for rows.Next() {
		var source, fingerprint string
		if err := rows.Scan(&source, &fingerprint); err != nil {
			return nil, err
		}
		files[source] = fingerprint
	}
	return files, rows.Err()
}

// DeleteBySource drops every parent and child belonging to one file in a
// single transaction, so a reader never sees a half-removed document.
func (r *IndexRepo) DeleteBySource(ctx context.Context, owner, source string) error {
	collection := DeriveCollection(owner)
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM rag_chunks WHERE collection = $1 AND source = $2`, collection, source); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rag_parents WHERE collection = $1 AND source = $2`, collection, source); err != nil {
		return fmt.Errorf("delete parents: %w", err)
	}
	return tx.Commit()
}

// AddDocuments writes one file's parents and children in a single
// transaction. Caller is expected to have removed the previous
// generation first.
func (r *IndexRepo) AddDocuments(ctx context.Context, owner string, parents []model.ParentDocument, children []model.ChildChunk) error {
	collection := DeriveCollection(owner)
	now := time.Now().UnixMilli()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const parentQuery = `
		INSERT INTO rag_parents (collection, parent_id, content, source, fingerprint, page, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, parent := range parents {
		if _, err := tx.ExecContext(ctx, parentQuery,
			collection, parent.ID, parent.Content, parent.Source, parent.Fingerprint, parent.Page, now); err != nil {
			return fmt.Errorf("insert parent: %w", err)
		}
	}
	const chunkQuery = `
		INSERT INTO rag_chunks (collection, parent_id, content, embedding, source, fingerprint, page, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, chunk := range children {
		if _, err := tx.ExecContext(ctx, chunkQuery,
			collection, chunk.ParentID, chunk.Content, pgvector.NewVector(chunk.Embedding),
			chunk.Source, chunk.Fingerprint, chunk.Page, now); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	return tx.Commit()
}

func (r *IndexRepo) Count(ctx context.Context, owner string) (int64, error) {
	const query = `SELECT COUNT(*) FROM rag_chunks WHERE collection = $1`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, DeriveCollection(owner)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Search finds the nearest child chunks by cosine distance, folds them up
// to their parents and deduplicates, returning at most topK parents in
// similarity order.
func (r *IndexRepo) Search(ctx context.Context, owner string, queryVector []float32, topK int) ([]model.RetrievedChunk, error) {
	const query = `
		SELECT c.parent_id, p.content, c.source, c.fingerprint, p.page,
		       1 - (c.embedding <=> $2) AS score
		FROM rag_chunks c
		JOIN rag_parents p ON p.collection = c.collection AND p.parent_id = c.parent_id
		WHERE c.collection = $1
		ORDER BY c.embedding <=> $2
		LIMIT $3
	`
	// Over-fetch children so topK unique parents survive folding.
	rows, err := r.db.QueryContext(ctx, query, DeriveCollection(owner), pgvector.NewVector(queryVector), topK*4)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := make(map[string]bool)
	var results []model.RetrievedChunk
	for rows.Next() {
		var chunk model.RetrievedChunk
		if err := rows.Scan(&chunk.ParentID, &chunk.Content, &chunk.Source, &chunk.Fingerprint, &chunk.Page, &chunk.Score); err != nil {
			return nil, err
		}
		if seen[chunk.ParentID] {
			continue
		}
		seen[chunk.ParentID] = true
		results = append(results, chunk)
		if len(results) >= topK {
			break
		}
	}
	return results, rows.Err()
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/hlpipe/internal/log"
)

const renderColumns = `digest, scope, html, source_bytes, created_at, last_used_at`

// RenderStore reads and writes rendered blocks keyed by content digest.
type RenderStore struct {
	db  *sql.DB
	now func() time.Time
}

func newRenderStore(db *sql.DB) *RenderStore {
	return &RenderStore{db: db, now: time.Now}
}

func scanRender(scanner interface{ Scan(...any) error }) (*RenderModel, error) {
	var model RenderModel
	err := scanner.Scan(
		&model.Digest, &model.Scope, &model.HTML, &model.SourceBytes,
		&model.CreatedAt, &model.LastUsedAt,
	)
	return &model, err
}

// Get returns the render stored under digest and marks it as used.
// Returns ErrNotFound if there is none.
func (s *RenderStore) Get(ctx context.Context, digest string) (*Render, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+renderColumns+` FROM renders WHERE digest = ?`,
		digest,
	)
	model, err := scanRender(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find render: %w", err)
	}

	now := s.now().Unix()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE renders SET last_used_at = ? WHERE digest = ?`,
		now, digest,
	); err != nil {
		log.ErrorErr(log.CatDB, "Failed to touch render", err, "digest", digest)
	} else {
		model.LastUsedAt = now
	}
	return model.toRender(), nil
}

// Put stores r, replacing any render with the same digest. Zero timestamps
// are set to now.
func (s *RenderStore) Put(ctx context.Context, r *Render) error {
	now := s.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.LastUsedAt.IsZero() {
		r.LastUsedAt = now
	}
	model := toRenderModel(r)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO renders (`+renderColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET
			scope = excluded.scope,
			html = excluded.html,
			source_bytes = excluded.source_bytes,
			last_used_at = excluded.last_used_at`,
		model.Digest, model.Scope, model.HTML, model.SourceBytes, model.CreatedAt, model.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save render: %w", err)
	}
	return nil
}

// Prune deletes renders not used within olderThan and returns how many were
// removed.
func (s *RenderStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).Unix()
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM renders WHERE last_used_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune renders: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	log.Info(log.CatDB, "Pruned renders", "removed", n, "older_than", olderThan)
	return n, nil
}

// Count returns the number of stored renders.
func (s *RenderStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM renders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count renders: %w", err)
	}
	return n, nil
}

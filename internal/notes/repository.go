// Package notes serves the operator notes summary: a rate-windowed digest of
// recent notes, generated by the engine or a direct model call.
package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Note is one operator note. Note management lives in the web app; this
// module only reads them to build the summary input.
type Note struct {
	ID        uuid.UUID
	Content   string
	CreatedAt time.Time
}

// Repository reads notes from the shared store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecentNotes returns the newest notes, newest first.
func (r *Repository) RecentNotes(ctx context.Context, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, content, created_at
		FROM mgp_notes
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent notes: %w", err)
	}
	defer rows.Close()

	var results []Note
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.Content, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		results = append(results, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}

	return results, nil
}

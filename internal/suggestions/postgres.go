//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package suggestions

import (
	"context"

	"github.com/pgEdge/pgedge-ask-gateway/internal/database"
)

// rowSource is the part of the database pool the store reads from.
type rowSource interface {
	FetchSuggestions(ctx context.Context, knowledgeBase string, limit int) ([]database.SuggestionRow, error)
	Close()
}

// PostgresStore reads suggestions from a PostgreSQL table with columns
// id, knowledge_base, position and text. It never writes.
type PostgresStore struct {
	rows rowSource
}

// NewPostgresStore creates a store reading through pool.
func NewPostgresStore(pool *database.Pool) *PostgresStore {
	return &PostgresStore{rows: pool}
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, knowledgeBase string, limit int) ([]Suggestion, error) {
	rows, err := s.rows.FetchSuggestions(ctx, knowledgeBase, NormalizeLimit(limit))
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(rows))
	for _, r := range rows {
		out = append(out, Suggestion{ID: r.ID, Text: r.Text})
	}
	return out, nil
}

// Close implements Store.
func (s *PostgresStore) Close() {
	s.rows.Close()
}

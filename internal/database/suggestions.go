//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// SuggestionRow is a single row of the suggestions table.
type SuggestionRow struct {
	ID   string
	Text string
}

// parseTableIdentifier splits a table name into schema and table parts.
// Supports formats: "table", "schema.table"
func parseTableIdentifier(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	return pgx.Identifier(parts)
}

// suggestionsQuery builds the query listing the suggestions of one
// knowledge base. $1 is the knowledge base name, $2 the row limit.
func suggestionsQuery(table string) string {
	return fmt.Sprintf(`
		SELECT
			id::text AS id,
			text
		FROM %s
		WHERE knowledge_base = $1
		ORDER BY position, id
		LIMIT $2`,
		parseTableIdentifier(table).Sanitize(),
	)
}

// FetchSuggestions returns up to limit suggestions for a knowledge base,
// ordered by position.
func (p *Pool) FetchSuggestions(
	ctx context.Context,
	knowledgeBase string,
	limit int,
) ([]SuggestionRow, error) {
	rows, err := p.pool.Query(ctx, suggestionsQuery(p.config.Table), knowledgeBase, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch suggestions: %w", err)
	}
	defer rows.Close()

	results := []SuggestionRow{}
	for rows.Next() {
		var r SuggestionRow
		if err := rows.Scan(&r.ID, &r.Text); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}

//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package suggestions serves canned prompt suggestions for each knowledge
// base.
package suggestions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgEdge/pgedge-ask-gateway/internal/config"
	"github.com/pgEdge/pgedge-ask-gateway/internal/database"
)

// Limits applied to List.
const (
	DefaultLimit = 5
	MaxLimit     = 50
)

// Suggestion is a prompt a user can pick instead of typing a query.
type Suggestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Store lists suggestions for a knowledge base.
type Store interface {
	// List returns up to limit suggestions in display order. An unknown
	// knowledge base yields an empty list.
	List(ctx context.Context, knowledgeBase string, limit int) ([]Suggestion, error)

	// Close releases resources held by the store.
	Close()
}

// NormalizeLimit maps a requested limit into [1, MaxLimit]; zero or less
// selects DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// NewStore creates the store selected by configuration.
func NewStore(ctx context.Context, cfg config.SuggestionsConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Source {
	case config.SuggestionSourcePostgres:
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create suggestions store: %w", err)
		}
		logger.Info("suggestions store ready",
			"source", cfg.Source,
			"host", cfg.Database.Host,
			"table", cfg.Database.Table,
		)
		return NewPostgresStore(pool), nil

	case config.SuggestionSourceStatic, "":
		logger.Info("suggestions store ready",
			"source", config.SuggestionSourceStatic,
			"knowledge_bases", len(cfg.Items),
		)
		return NewStaticStore(cfg.Items), nil

	default:
		return nil, fmt.Errorf("unknown suggestions source: %s", cfg.Source)
	}
}

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
	"fmt"
	"strings"
)

// StaticStore serves suggestions held in memory. It is immutable after
// construction.
type StaticStore struct {
	items map[string][]Suggestion
}

// NewStaticStore creates a store from suggestion texts per knowledge base.
// Blank texts are dropped; ids are "<knowledge base>-<position>".
func NewStaticStore(items map[string][]string) *StaticStore {
	s := &StaticStore{items: make(map[string][]Suggestion, len(items))}
	for kb, texts := range items {
		list := make([]Suggestion, 0, len(texts))
		for _, text := range texts {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			list = append(list, Suggestion{
				ID:   fmt.Sprintf("%s-%d", kb, len(list)+1),
				Text: text,
			})
		}
		s.items[kb] = list
	}
	return s
}

// List implements Store.
func (s *StaticStore) List(ctx context.Context, knowledgeBase string, limit int) ([]Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list := s.items[knowledgeBase]
	limit = NormalizeLimit(limit)
	if len(list) > limit {
		list = list[:limit]
	}

	out := make([]Suggestion, len(list))
	copy(out, list)
	return out, nil
}

// Close implements Store.
func (s *StaticStore) Close() {}

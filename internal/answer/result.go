//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package answer holds the result shapes produced by an ask operation and
// the chart-augmented answer format used by the charts knowledge base.
package answer

import (
	"encoding/json"
	"sort"
)

// StreamingAskResult accumulates the outcome of a single ask call.
type StreamingAskResult struct {
	// Response is the accumulated answer text.
	Response string `json:"response"`

	// OriginalResources is the last retrieval payload seen, passed through
	// without interpretation.
	OriginalResources json.RawMessage `json:"original_resources,omitempty"`

	// Citations is the last citation list seen, addressable by position.
	Citations IndexedCitations `json:"citations,omitempty"`
}

// Citation is a single citation record as delivered by the knowledge base.
type Citation struct {
	// ID is the paragraph key when the service sends citations keyed by
	// paragraph; empty for list-shaped payloads.
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

// IndexedCitations maps a 0-based position to the citation found there.
type IndexedCitations map[int]Citation

// IndexCitations materializes a citation list into an IndexedCitations map.
// Keys run 0..len(citations)-1 in the original order.
func IndexCitations(citations []Citation) IndexedCitations {
	indexed := make(IndexedCitations, len(citations))
	for i, c := range citations {
		indexed[i] = c
	}
	return indexed
}

// Ordered returns the citations back in index order.
func (ic IndexedCitations) Ordered() []Citation {
	keys := make([]int, 0, len(ic))
	for k := range ic {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]Citation, 0, len(keys))
	for _, k := range keys {
		out = append(out, ic[k])
	}
	return out
}

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
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "the": true, "to": true, "was": true, "with": true,
	"what": true, "when": true, "where": true, "who": true, "which": true,
	"why": true, "how": true, "do": true, "does": true, "can": true,
	"i": true, "you": true, "we": true, "my": true, "our": true,
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit, dropping stop words and single characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Match ranks suggestions by BM25 relevance to a partially typed question
// and returns at most limit of them. Suggestions sharing no term with the
// question are dropped; ties keep their display order. An empty question
// returns the first limit suggestions unchanged.
func Match(list []Suggestion, question string, limit int) []Suggestion {
	limit = NormalizeLimit(limit)

	queryTerms := tokenize(question)
	if len(queryTerms) == 0 {
		if len(list) > limit {
			list = list[:limit]
		}
		return append([]Suggestion(nil), list...)
	}

	docs := make([]map[string]int, len(list))
	lengths := make([]int, len(list))
	docFreq := make(map[string]int)
	total := 0
	for i, s := range list {
		tokens := tokenize(s.Text)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			docFreq[t]++
		}
		docs[i] = tf
		lengths[i] = len(tokens)
		total += len(tokens)
	}
	if total == 0 {
		return nil
	}
	avgLen := float64(total) / float64(len(list))
	n := float64(len(list))

	type scored struct {
		index int
		score float64
	}
	var hits []scored
	for i, tf := range docs {
		var score float64
		for _, term := range queryTerms {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			df := float64(docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - bm25B + bm25B*float64(lengths[i])/avgLen
			score += idf * f * (bm25K1 + 1) / (f + bm25K1*norm)
		}
		if score > 0 {
			hits = append(hits, scored{index: i, score: score})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]Suggestion, len(hits))
	for i, h := range hits {
		out[i] = list[h.index]
	}
	return out
}

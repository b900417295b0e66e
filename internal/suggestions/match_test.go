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
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases and splits", "Net Sales, 2024!", []string{"net", "sales", "2024"}},
		{"drops stop words", "What is the revenue of pgEdge?", []string{"revenue", "pgedge"}},
		{"drops single characters", "a b cd", []string{"cd"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.in)
			assert.DeepEqual(t, append([]string{}, got...), tt.want)
		})
	}
}

func suggestionList(texts ...string) []Suggestion {
	out := make([]Suggestion, len(texts))
	for i, text := range texts {
		out[i] = Suggestion{ID: string(rune('a' + i)), Text: text}
	}
	return out
}

func texts(list []Suggestion) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Text
	}
	return out
}

func TestMatch_RanksByRelevance(t *testing.T) {
	list := suggestionList(
		"How does replication work?",
		"What were net sales in 2024 for each quarter?",
		"Show net sales and net profit by region",
		"Which regions are supported?",
	)

	got := Match(list, "net sales", 10)
	assert.DeepEqual(t, texts(got), []string{
		"Show net sales and net profit by region",
		"What were net sales in 2024 for each quarter?",
	})
}

func TestMatch_DropsUnrelated(t *testing.T) {
	list := suggestionList("How does replication work?", "Which regions are supported?")

	assert.Assert(t, is.Len(Match(list, "sonnet", 5), 0))
}

func TestMatch_EmptyQuestion(t *testing.T) {
	list := suggestionList("one thing", "two things", "three things")

	got := Match(list, "  the ", 2)
	assert.DeepEqual(t, texts(got), []string{"one thing", "two things"})

	got[0].Text = "changed"
	assert.Equal(t, list[0].Text, "one thing")
}

func TestMatch_Limit(t *testing.T) {
	list := suggestionList("sales 2022", "sales 2023", "sales 2024")

	got := Match(list, "sales", 2)
	assert.DeepEqual(t, texts(got), []string{"sales 2022", "sales 2023"})
}

func TestMatch_NoTokensInSuggestions(t *testing.T) {
	assert.Assert(t, is.Len(Match(suggestionList("?", "!"), "sales", 5), 0))
	assert.Assert(t, is.Len(Match(nil, "sales", 5), 0))
}

//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func fixClock(t *testing.T, ts time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = prev })
}

func TestNewUserMessage(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fixClock(t, ts)

	m := NewUserMessage("What were net sales?")

	parsed, err := uuid.Parse(m.ID)
	assert.NilError(t, err)
	assert.Equal(t, parsed.Version(), uuid.Version(4))
	assert.Equal(t, m.Text, "What were net sales?")
	assert.Equal(t, m.AuthorID, UserAuthorID)
	assert.Equal(t, m.AuthorName, UserAuthorName)
	assert.Equal(t, m.Timestamp, ts)
}

func TestNewAssistantMessage(t *testing.T) {
	m := NewAssistantMessage("charts", "Net sales grew.")
	assert.Equal(t, m.AuthorID, AssistantAuthorID)
	assert.Equal(t, m.AuthorName, "Assistant (charts)")

	plain := NewAssistantMessage("", "x")
	assert.Equal(t, plain.AuthorName, "Assistant")

	assert.Assert(t, m.ID != plain.ID, "message ids must be unique")
}

func TestMessage_JSON(t *testing.T) {
	fixClock(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	m := NewUserMessage("hi")
	m.ID = "fixed"

	data, err := json.Marshal(m)
	assert.NilError(t, err)
	assert.Equal(t, string(data),
		`{"id":"fixed","text":"hi","author_id":"user","author_name":"You","timestamp":"2025-03-01T12:00:00Z"}`)
}

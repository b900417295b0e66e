//-------------------------------------------------------------------------
//
// pgEdge Ask Gateway
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package chat defines the chat message shape shown by conversational
// front ends.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Author ids used on messages.
const (
	UserAuthorID      = "user"
	AssistantAuthorID = "assistant"
	UserAuthorName    = "You"
)

// Message is a single entry of a chat transcript.
type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Timestamp  time.Time `json:"timestamp"`
}

var now = func() time.Time { return time.Now().UTC() }

// NewUserMessage creates a message authored by the user.
func NewUserMessage(text string) Message {
	return Message{
		ID:         uuid.NewString(),
		Text:       text,
		AuthorID:   UserAuthorID,
		AuthorName: UserAuthorName,
		Timestamp:  now(),
	}
}

// NewAssistantMessage creates a message answering from the named
// knowledge base.
func NewAssistantMessage(knowledgeBase, text string) Message {
	name := "Assistant"
	if knowledgeBase != "" {
		name += " (" + knowledgeBase + ")"
	}
	return Message{
		ID:         uuid.NewString(),
		Text:       text,
		AuthorID:   AssistantAuthorID,
		AuthorName: name,
		Timestamp:  now(),
	}
}

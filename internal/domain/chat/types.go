// Package chat implements a streaming, retrieval-grounded chat
// orchestrator: a discriminated SSE event envelope over persisted
// multi-turn sessions.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
)

// Role identifies the speaker of a persisted message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is a persisted conversation scoped to one owner and collection.
type Session struct {
	ID           uuid.UUID
	OwnerID      int64
	CollectionID uuid.UUID
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one persisted turn within a Session.
type Message struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Role      Role
	Content   string
	Sources   []Source
	CreatedAt time.Time
}

// Source records one retrieval candidate a reply was grounded on, kept
// alongside the assistant message it supported.
type Source struct {
	DocumentID    uuid.UUID
	DocumentTitle string
	ChunkID       uuid.UUID
	Score         float64
}

// TurnRequest starts a new turn in a session.
type TurnRequest struct {
	OwnerID      int64
	SessionID    uuid.UUID // uuid.Nil starts a new session
	CollectionID uuid.UUID
	Message      string
	Mode         retrieval.Mode
	Rerank       bool
}

// EventType discriminates the SSE envelope emitted per turn.
type EventType string

const (
	EventDelta   EventType = "delta"
	EventSources EventType = "sources"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Event is one frame of a streamed turn. Exactly one of its payload fields
// is populated, matching EventType.
type Event struct {
	Type    EventType
	Delta   string    // set on EventDelta: the next token fragment
	Sources []Source  // set on EventSources: retrieval grounding for the reply
	Message Message   // set on EventDone: the persisted assistant message
	Err     string    // set on EventError: a user-safe error message
}

// ListFilter scopes a session/message listing to one owner, optionally one
// collection.
type ListFilter struct {
	OwnerID      int64
	CollectionID uuid.UUID
}

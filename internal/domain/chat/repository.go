package chat

import (
	"context"

	"github.com/google/uuid"
)

// SessionRepository persists chat sessions.
type SessionRepository interface {
	Create(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, ownerID int64, id uuid.UUID) (Session, bool, error)
	List(ctx context.Context, f ListFilter) ([]Session, error)
	Touch(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, ownerID int64, id uuid.UUID) error
	DeleteByCollection(ctx context.Context, collectionID uuid.UUID) error
}

// MessageRepository persists chat messages belonging to a session.
type MessageRepository interface {
	Create(ctx context.Context, m Message) (Message, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
}

// ChatLLM is the minimal streaming chat completion surface the chat domain
// depends on, kept narrow and local to avoid importing the infra llm client
// package from the domain layer.
type ChatLLM interface {
	Stream(ctx context.Context, messages []LLMMessage) (<-chan LLMChunk, error)
}

// LLMMessage is one role/content pair sent to the chat model.
type LLMMessage struct {
	Role    string
	Content string
}

// LLMChunk is one streamed fragment of the model's reply.
type LLMChunk struct {
	Delta string
	Err   error
}

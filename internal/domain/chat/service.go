package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
	"github.com/raghavpatnecha/mnemosyne/pkg/keylock"

	apperrors "github.com/raghavpatnecha/mnemosyne/pkg/errors"
)

const systemPrompt = "Answer the user's question using only the supplied context. If the context does not contain the answer, say so plainly."

// Config holds chat-domain tunables.
type Config struct {
	DefaultTopK int
}

// Service runs one streamed chat turn end to end: resolve/create the
// session, persist the user message, retrieve grounding context, stream the
// model's reply, then persist the assistant message — unless the caller
// disconnects mid-stream, in which case persistence of the assistant turn
// and the terminal done event are both skipped.
type Service interface {
	Turn(ctx context.Context, req TurnRequest) (<-chan Event, error)
	ListSessions(ctx context.Context, f ListFilter) ([]Session, error)
	ListMessages(ctx context.Context, ownerID int64, sessionID uuid.UUID) ([]Message, error)
	DeleteSession(ctx context.Context, ownerID int64, sessionID uuid.UUID) error
}

type service struct {
	cfg        Config
	sessions   SessionRepository
	messages   MessageRepository
	retriever  retrieval.Service
	llm        ChatLLM
	locks      *keylock.Map
	logger     *slog.Logger
}

// NewService is a wire provider for the chat domain.
func NewService(cfg Config, sessions SessionRepository, messages MessageRepository, retriever retrieval.Service, llm ChatLLM, logger *slog.Logger) Service {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &service{
		cfg: cfg, sessions: sessions, messages: messages, retriever: retriever, llm: llm,
		locks: keylock.New(), logger: logger.With("component", "chat.service"),
	}
}

func (s *service) Turn(ctx context.Context, req TurnRequest) (<-chan Event, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, apperrors.Wrap("validation", "message cannot be empty", nil)
	}
	if req.CollectionID == uuid.Nil {
		return nil, apperrors.Wrap("validation", "collectionId is required", nil)
	}

	session, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(session.ID)

	out := make(chan Event)
	go func() {
		defer close(out)
		defer unlock()
		s.runTurn(ctx, session, req, text, out)
	}()
	return out, nil
}

// resolveSession enforces that a session id is always server-issued and
// owner-scoped: an absent, foreign, or unknown client-supplied id silently
// starts a fresh session rather than erroring or trusting the caller.
func (s *service) resolveSession(ctx context.Context, req TurnRequest) (Session, error) {
	if req.SessionID != uuid.Nil {
		existing, found, err := s.sessions.Get(ctx, req.OwnerID, req.SessionID)
		if err != nil {
			return Session{}, err
		}
		if found && existing.CollectionID == req.CollectionID {
			return existing, nil
		}
	}
	return s.sessions.Create(ctx, Session{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		CollectionID: req.CollectionID,
		Title:        titleFromMessage(req.Message),
	})
}

func (s *service) runTurn(ctx context.Context, session Session, req TurnRequest, text string, out chan<- Event) {
	if _, err := s.messages.Create(ctx, Message{
		ID: uuid.New(), SessionID: session.ID, Role: RoleUser, Content: text,
	}); err != nil {
		s.emitError(ctx, out, "failed to persist message", err)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = retrieval.ModeHybrid
	}
	result, err := s.retriever.Retrieve(ctx, retrieval.Query{
		OwnerID: req.OwnerID, CollectionID: req.CollectionID, Text: text,
		Mode: mode, TopK: s.cfg.DefaultTopK, Rerank: req.Rerank,
	})
	if err != nil {
		s.emitError(ctx, out, "retrieval failed", err)
		return
	}

	sources := toSources(result.Candidates)
	llmMessages := buildPrompt(text, result.Candidates)

	stream, err := s.llm.Stream(ctx, llmMessages)
	if err != nil {
		s.emitError(ctx, out, "chat completion failed", err)
		return
	}

	var reply strings.Builder
	for chunk := range stream {
		if chunk.Err != nil {
			s.emitError(ctx, out, "chat completion stream failed", chunk.Err)
			return
		}
		reply.WriteString(chunk.Delta)
		if !s.send(ctx, out, Event{Type: EventDelta, Delta: chunk.Delta}) {
			return // client disconnected: skip persistence and done
		}
	}
	if ctx.Err() != nil {
		return // client disconnected: skip sources, persistence and done
	}

	if !s.send(ctx, out, Event{Type: EventSources, Sources: sources}) || ctx.Err() != nil {
		return
	}

	assistantMsg, err := s.messages.Create(ctx, Message{
		ID: uuid.New(), SessionID: session.ID, Role: RoleAssistant, Content: reply.String(), Sources: sources,
	})
	if err != nil {
		s.emitError(ctx, out, "failed to persist reply", err)
		return
	}
	if err := s.sessions.Touch(ctx, session.ID); err != nil {
		s.logger.Warn("failed to touch session timestamp", "error", err)
	}

	s.send(ctx, out, Event{Type: EventDone, Message: assistantMsg})
}

// send delivers an event unless the request context has already been
// cancelled (client disconnect), in which case it reports false so the
// caller can stop without persisting a terminal event.
func (s *service) send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *service) emitError(ctx context.Context, out chan<- Event, msg string, err error) {
	s.logger.Error(msg, "error", err)
	s.send(ctx, out, Event{Type: EventError, Err: msg})
}

func (s *service) ListSessions(ctx context.Context, f ListFilter) ([]Session, error) {
	return s.sessions.List(ctx, f)
}

func (s *service) ListMessages(ctx context.Context, ownerID int64, sessionID uuid.UUID) ([]Message, error) {
	if _, found, err := s.sessions.Get(ctx, ownerID, sessionID); err != nil || !found {
		if err != nil {
			return nil, apperrors.Wrap("internal", "failed to load session", err)
		}
		return nil, apperrors.Wrap("not_found", "session not found", nil)
	}
	return s.messages.ListBySession(ctx, sessionID)
}

func (s *service) DeleteSession(ctx context.Context, ownerID int64, sessionID uuid.UUID) error {
	return s.sessions.Delete(ctx, ownerID, sessionID)
}

func buildPrompt(question string, candidates []retrieval.Candidate) []LLMMessage {
	var context strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&context, "[%d] (%s)\n%s\n\n", i+1, c.DocumentTitle, c.Content)
	}
	userContent := fmt.Sprintf("Context:\n%s\nQuestion: %s", context.String(), question)
	return []LLMMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userContent},
	}
}

func toSources(candidates []retrieval.Candidate) []Source {
	sources := make([]Source, 0, len(candidates))
	for _, c := range candidates {
		sources = append(sources, Source{DocumentID: c.DocumentID, DocumentTitle: c.DocumentTitle, ChunkID: c.ChunkID, Score: c.Score})
	}
	return sources
}

func titleFromMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	const maxLen = 80
	if len(msg) <= maxLen {
		return msg
	}
	return strings.TrimSpace(msg[:maxLen]) + "..."
}

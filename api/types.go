package api

import (
	"context"

	"kanban-api/domain"
)

// Storage abstracts board persistence for handlers.
type Storage interface {
	FetchBoard(ctx context.Context) (domain.Board, error)
	ReplaceBoard(ctx context.Context, columns []domain.ColumnWrite, cards []domain.CardWrite) error
}

// Gateway sends a chat conversation to the model provider and returns its
// raw reply.
type Gateway interface {
	Send(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// SessionStore tracks authenticated sessions by opaque token.
type SessionStore interface {
	// Create starts a session and returns its token.
	Create(ctx context.Context) (string, error)
	// Valid reports whether the token belongs to a live session and, if so,
	// refreshes its inactivity window.
	Valid(ctx context.Context, token string) (bool, error)
	// Invalidate ends the session for the given token.
	Invalidate(ctx context.Context, token string) error
}

// RateLimiter bounds how often a key may perform an action inside a sliding
// time window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

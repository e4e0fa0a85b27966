package dataops

import (
	"context"
	"time"
)

// Session identifies one user's continuing conversation. It is owned by a
// SessionService, which also decides when it expires.
type Session struct {
	ID        string
	AppName   string
	UserID    string
	Turns     []Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Turn records one completed invocation so follow-up questions have context.
type Turn struct {
	Question  string
	SQL       string
	Answer    string
	Timestamp time.Time
}

// SessionService stores sessions across pipeline invocations.
type SessionService interface {
	CreateSession(ctx context.Context, appName, userID string) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	AppendTurn(ctx context.Context, id string, turn Turn) error
	DeleteSession(ctx context.Context, id string) error
}

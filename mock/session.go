package mock

import (
	"context"

	"github.com/fwojciec/dataops"
)

// Interface compliance check.
var _ dataops.SessionService = (*SessionService)(nil)

// SessionService is a test double for dataops.SessionService.
type SessionService struct {
	CreateSessionFn func(ctx context.Context, appName, userID string) (dataops.Session, error)
	GetSessionFn    func(ctx context.Context, id string) (dataops.Session, error)
	AppendTurnFn    func(ctx context.Context, id string, turn dataops.Turn) error
	DeleteSessionFn func(ctx context.Context, id string) error
}

// CreateSession delegates to CreateSessionFn.
func (s *SessionService) CreateSession(ctx context.Context, appName, userID string) (dataops.Session, error) {
	return s.CreateSessionFn(ctx, appName, userID)
}

// GetSession delegates to GetSessionFn.
func (s *SessionService) GetSession(ctx context.Context, id string) (dataops.Session, error) {
	return s.GetSessionFn(ctx, id)
}

// AppendTurn delegates to AppendTurnFn. Returns nil when AppendTurnFn is nil.
func (s *SessionService) AppendTurn(ctx context.Context, id string, turn dataops.Turn) error {
	if s.AppendTurnFn == nil {
		return nil
	}
	return s.AppendTurnFn(ctx, id, turn)
}

// DeleteSession delegates to DeleteSessionFn.
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	return s.DeleteSessionFn(ctx, id)
}

// Package memory implements an in-process [dataops.SessionService] whose
// sessions expire after a period of inactivity.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/metrics"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = time.Hour

// Interface compliance check.
var _ dataops.SessionService = (*SessionService)(nil)

// SessionService keeps sessions in a TTL cache. Reading or updating a
// session extends its lifetime.
type SessionService struct {
	mu    sync.Mutex // serializes read-modify-write of a session
	cache *ttlcache.Cache[string, dataops.Session]

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// NewSessionService returns a SessionService with the given idle TTL.
// A ttl of zero uses DefaultTTL. Call Start to evict expired sessions in the
// background and Stop to release it.
func NewSessionService(ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, dataops.Session](ttl),
	)
	cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, _ *ttlcache.Item[string, dataops.Session]) {
		metrics.SessionsActive.Dec()
	})
	return &SessionService{
		cache: cache,
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// Start runs the expiry loop until Stop is called.
func (s *SessionService) Start() { go s.cache.Start() }

// Stop ends the expiry loop.
func (s *SessionService) Stop() { s.cache.Stop() }

// Len returns the number of live sessions.
func (s *SessionService) Len() int { return s.cache.Len() }

// CreateSession creates an empty session.
func (s *SessionService) CreateSession(_ context.Context, appName, userID string) (dataops.Session, error) {
	if userID == "" {
		return dataops.Session{}, fmt.Errorf("memory: user id is required: %w", dataops.ErrValidation)
	}
	now := s.Now()
	sess := dataops.Session{
		ID:        s.NewID(),
		AppName:   appName,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.cache.Set(sess.ID, sess, ttlcache.DefaultTTL)
	metrics.SessionsActive.Inc()
	return clone(sess), nil
}

// GetSession returns a copy of the session.
func (s *SessionService) GetSession(_ context.Context, id string) (dataops.Session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return dataops.Session{}, fmt.Errorf("memory: session %s: %w", id, dataops.ErrSessionNotFound)
	}
	return clone(item.Value()), nil
}

// AppendTurn records a completed invocation.
func (s *SessionService) AppendTurn(_ context.Context, id string, turn dataops.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.cache.Get(id)
	if item == nil {
		return fmt.Errorf("memory: session %s: %w", id, dataops.ErrSessionNotFound)
	}
	sess := clone(item.Value())
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.Now()
	}
	sess.Turns = append(sess.Turns, turn)
	sess.UpdatedAt = s.Now()
	s.cache.Set(id, sess, ttlcache.DefaultTTL)
	return nil
}

// DeleteSession removes the session.
func (s *SessionService) DeleteSession(_ context.Context, id string) error {
	if !s.cache.Has(id) {
		return fmt.Errorf("memory: session %s: %w", id, dataops.ErrSessionNotFound)
	}
	s.cache.Delete(id)
	return nil
}

func clone(s dataops.Session) dataops.Session {
	s.Turns = slices.Clone(s.Turns)
	return s
}

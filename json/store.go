package json

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fwojciec/dataops"
	"github.com/google/uuid"
)

// Interface compliance check.
var _ dataops.SessionService = (*Store)(nil)

// Store is a [dataops.SessionService] that keeps one JSON file per session
// in a directory. It is safe for concurrent use within one process.
type Store struct {
	dir string
	mu  sync.Mutex

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// NewStore returns a Store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir, Now: time.Now, NewID: uuid.NewString}
}

// path maps a session id to its file. Ids are uuids so they can never
// escape the directory.
func (s *Store) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("json: session %q: %w", id, dataops.ErrSessionNotFound)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// CreateSession creates and persists an empty session.
func (s *Store) CreateSession(_ context.Context, appName, userID string) (dataops.Session, error) {
	if userID == "" {
		return dataops.Session{}, fmt.Errorf("json: user id is required: %w", dataops.ErrValidation)
	}
	now := s.Now()
	sess := dataops.Session{ID: s.NewID(), AppName: appName, UserID: userID, CreatedAt: now, UpdatedAt: now}
	path, err := s.path(sess.ID)
	if err != nil {
		return dataops.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := Save(path, sess); err != nil {
		return dataops.Session{}, fmt.Errorf("json: save session: %w", err)
	}
	return sess, nil
}

// GetSession loads a session.
func (s *Store) GetSession(_ context.Context, id string) (dataops.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *Store) load(id string) (dataops.Session, error) {
	path, err := s.path(id)
	if err != nil {
		return dataops.Session{}, err
	}
	sess, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return dataops.Session{}, fmt.Errorf("json: session %s: %w", id, dataops.ErrSessionNotFound)
	}
	if err != nil {
		return dataops.Session{}, fmt.Errorf("json: load session %s: %w", id, err)
	}
	return sess, nil
}

// AppendTurn records a completed invocation and rewrites the file.
func (s *Store) AppendTurn(_ context.Context, id string, turn dataops.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.load(id)
	if err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.Now()
	}
	sess.Turns = append(slices.Clone(sess.Turns), turn)
	sess.UpdatedAt = s.Now()
	path, _ := s.path(id)
	if err := Save(path, sess); err != nil {
		return fmt.Errorf("json: save session %s: %w", id, err)
	}
	return nil
}

// DeleteSession removes the session file.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("json: session %s: %w", id, dataops.ErrSessionNotFound)
		}
		return fmt.Errorf("json: delete session %s: %w", id, err)
	}
	return nil
}

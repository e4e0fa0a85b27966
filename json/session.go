// Package json implements the JSON wire formats of dataops: the persisted
// session envelope and the event encoding used on the agent API. It also
// provides a directory-backed [dataops.SessionService].
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/dataops"
)

// envelope is the v1 wire format for a persisted session.
type envelope struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	AppName   string    `json:"app_name"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []turnDTO `json:"turns"`
}

type turnDTO struct {
	Question  string    `json:"question"`
	SQL       string    `json:"sql,omitempty"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalSession serializes a Session to JSON in v1 envelope format.
func MarshalSession(s dataops.Session) ([]byte, error) {
	return json.MarshalIndent(toEnvelope(s), "", "  ")
}

func toEnvelope(s dataops.Session) envelope {
	env := envelope{
		Version:   1,
		ID:        s.ID,
		AppName:   s.AppName,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Turns:     make([]turnDTO, len(s.Turns)),
	}
	for i, t := range s.Turns {
		env.Turns[i] = turnDTO{Question: t.Question, SQL: t.SQL, Answer: t.Answer, Timestamp: t.Timestamp}
	}
	return env
}

// UnmarshalSession deserializes a Session from JSON in v1 envelope format.
func UnmarshalSession(data []byte) (dataops.Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return dataops.Session{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return dataops.Session{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	if env.ID == "" {
		return dataops.Session{}, fmt.Errorf("session id is empty: %w", dataops.ErrValidation)
	}
	s := dataops.Session{
		ID:        env.ID,
		AppName:   env.AppName,
		UserID:    env.UserID,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
	}
	for _, t := range env.Turns {
		s.Turns = append(s.Turns, dataops.Turn{Question: t.Question, SQL: t.SQL, Answer: t.Answer, Timestamp: t.Timestamp})
	}
	return s, nil
}

// Save writes a Session to a JSON file, creating parent directories as needed.
func Save(path string, s dataops.Session) error {
	data, err := MarshalSession(s)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a Session from a JSON file.
func Load(path string) (dataops.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return dataops.Session{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalSession(data)
}

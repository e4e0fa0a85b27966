package json_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/dataops"
	dataopsjson "github.com/fwojciec/dataops/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func TestMarshalSession_RoundTrip(t *testing.T) {
	t.Parallel()
	session := dataops.Session{
		ID:        "2f0c4a58-7b8e-4a57-9a8c-1d2e3f405162",
		AppName:   "GithubAnalysisAgent",
		UserID:    "u1",
		CreatedAt: created,
		UpdatedAt: created.Add(5 * time.Minute),
		Turns: []dataops.Turn{
			{Question: "top repos", SQL: "SELECT 1", Answer: "golang/go", Timestamp: created.Add(time.Minute)},
			{Question: "hello", Answer: "I answer questions about GitHub data.", Timestamp: created.Add(2 * time.Minute)},
		},
	}

	data, err := dataopsjson.MarshalSession(session)
	require.NoError(t, err)
	got, err := dataopsjson.UnmarshalSession(data)
	require.NoError(t, err)

	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.AppName, got.AppName)
	assert.Equal(t, session.UserID, got.UserID)
	assert.True(t, session.UpdatedAt.Equal(got.UpdatedAt), "UpdatedAt mismatch")
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "SELECT 1", got.Turns[0].SQL)
	assert.Empty(t, got.Turns[1].SQL)
	assert.True(t, session.Turns[1].Timestamp.Equal(got.Turns[1].Timestamp))
}

func TestMarshalSession_V1Envelope(t *testing.T) {
	t.Parallel()
	data, err := dataopsjson.MarshalSession(dataops.Session{ID: "s", CreatedAt: created, UpdatedAt: created})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.InDelta(t, 1, raw["version"], 0)
	assert.Equal(t, "s", raw["id"])
	assert.Equal(t, []any{}, raw["turns"])
	assert.Contains(t, raw, "app_name")
	assert.Contains(t, raw, "created_at")
}

func TestUnmarshalSession_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want string
	}{
		{"unsupported version", `{"version":2,"id":"s"}`, "unsupported envelope version: 2"},
		{"missing id", `{"version":1}`, "session id is empty"},
		{"malformed", `{"version":`, "unmarshal envelope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := dataopsjson.UnmarshalSession([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSave_And_Load(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.json")
	session := dataops.Session{ID: "s", UserID: "u1", CreatedAt: created, UpdatedAt: created}

	require.NoError(t, dataopsjson.Save(path, session))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := dataopsjson.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
}

func TestLoad_NonexistentFile(t *testing.T) {
	t.Parallel()
	_, err := dataopsjson.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEvent_RoundTrip(t *testing.T) {
	t.Parallel()

	parts := []dataops.Part{
		dataops.TextPart{Text: "The query is valid."},
		dataops.ToolCallPart{ID: "c1", Name: "explain_query", Args: map[string]any{"sql": "SELECT 1"}},
		dataops.ToolResultPart{ID: "c1", Name: "explain_query", Response: map[string]any{"valid": true, "bytes_processed": float64(2048)}},
	}
	for i, p := range parts {
		e := dataops.Event{Author: "GithubQueryExplainerAgent", InvocationID: "inv-1", Seq: i, Part: p, Timestamp: created}
		data, err := dataopsjson.MarshalEvent(e)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "\n")

		got, err := dataopsjson.UnmarshalEvent(data)
		require.NoError(t, err)
		assert.Equal(t, e.Author, got.Author)
		assert.Equal(t, e.InvocationID, got.InvocationID)
		assert.Equal(t, i, got.Seq)
		assert.True(t, created.Equal(got.Timestamp))
		assert.Equal(t, p, got.Part)
	}
}

func TestMarshalEvent_WireFormat(t *testing.T) {
	t.Parallel()
	data, err := dataopsjson.MarshalEvent(dataops.Event{
		Author: "a",
		Part:   dataops.ToolCallPart{ID: "c1", Name: "execute_bigquery_sql"},
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	part := raw["part"].(map[string]any)
	assert.Equal(t, "tool_call", part["type"])
	assert.Equal(t, map[string]any{}, part["args"])
	assert.NotContains(t, part, "text")
}

func TestUnmarshalEvent_UnknownPartType(t *testing.T) {
	t.Parallel()
	_, err := dataopsjson.UnmarshalEvent([]byte(`{"author":"a","part":{"type":"image"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown part type: "image"`)
}

func TestStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := dataopsjson.NewStore(dir)
	s.Now = func() time.Time { return created }

	sess, err := s.CreateSession(ctx, "GithubAnalysisAgent", "u1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, sess.ID+".json"))

	require.NoError(t, s.AppendTurn(ctx, sess.ID, dataops.Turn{Question: "q1", SQL: "SELECT 1", Answer: "a1"}))

	// A second store over the same directory sees the persisted turn.
	got, err := dataopsjson.NewStore(dir).GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	require.Len(t, got.Turns, 1)
	assert.Equal(t, "q1", got.Turns[0].Question)
	assert.True(t, created.Equal(got.Turns[0].Timestamp))

	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, dataops.ErrSessionNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, sess.ID), dataops.ErrSessionNotFound)
}

func TestStore_RejectsForeignIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := dataopsjson.NewStore(t.TempDir())

	_, err := s.GetSession(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, dataops.ErrSessionNotFound)
	assert.ErrorIs(t, s.AppendTurn(ctx, "not-a-uuid", dataops.Turn{}), dataops.ErrSessionNotFound)

	_, err = s.CreateSession(ctx, "app", "")
	assert.ErrorIs(t, err, dataops.ErrValidation)
}

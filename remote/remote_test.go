package remote_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/dataops"
	dataopschi "github.com/fwojciec/dataops/chi"
	"github.com/fwojciec/dataops/mock"
	"github.com/fwojciec/dataops/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend serves agent through the real HTTP API and returns a remote
// client for it.
func backend(t *testing.T, agent dataops.Agent) *remote.Client {
	t.Helper()
	s, err := dataopschi.NewServer(dataopschi.Config{Agent: agent})
	require.NoError(t, err)
	ts := httptest.NewServer(s)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	c, err := remote.New(ts.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	t.Parallel()
	for _, u := range []string{"", "localhost:8080", "://bad"} {
		_, err := remote.New(u)
		assert.ErrorIs(t, err, dataops.ErrConfig, u)
	}
}

func TestClient_CreateSession(t *testing.T) {
	t.Parallel()

	c := backend(t, &mock.Agent{CreateSessionFn: func(_ context.Context, userID string) (dataops.Session, error) {
		if userID == "" {
			return dataops.Session{}, fmt.Errorf("user id is required: %w", dataops.ErrValidation)
		}
		return dataops.Session{ID: "sess-1", AppName: "GithubAnalysisAgent", UserID: userID}, nil
	}})

	sess, err := c.CreateSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "GithubAnalysisAgent", sess.AppName)
	assert.Equal(t, "u1", sess.UserID)

	_, err = c.CreateSession(context.Background(), "")
	assert.ErrorIs(t, err, dataops.ErrValidation)
}

func TestClient_StreamQuery(t *testing.T) {
	t.Parallel()

	want := []dataops.Event{
		{Author: "GithubQueryGeneratorAgent", InvocationID: "inv-1", Seq: 0, Part: dataops.TextPart{Text: "```sql\nSELECT 1\n```"}},
		{Author: "GithubAnalysisAgent", InvocationID: "inv-1", Seq: 1, Part: dataops.ToolCallPart{
			ID: "consent_inv-1", Name: dataops.ConsentTool, Args: map[string]any{"sql": "SELECT 1", "bytes_processed": float64(1024)},
		}},
		{Author: "GithubAnalysisAgent", InvocationID: "inv-1", Seq: 2, Part: dataops.ToolResultPart{
			ID: "consent_inv-1", Name: dataops.ConsentTool, Response: map[string]any{"approved": true},
		}},
	}
	c := backend(t, &mock.Agent{StreamQueryFn: func(_ context.Context, req dataops.QueryRequest, onEvent func(dataops.Event)) error {
		assert.Equal(t, dataops.QueryRequest{UserID: "u1", SessionID: "sess-1", Message: "top repos"}, req)
		for _, e := range want {
			onEvent(e)
		}
		return nil
	}})

	var got []dataops.Event
	err := c.StreamQuery(context.Background(), dataops.QueryRequest{UserID: "u1", SessionID: "sess-1", Message: "top repos"}, func(e dataops.Event) {
		got = append(got, e)
	})
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Author, got[i].Author)
		assert.Equal(t, want[i].Seq, got[i].Seq)
		assert.Equal(t, want[i].Part, got[i].Part)
	}
	p, ok := dataops.ConsentPrompt(got[1])
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", p.Args["sql"])
}

func TestClient_StreamQuery_AgentError(t *testing.T) {
	t.Parallel()

	c := backend(t, &mock.Agent{StreamQueryFn: func(context.Context, dataops.QueryRequest, func(dataops.Event)) error {
		return errors.New("model unavailable")
	}})
	err := c.StreamQuery(context.Background(), dataops.QueryRequest{UserID: "u1", SessionID: "s", Message: "q"}, func(dataops.Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestClient_StreamQuery_InvalidRequest(t *testing.T) {
	t.Parallel()

	c, err := remote.New("http://127.0.0.1:1")
	require.NoError(t, err)
	err = c.StreamQuery(context.Background(), dataops.QueryRequest{UserID: "u1", SessionID: "s"}, func(dataops.Event) {})
	assert.ErrorIs(t, err, dataops.ErrValidation)
}

func TestClient_StreamQuery_TruncatedStream(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keepalive\n\nevent: event\ndata: {\"author\":\"a\",\"invocation_id\":\"i\",\"seq\":0,\"part\":{\"type\":\"text\",\"text\":\"hi\"}}\n\n")
	}))
	t.Cleanup(ts.Close)
	c, err := remote.New(ts.URL)
	require.NoError(t, err)

	n := 0
	err = c.StreamQuery(context.Background(), dataops.QueryRequest{UserID: "u1", SessionID: "s", Message: "q"}, func(dataops.Event) { n++ })
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestClient_Consent(t *testing.T) {
	t.Parallel()

	var approved bool
	c := backend(t, &mock.Agent{ConsentFn: func(_ context.Context, sessionID, invocationID string, approve bool) error {
		if sessionID != "sess-1" || invocationID != "inv-1" {
			return dataops.ErrNoPendingConsent
		}
		approved = approve
		return nil
	}})

	require.NoError(t, c.Consent(context.Background(), "sess-1", "inv-1", true))
	assert.True(t, approved)

	err := c.Consent(context.Background(), "sess-1", "inv-9", true)
	assert.ErrorIs(t, err, dataops.ErrNoPendingConsent)
}

func TestClient_StatusErrors(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/sessions/gone/query":
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"session not found"}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "upstream down")
		}
	}))
	t.Cleanup(ts.Close)
	c, err := remote.New(ts.URL)
	require.NoError(t, err)

	err = c.StreamQuery(context.Background(), dataops.QueryRequest{UserID: "u1", SessionID: "gone", Message: "q"}, func(dataops.Event) {})
	assert.ErrorIs(t, err, dataops.ErrSessionNotFound)

	_, err = c.CreateSession(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
	assert.Contains(t, err.Error(), "upstream down")
}

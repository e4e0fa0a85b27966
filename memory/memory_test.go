package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(ttl time.Duration) *memory.SessionService {
	s := memory.NewSessionService(ttl)
	n := 0
	s.NewID = func() string {
		n++
		return fmt.Sprintf("sess-%d", n)
	}
	return s
}

func TestSessionService_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newService(0)

	created, err := s.CreateSession(ctx, "GithubAnalysisAgent", "u1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", created.ID)
	assert.Equal(t, "GithubAnalysisAgent", created.AppName)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.AppendTurn(ctx, created.ID, dataops.Turn{Question: "q1", SQL: "SELECT 1", Answer: "a1"}))
	require.NoError(t, s.AppendTurn(ctx, created.ID, dataops.Turn{Question: "q2"}))

	got, err := s.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Turns, 2)
	assert.Equal(t, "q1", got.Turns[0].Question)
	assert.Equal(t, "SELECT 1", got.Turns[0].SQL)
	assert.False(t, got.Turns[1].Timestamp.IsZero())

	require.NoError(t, s.DeleteSession(ctx, created.ID))
	_, err = s.GetSession(ctx, created.ID)
	assert.ErrorIs(t, err, dataops.ErrSessionNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, created.ID), dataops.ErrSessionNotFound)
}

func TestSessionService_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newService(0)

	created, err := s.CreateSession(ctx, "app", "u1")
	require.NoError(t, err)
	require.NoError(t, s.AppendTurn(ctx, created.ID, dataops.Turn{Question: "q1"}))

	got, err := s.GetSession(ctx, created.ID)
	require.NoError(t, err)
	got.Turns[0].Question = "changed"

	again, err := s.GetSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "q1", again.Turns[0].Question)
}

func TestSessionService_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newService(0)

	_, err := s.CreateSession(ctx, "app", "")
	assert.ErrorIs(t, err, dataops.ErrValidation)
	assert.ErrorIs(t, s.AppendTurn(ctx, "missing", dataops.Turn{}), dataops.ErrSessionNotFound)
}

func TestSessionService_Expires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newService(20 * time.Millisecond)

	created, err := s.CreateSession(ctx, "app", "u1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := s.GetSession(ctx, created.ID)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestSessionService_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newService(0)
	created, err := s.CreateSession(ctx, "app", "u1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendTurn(ctx, created.ID, dataops.Turn{Question: fmt.Sprint(i)}))
		}()
	}
	wg.Wait()

	got, err := s.GetSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Turns, 20)
}

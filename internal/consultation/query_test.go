// internal/consultation/query_test.go
package consultation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joe-rq/MedCrowd-sub000/internal/agents"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/errors"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/consultation/events"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/store"
)

// recordingSink collects events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) ofType(typ events.Type) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func freshRecord(id string) *models.AgentRecord {
	return &models.AgentRecord{
		AgentID:        id,
		OwnerID:        "owner-" + id,
		AccessToken:    "token-" + id,
		RefreshToken:   "refresh-" + id,
		TokenExpiresAt: time.Now().Add(time.Hour),
		Consultable:    true,
	}
}

// chatTestServer answers per agent id: "ok-*" with a JSON body, "deny-*"
// with 401, "boom-*" with 500, "slow-*" after a long sleep.
func chatTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		require.GreaterOrEqual(t, len(parts), 3)
		agentID := parts[2]

		switch {
		case strings.HasPrefix(agentID, "deny"):
			w.WriteHeader(http.StatusUnauthorized)
		case strings.HasPrefix(agentID, "boom"):
			w.WriteHeader(http.StatusInternalServerError)
		case strings.HasPrefix(agentID, "slow"):
			time.Sleep(2 * time.Second)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"text": "answer from ` + agentID + `", "sessionId": "s-` + agentID + `"}`))
		}
	}))
}

func newTestRunner(t *testing.T, baseURL string, sink events.Sink) (*QueryRunner, *agents.Directory) {
	t.Helper()
	s := store.NewMemoryStore()
	directory := agents.NewDirectory(s)
	refresher := agents.NewRefresher(agents.RefresherConfig{
		RefreshURL:    baseURL + "/refresh",
		Grace:         time.Minute,
		LockTTL:       10 * time.Second,
		WaiterBackoff: 10 * time.Millisecond,
		Timeout:       time.Second,
	}, directory, s, logger.NewTestLogger(t))
	chat := agents.NewChatClient(agents.ChatClientConfig{BaseURL: baseURL, Timeout: time.Second})
	runner := NewQueryRunner(refresher, chat, directory, 30*time.Minute,
		events.NewPublisher(sink, logger.NewTestLogger(t)), logger.NewTestLogger(t))
	return runner, directory
}

func TestQueryRunnerCollectsEveryOutcome(t *testing.T) {
	server := chatTestServer(t)
	defer server.Close()

	sink := &recordingSink{}
	runner, directory := newTestRunner(t, server.URL, sink)

	records := []*models.AgentRecord{
		freshRecord("ok-1"),
		freshRecord("deny-1"),
		freshRecord("boom-1"),
		freshRecord("ok-2"),
	}
	ctx := context.Background()
	for _, rec := range records {
		require.NoError(t, directory.Put(ctx, rec))
	}

	outcomes := runner.RunRound(ctx, "c1", models.RoundInitial, records, "question", "prompt")

	require.Len(t, outcomes, 4)

	// Outcomes keep selection order.
	require.Nil(t, outcomes[0].Err)
	assert.Equal(t, "answer from ok-1", outcomes[0].Result.Text)
	assert.Equal(t, "s-ok-1", outcomes[0].Result.SessionID)

	require.NotNil(t, outcomes[1].Err)
	assert.Equal(t, errors.ErrCodeAgentAuthFailure, outcomes[1].Err.Code)

	require.NotNil(t, outcomes[2].Err)
	assert.Equal(t, errors.ErrCodeAgentCallFailed, outcomes[2].Err.Code)

	require.Nil(t, outcomes[3].Err)
	assert.Equal(t, "answer from ok-2", outcomes[3].Result.Text)

	// One started and one finished event per agent.
	assert.Len(t, sink.ofType(events.TypeAgentQueryStarted), 4)
	assert.Len(t, sink.ofType(events.TypeAgentQueryFinished), 4)
}

func TestQueryRunnerTimeoutDoesNotCancelSiblings(t *testing.T) {
	server := chatTestServer(t)
	defer server.Close()

	sink := &recordingSink{}
	runner, directory := newTestRunner(t, server.URL, sink)

	records := []*models.AgentRecord{
		freshRecord("slow-1"),
		freshRecord("ok-1"),
	}
	for _, rec := range records {
		require.NoError(t, directory.Put(context.Background(), rec))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	outcomes := runner.RunRound(ctx, "c1", models.RoundInitial, records, "question", "prompt")

	require.NotNil(t, outcomes[0].Err)
	assert.Equal(t, errors.ErrCodeAgentTimeout, outcomes[0].Err.Code)

	require.Nil(t, outcomes[1].Err)
	assert.Equal(t, "answer from ok-1", outcomes[1].Result.Text)

	// A timeout is transient; the agent stays available.
	rec, err := directory.Get(context.Background(), "slow-1")
	require.NoError(t, err)
	assert.False(t, rec.CoolingDown(time.Now()))
}

func TestQueryRunnerAuthFailureCircuitBreaks(t *testing.T) {
	server := chatTestServer(t)
	defer server.Close()

	sink := &recordingSink{}
	runner, directory := newTestRunner(t, server.URL, sink)

	record := freshRecord("deny-1")
	require.NoError(t, directory.Put(context.Background(), record))

	outcomes := runner.RunRound(context.Background(), "c1", models.RoundInitial,
		[]*models.AgentRecord{record}, "question", "prompt")

	require.NotNil(t, outcomes[0].Err)
	assert.Equal(t, errors.ErrCodeAgentAuthFailure, outcomes[0].Err.Code)

	rec, err := directory.Get(context.Background(), "deny-1")
	require.NoError(t, err)
	assert.True(t, rec.CoolingDown(time.Now()))
}

func TestQueryRunnerFinishedEventCarriesFailure(t *testing.T) {
	server := chatTestServer(t)
	defer server.Close()

	sink := &recordingSink{}
	runner, directory := newTestRunner(t, server.URL, sink)

	record := freshRecord("boom-1")
	require.NoError(t, directory.Put(context.Background(), record))

	runner.RunRound(context.Background(), "c1", models.RoundInitial,
		[]*models.AgentRecord{record}, "question", "prompt")

	finished := sink.ofType(events.TypeAgentQueryFinished)
	require.Len(t, finished, 1)
	assert.False(t, finished[0].OK)
	assert.Equal(t, "boom-1", finished[0].AgentID)
}

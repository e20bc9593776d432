// internal/agents/refresher_test.go
package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/store"
)

func refresherConfig(url string) RefresherConfig {
	return RefresherConfig{
		RefreshURL:    url,
		Grace:         60 * time.Second,
		LockTTL:       10 * time.Second,
		WaiterBackoff: 10 * time.Millisecond,
		Timeout:       2 * time.Second,
	}
}

func TestRefresher_FreshCredentialSkipsRefresh(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	s := store.NewMemoryStore()
	dir := NewDirectory(s)
	refresher := NewRefresher(refresherConfig(server.URL), dir, s, logger.NewNoOpLogger())

	record := testAgent("a1", "u1", time.Now().Add(time.Hour))
	got, err := refresher.EnsureFresh(context.Background(), record)

	require.NoError(t, err)
	assert.Equal(t, "token-a1", got.AccessToken)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRefresher_HolderRefreshesAndPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a1", req.AgentID)
		assert.Equal(t, "refresh-a1", req.RefreshToken)

		json.NewEncoder(w).Encode(refreshResponse{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			ExpiresIn:    3600,
		})
	}))
	defer server.Close()

	s := store.NewMemoryStore()
	dir := NewDirectory(s)
	refresher := NewRefresher(refresherConfig(server.URL), dir, s, logger.NewTestLogger(t))

	// Expiring within the grace window.
	record := testAgent("a1", "u1", time.Now().Add(30*time.Second))
	require.NoError(t, dir.Put(context.Background(), record))

	got, err := refresher.EnsureFresh(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "new-access", got.AccessToken)
	assert.Equal(t, "new-refresh", got.RefreshToken)
	assert.True(t, got.TokenExpiresAt.After(time.Now().Add(time.Hour-time.Minute)))

	// Persisted, not just returned.
	stored, err := dir.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "new-access", stored.AccessToken)

	// Lock released after the refresh.
	_, held, _ := s.Get(context.Background(), "lock:agent-refresh:a1")
	assert.False(t, held)
}

func TestRefresher_WaiterReadsRefreshedRecord(t *testing.T) {
	s := store.NewMemoryStore()
	dir := NewDirectory(s)
	refresher := NewRefresher(refresherConfig("http://unused.invalid"), dir, s, logger.NewNoOpLogger())

	ctx := context.Background()
	stale := testAgent("a1", "u1", time.Now().Add(10*time.Second))
	require.NoError(t, dir.Put(ctx, stale))

	// Another process holds the lock and lands a fresh credential while the
	// waiter backs off.
	_, err := s.SetIfAbsent(ctx, "lock:agent-refresh:a1", "other-holder", 10*time.Second)
	require.NoError(t, err)
	refreshed := testAgent("a1", "u1", time.Now().Add(time.Hour))
	refreshed.AccessToken = "holder-refreshed"
	require.NoError(t, dir.Put(ctx, refreshed))

	got, err := refresher.EnsureFresh(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, "holder-refreshed", got.AccessToken)
}

func TestRefresher_WaiterFailsWhenStillStale(t *testing.T) {
	s := store.NewMemoryStore()
	dir := NewDirectory(s)
	refresher := NewRefresher(refresherConfig("http://unused.invalid"), dir, s, logger.NewNoOpLogger())

	ctx := context.Background()
	stale := testAgent("a1", "u1", time.Now().Add(10*time.Second))
	require.NoError(t, dir.Put(ctx, stale))

	// Lock held elsewhere but the holder never lands a fresh credential.
	_, err := s.SetIfAbsent(ctx, "lock:agent-refresh:a1", "stuck-holder", 10*time.Second)
	require.NoError(t, err)

	_, err = refresher.EnsureFresh(ctx, stale)
	assert.Error(t, err)
}

func TestRefresher_EndpointFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "rejected status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "missing token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(refreshResponse{ExpiresIn: 3600})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			s := store.NewMemoryStore()
			dir := NewDirectory(s)
			refresher := NewRefresher(refresherConfig(server.URL), dir, s, logger.NewNoOpLogger())

			record := testAgent("a1", "u1", time.Now().Add(10*time.Second))
			require.NoError(t, dir.Put(context.Background(), record))

			_, err := refresher.EnsureFresh(context.Background(), record)
			assert.Error(t, err)
		})
	}
}

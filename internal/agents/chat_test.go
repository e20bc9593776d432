// internal/agents/chat_test.go
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatClientFor(url string) *ChatClient {
	return NewChatClient(ChatClientConfig{
		BaseURL: url,
		Timeout: 2 * time.Second,
	})
}

func TestChatClient_SingleJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/agents/a1/chat", r.URL.Path)
		assert.Equal(t, "Bearer token-a1", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "does acupuncture help migraines?", req.Message)
		assert.NotEmpty(t, req.SystemPrompt)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{
			Text:      "Six sessions of acupuncture noticeably reduced my migraines.",
			SessionID: "sess-1",
		})
	}))
	defer server.Close()

	record := testAgent("a1", "u1", time.Now().Add(time.Hour))
	result, latency, err := chatClientFor(server.URL).Ask(
		context.Background(), record, "does acupuncture help migraines?", "You are a health proxy.")

	require.NoError(t, err)
	assert.Equal(t, "Six sessions of acupuncture noticeably reduced my migraines.", result.Text)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.GreaterOrEqual(t, latency, int64(0))
	assert.Equal(t, latency, result.LatencyMs)
}

func TestChatClient_StreamedNDJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"delta":"Physical therapy "}`)
		fmt.Fprintln(w, `{"delta":"twice a week "}`)
		fmt.Fprintln(w, `{"delta":"helped my back pain."}`)
		fmt.Fprintln(w, `{"done":true,"sessionId":"sess-stream"}`)
	}))
	defer server.Close()

	record := testAgent("a1", "u1", time.Now().Add(time.Hour))
	result, _, err := chatClientFor(server.URL).Ask(context.Background(), record, "q", "sp")

	require.NoError(t, err)
	assert.Equal(t, "Physical therapy twice a week helped my back pain.", result.Text)
	assert.Equal(t, "sess-stream", result.SessionID)
}

func TestChatClient_StreamWithoutDoneMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"delta":"partial"}`)
	}))
	defer server.Close()

	record := testAgent("a1", "u1", time.Now().Add(time.Hour))
	_, _, err := chatClientFor(server.URL).Ask(context.Background(), record, "q", "sp")
	assert.Error(t, err)
}

func TestChatClient_Unauthorized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			record := testAgent("a1", "u1", time.Now().Add(time.Hour))
			_, latency, err := chatClientFor(server.URL).Ask(context.Background(), record, "q", "sp")

			assert.True(t, errors.Is(err, ErrUnauthorized))
			assert.GreaterOrEqual(t, latency, int64(0))
		})
	}
}

func TestChatClient_ServerErrorIsNotAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	record := testAgent("a1", "u1", time.Now().Add(time.Hour))
	_, _, err := chatClientFor(server.URL).Ask(context.Background(), record, "q", "sp")

	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestChatClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := NewChatClient(ChatClientConfig{
		BaseURL: server.URL,
		Timeout: 50 * time.Millisecond,
	})

	record := testAgent("a1", "u1", time.Now().Add(time.Hour))
	start := time.Now()
	_, latency, err := client.Ask(context.Background(), record, "q", "sp")

	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.GreaterOrEqual(t, latency, int64(0))
}

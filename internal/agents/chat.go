// internal/agents/chat.go
package agents

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

// ErrUnauthorized marks a chat call rejected for authorization reasons.
// The caller circuit-breaks the agent on this error.
var ErrUnauthorized = errors.New("agent chat unauthorized")

// ChatResult is one successful agent answer.
type ChatResult struct {
	Text      string
	SessionID string
	LatencyMs int64
}

// ChatClientConfig tunes the chat endpoint client.
type ChatClientConfig struct {
	BaseURL string
	// Timeout is the per-call deadline (default 30s for both rounds).
	Timeout time.Duration
}

// ChatClient performs one timed request to an agent's chat endpoint. The
// endpoint may answer a single JSON body or a streamed NDJSON delta
// sequence; the client reassembles deltas before returning.
type ChatClient struct {
	config ChatClientConfig
	// The context deadline governs the call; no client-level timeout so a
	// streamed response is not cut mid-read.
	client *http.Client
}

// NewChatClient creates a ChatClient for the configured endpoint.
func NewChatClient(config ChatClientConfig) *ChatClient {
	return &ChatClient{
		config: config,
		client: &http.Client{},
	}
}

type chatRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

type chatResponse struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
}

// streamLine is one NDJSON line: {delta} fragments terminated by a
// {done, sessionId} line.
type streamLine struct {
	Delta     string `json:"delta"`
	Done      bool   `json:"done"`
	SessionID string `json:"sessionId"`
}

// Ask sends the question with the round's system prompt to one agent and
// returns the reassembled answer. All outcomes, success or failure, carry
// elapsed latency.
func (c *ChatClient) Ask(ctx context.Context, record *models.AgentRecord, message, systemPrompt string) (*ChatResult, int64, error) {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, _ := json.Marshal(chatRequest{Message: message, SystemPrompt: systemPrompt})
	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/agents/" + record.AgentID + "/chat"

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, elapsed(), fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+record.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, elapsed(), fmt.Errorf("chat call to %s: %w", record.AgentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, elapsed(), fmt.Errorf("%w: agent %s status %d", ErrUnauthorized, record.AgentID, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, elapsed(), fmt.Errorf("chat call to %s failed with status %d: %s", record.AgentID, resp.StatusCode, string(raw))
	}

	var text, sessionID string
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/x-ndjson") {
		text, sessionID, err = readStream(resp.Body)
	} else {
		var parsed chatResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		text, sessionID = parsed.Text, parsed.SessionID
	}
	if err != nil {
		return nil, elapsed(), fmt.Errorf("read chat response from %s: %w", record.AgentID, err)
	}

	return &ChatResult{
		Text:      text,
		SessionID: sessionID,
		LatencyMs: elapsed(),
	}, elapsed(), nil
}

// readStream reassembles an NDJSON delta sequence into the full text.
func readStream(r io.Reader) (text, sessionID string, err error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var parsed streamLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			return "", "", fmt.Errorf("malformed stream line: %w", err)
		}
		if parsed.Done {
			return b.String(), parsed.SessionID, nil
		}
		b.WriteString(parsed.Delta)
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}
	return "", "", errors.New("stream ended without done marker")
}

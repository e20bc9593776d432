// internal/triage/client.go

// Package triage calls the intent-triage collaborator. Its classification
// only adjusts the system prompt flavor: any failure degrades to the default
// intent and never blocks orchestration.
package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
)

// Intent labels the engine understands. Anything else maps to IntentGeneral.
const (
	IntentGeneral   = "general"
	IntentSymptom   = "symptom"
	IntentTreatment = "treatment"
	IntentCost      = "cost"
)

// minConfidence below which a classification is treated as unusable.
const minConfidence = 0.5

// Client calls the triage endpoint.
type Client struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

// NewClient creates a triage client. An empty baseURL disables triage and
// every classification degrades to the default intent.
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

type classifyRequest struct {
	Question string `json:"question"`
}

type classifyResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Classify returns the intent for a question. It never returns an error:
// endpoint failure, low confidence, and unknown labels all degrade to
// IntentGeneral.
func (c *Client) Classify(ctx context.Context, question string) string {
	if c.baseURL == "" {
		return IntentGeneral
	}

	body, _ := json.Marshal(classifyRequest{Question: question})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/triage/classify", bytes.NewReader(body))
	if err != nil {
		return IntentGeneral
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.degrade("triage call failed", err.Error())
		return IntentGeneral
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.degrade("triage rejected", resp.Status)
		return IntentGeneral
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.degrade("triage response malformed", err.Error())
		return IntentGeneral
	}
	if parsed.Confidence < minConfidence {
		return IntentGeneral
	}

	switch parsed.Intent {
	case IntentSymptom, IntentTreatment, IntentCost:
		return parsed.Intent
	default:
		return IntentGeneral
	}
}

func (c *Client) degrade(msg, detail string) {
	if c.logger != nil {
		c.logger.Warn(msg, map[string]interface{}{"detail": detail})
	}
}

// internal/consultation/report/generative.go
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/errors"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/metrics"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

// summarizerSchema constrains what the generative endpoint may return. Only
// the list sections are replaceable; disclaimer, excerpts, cost range and
// counts stay rule-based no matter what the model says.
const summarizerSchema = `{
  "type": "object",
  "properties": {
    "consensusPoints": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {"type": "string", "minLength": 1},
          "agentCount": {"type": "integer", "minimum": 2},
          "totalAgents": {"type": "integer", "minimum": 2}
        },
        "required": ["text", "agentCount", "totalAgents"]
      },
      "maxItems": 5
    },
    "divergences": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "positive": {"type": "string", "minLength": 1},
          "negative": {"type": "string", "minLength": 1},
          "ratio": {"type": "number", "minimum": 0, "maximum": 1}
        },
        "required": ["positive", "negative", "ratio"]
      },
      "maxItems": 3
    },
    "preparation": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "maxItems": 5
    },
    "doctorReferrals": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "maxItems": 5
    }
  },
  "additionalProperties": false
}`

// Summarizer optionally refines a rule-based summary through a generative
// endpoint. Any failure, timeout or schema violation falls back to the
// rule-based summary unchanged.
type Summarizer struct {
	endpoint string
	client   *http.Client
	schema   *gojsonschema.Schema
	log      logger.Logger
}

// NewSummarizer builds a Summarizer. An empty endpoint disables refinement;
// Refine then returns its input untouched.
func NewSummarizer(endpoint string, timeout time.Duration, log logger.Logger) (*Summarizer, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(summarizerSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling summarizer schema: %w", err)
	}
	return &Summarizer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		schema:   schema,
		log:      log,
	}, nil
}

type summarizeRequest struct {
	Question string                `json:"question"`
	Draft    *models.ReportSummary `json:"draft"`
}

// generativeOverlay is the subset of the report the endpoint may rewrite.
type generativeOverlay struct {
	ConsensusPoints []models.ConsensusPoint `json:"consensusPoints"`
	Divergences     []models.DivergencePair `json:"divergences"`
	Preparation     []string                `json:"preparation"`
	DoctorReferrals []string                `json:"doctorReferrals"`
}

// Refine sends the rule-based draft for rewriting and merges the validated
// overlay back in. The returned summary is always usable; errors only
// surface through the fallback counter and logs.
func (s *Summarizer) Refine(ctx context.Context, question string, draft *models.ReportSummary) *models.ReportSummary {
	if s.endpoint == "" {
		return draft
	}

	overlay, err := s.fetch(ctx, question, draft)
	if err != nil {
		metrics.SummarizerFallbacks.Inc()
		s.log.WithError(errors.NewSummarizerFallbackError(err)).Warn("generative summarizer unavailable, keeping rule-based summary", map[string]interface{}{})
		return draft
	}

	refined := *draft
	if overlay.ConsensusPoints != nil {
		refined.ConsensusPoints = overlay.ConsensusPoints
	}
	if overlay.Divergences != nil {
		refined.Divergences = overlay.Divergences
	}
	if overlay.Preparation != nil {
		refined.Preparation = overlay.Preparation
	}
	if overlay.DoctorReferrals != nil {
		refined.DoctorReferrals = overlay.DoctorReferrals
	}
	return &refined
}

func (s *Summarizer) fetch(ctx context.Context, question string, draft *models.ReportSummary) (*generativeOverlay, error) {
	body, err := json.Marshal(summarizeRequest{Question: question, Draft: draft})
	if err != nil {
		return nil, fmt.Errorf("encoding summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building summarize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling summarizer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("summarizer returned status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding summarizer response: %w", err)
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validating summarizer response: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("summarizer response failed schema validation: %v", result.Errors())
	}

	var overlay generativeOverlay
	if err := json.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("decoding summarizer overlay: %w", err)
	}
	return &overlay, nil
}

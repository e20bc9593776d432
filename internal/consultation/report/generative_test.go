// internal/consultation/report/generative_test.go
package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

func ruleBasedDraft() *models.ReportSummary {
	return &models.ReportSummary{
		ConsensusPoints: []models.ConsensusPoint{
			{Text: "rest helped", AgentCount: 2, TotalAgents: 3},
		},
		Preparation:       []string{"bring your scans"},
		Disclaimer:        Disclaimer,
		NoExperienceCount: 1,
	}
}

func TestSummarizerRefineReplacesListSections(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"consensusPoints": [{"text": "most agents found rest effective", "agentCount": 2, "totalAgents": 3}],
			"preparation": ["bring prior scan results", "fast for eight hours"]
		}`))
	}))
	defer server.Close()

	summarizer, err := NewSummarizer(server.URL, time.Second, logger.NewTestLogger(t))
	require.NoError(t, err)

	refined := summarizer.Refine(context.Background(), "knee pain", ruleBasedDraft())

	require.Len(t, refined.ConsensusPoints, 1)
	assert.Equal(t, "most agents found rest effective", refined.ConsensusPoints[0].Text)
	assert.Equal(t, []string{"bring prior scan results", "fast for eight hours"}, refined.Preparation)
	// Sections the endpoint did not return stay rule-based.
	assert.Equal(t, Disclaimer, refined.Disclaimer)
	assert.Equal(t, 1, refined.NoExperienceCount)
}

func TestSummarizerRefineFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "schema violation",
			handler: func(w http.ResponseWriter, r *http.Request) {
				// agentCount below the minimum of 2.
				w.Write([]byte(`{"consensusPoints": [{"text": "x", "agentCount": 1, "totalAgents": 3}]}`))
			},
		},
		{
			name: "unknown field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"disclaimer": "my own disclaimer"}`))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json at all`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			summarizer, err := NewSummarizer(server.URL, time.Second, logger.NewTestLogger(t))
			require.NoError(t, err)

			draft := ruleBasedDraft()
			refined := summarizer.Refine(context.Background(), "knee pain", draft)

			assert.Equal(t, draft, refined)
		})
	}
}

func TestSummarizerDisabledWithoutEndpoint(t *testing.T) {
	summarizer, err := NewSummarizer("", time.Second, logger.NewNoOpLogger())
	require.NoError(t, err)

	draft := ruleBasedDraft()
	assert.Same(t, draft, summarizer.Refine(context.Background(), "q", draft))
}

func TestSummarizerTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	summarizer, err := NewSummarizer(server.URL, 20*time.Millisecond, logger.NewTestLogger(t))
	require.NoError(t, err)

	draft := ruleBasedDraft()
	assert.Equal(t, draft, summarizer.Refine(context.Background(), "q", draft))
}

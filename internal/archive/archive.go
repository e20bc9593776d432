// internal/archive/archive.go

// Package archive copies finished consultations into durable long-term
// storage: relational rows in Postgres and the synthesized report in
// Elasticsearch for search. Archiving is best-effort and never changes a
// consultation's outcome.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/database"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/errors"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

const upsertConsultationSQL = `
INSERT INTO consultations (id, asker_id, question, status, total_agents_queried, triage_intent, summary, created_at, archived_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    total_agents_queried = EXCLUDED.total_agents_queried,
    summary = EXCLUDED.summary,
    archived_at = EXCLUDED.archived_at`

const insertResponseSQL = `
INSERT INTO agent_responses (id, consultation_id, agent_id, round, session_id, text, valid, invalid_reason, no_experience, latency_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (consultation_id, round, agent_id) DO NOTHING`

// Archiver writes terminal consultations to the configured backends. Either
// backend may be nil when not configured.
type Archiver struct {
	pg     *database.PostgresClient
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

// NewArchiver creates an Archiver. index names the Elasticsearch index for
// report documents.
func NewArchiver(pg *database.PostgresClient, es *database.ElasticsearchClient, index string, log logger.Logger) *Archiver {
	return &Archiver{pg: pg, es: es, index: index, logger: log}
}

// Archive copies one terminal consultation and its responses to every
// configured backend. Failures are logged and swallowed; the consultation's
// status never depends on archival.
func (a *Archiver) Archive(ctx context.Context, c *models.Consultation, responses []*models.AgentResponse) {
	if a.pg != nil {
		if err := a.archiveRows(ctx, c, responses); err != nil {
			a.logger.WithError(errors.NewArchiveWriteFailedError("postgres", err)).Error(
				"consultation row archive failed", map[string]interface{}{"consultationId": c.ID})
		}
	}
	if a.es != nil && c.Summary != nil {
		if err := a.indexReport(ctx, c); err != nil {
			a.logger.WithError(errors.NewArchiveWriteFailedError("elasticsearch", err)).Error(
				"report index failed", map[string]interface{}{"consultationId": c.ID})
		}
	}
}

func (a *Archiver) archiveRows(ctx context.Context, c *models.Consultation, responses []*models.AgentResponse) error {
	var summary sql.NullString
	if c.Summary != nil {
		raw, err := json.Marshal(c.Summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		summary = sql.NullString{String: string(raw), Valid: true}
	}

	if _, err := a.pg.Exec(ctx, upsertConsultationSQL,
		c.ID, c.AskerID, c.Question, string(c.Status), c.TotalAgentsQueried,
		c.TriageIntent, summary, c.CreatedAt, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert consultation %s: %w", c.ID, err)
	}

	for _, resp := range responses {
		if _, err := a.pg.Exec(ctx, insertResponseSQL,
			resp.ID, resp.ConsultationID, resp.AgentID, string(resp.Round),
			resp.SessionID, resp.Text, resp.Valid, resp.InvalidReason,
			resp.NoExperience, resp.LatencyMs, resp.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert response %s/%s: %w", resp.ConsultationID, resp.AgentID, err)
		}
	}
	return nil
}

// reportDocument is the searchable view of one finished consultation.
type reportDocument struct {
	ConsultationID string                    `json:"consultationId"`
	Question       string                    `json:"question"`
	Status         models.ConsultationStatus `json:"status"`
	TriageIntent   string                    `json:"triageIntent,omitempty"`
	Summary        *models.ReportSummary     `json:"summary"`
	ArchivedAt     time.Time                 `json:"archivedAt"`
}

func (a *Archiver) indexReport(ctx context.Context, c *models.Consultation) error {
	doc, err := json.Marshal(reportDocument{
		ConsultationID: c.ID,
		Question:       c.Question,
		Status:         c.Status,
		TriageIntent:   c.TriageIntent,
		Summary:        c.Summary,
		ArchivedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal report document: %w", err)
	}

	client := a.es.Client
	res, err := client.Index(a.index, strings.NewReader(string(doc)),
		client.Index.WithDocumentID(c.ID),
		client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index report %s: %w", c.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index report %s: %s", c.ID, res.Status())
	}
	return nil
}

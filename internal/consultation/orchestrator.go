// internal/consultation/orchestrator.go

// Package consultation runs the full lifecycle of one question: agent
// selection, parallel querying, validation, the optional reaction round,
// report synthesis, and the terminal status decision.
package consultation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Joe-rq/MedCrowd-sub000/internal/agents"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/errors"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/metrics"
	"github.com/Joe-rq/MedCrowd-sub000/internal/consultation/events"
	"github.com/Joe-rq/MedCrowd-sub000/internal/consultation/report"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/triage"
)

// doneThreshold is the minimum count of substantive answers for a fully
// successful consultation.
const doneThreshold = 3

// Config tunes one orchestrator instance.
type Config struct {
	// FanOutCap bounds how many agents one consultation queries.
	FanOutCap int
	// RoundTimeout bounds each query round. The reaction round reuses the
	// same deadline as the initial round.
	RoundTimeout time.Duration
	// ReactionEnabled switches the second round on.
	ReactionEnabled bool
}

// Orchestrator drives consultations end to end. It owns every status
// transition; nothing else writes the consultation row.
type Orchestrator struct {
	config     Config
	directory  *agents.Directory
	runner     *QueryRunner
	validator  *Validator
	responses  *ResponseStore
	builder    *report.Builder
	summarizer *report.Summarizer
	triage     *triage.Client
	publisher  *events.Publisher
	logger     logger.Logger
}

// NewOrchestrator wires the consultation pipeline. summarizer and triage
// may be nil when those endpoints are not configured.
func NewOrchestrator(
	config Config,
	directory *agents.Directory,
	runner *QueryRunner,
	validator *Validator,
	responses *ResponseStore,
	builder *report.Builder,
	summarizer *report.Summarizer,
	triageClient *triage.Client,
	publisher *events.Publisher,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:     config,
		directory:  directory,
		runner:     runner,
		validator:  validator,
		responses:  responses,
		builder:    builder,
		summarizer: summarizer,
		triage:     triageClient,
		publisher:  publisher,
		logger:     log,
	}
}

// Result is the outcome of one consultation run: the terminal consultation
// row with its attached summary, plus every persisted response row.
type Result struct {
	Consultation *models.Consultation
	Responses    []*models.AgentResponse
}

// RunConsultation executes one consultation to a terminal status. The
// returned error is non-nil only when the consultation could not produce a
// usable outcome: invalid input, or no eligible agents. Partial failures
// degrade the status instead of erroring.
func (o *Orchestrator) RunConsultation(ctx context.Context, askerID, question string) (*Result, error) {
	askerID = strings.TrimSpace(askerID)
	question = strings.TrimSpace(question)
	if askerID == "" {
		return nil, errors.NewInvalidConsultationInputError("askerId is required")
	}
	if question == "" {
		return nil, errors.NewInvalidConsultationInputError("question is required")
	}

	c := &models.Consultation{
		ID:        uuid.NewString(),
		AskerID:   askerID,
		Question:  question,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	metrics.ConsultationsStarted.Inc()
	o.publisher.Emit(ctx, events.ConsultationStarted(c.ID))

	if o.triage != nil {
		c.TriageIntent = o.triage.Classify(ctx, question)
	} else {
		c.TriageIntent = triage.IntentGeneral
	}
	o.saveConsultation(ctx, c)

	log := o.logger.WithFields(map[string]interface{}{
		"consultationId": c.ID,
		"askerId":        askerID,
	})

	selected, err := o.directory.SelectEligible(ctx, askerID, time.Now(), o.config.FanOutCap)
	if err != nil {
		o.finalize(ctx, c, models.StatusFailed, nil, 0)
		return &Result{Consultation: c}, errors.NewPersistenceWriteFailedError("agent selection", err)
	}
	if len(selected) == 0 {
		log.Warn("no eligible agents", map[string]interface{}{})
		o.finalize(ctx, c, models.StatusFailed, nil, 0)
		return &Result{Consultation: c}, errors.NewNoEligibleAgentsError(askerID)
	}

	c.Status = models.StatusConsulting
	c.TotalAgentsQueried = len(selected)
	o.saveConsultation(ctx, c)
	log.Info("consultation started", map[string]interface{}{
		"agents": len(selected),
		"intent": c.TriageIntent,
	})

	writeFailures := 0

	initialRows := o.runRound(ctx, c, models.RoundInitial, selected, question,
		systemPrompt(c.TriageIntent), nil, &writeFailures)

	allRows := append([]*models.AgentResponse{}, initialRows...)

	if shouldReact(o.config.ReactionEnabled, initialRows) {
		metrics.ReactionRounds.Inc()
		o.publisher.Emit(ctx, events.ReactionStarted(c.ID))

		var acceptedRows []*models.AgentResponse
		accepted := make([]string, 0, len(initialRows))
		for _, row := range initialRows {
			if row.Valid {
				acceptedRows = append(acceptedRows, row)
				accepted = append(accepted, row.Text)
			}
		}

		participants := reactionParticipants(selected, initialRows)
		reactionRows := o.runRound(ctx, c, models.RoundReaction, participants, question,
			reactionPrompt(question, acceptedRows), accepted, &writeFailures)
		allRows = append(allRows, reactionRows...)

		o.publisher.Emit(ctx, events.ReactionFinished(c.ID))
	}

	// Prefer the persisted view so retries and concurrent writers converge
	// on the same response set. Falling back to the in-memory rows counts
	// as a persistence inconsistency.
	responses, err := o.responses.List(ctx, c.ID)
	if err != nil {
		log.WithError(err).Error("listing persisted responses failed", map[string]interface{}{})
		responses = allRows
		writeFailures++
	} else if len(responses) < len(allRows) {
		// Some rows failed to persist; decide over the full in-memory set so
		// agents that did answer are not silently dropped.
		responses = allRows
	}

	status := decideStatus(responses, writeFailures)
	o.finalize(ctx, c, status, responses, writeFailures)

	return &Result{Consultation: c, Responses: responses}, nil
}

// runRound executes one query round, validates its outcomes in selection
// order, and persists the resulting rows.
func (o *Orchestrator) runRound(
	ctx context.Context,
	c *models.Consultation,
	round models.Round,
	records []*models.AgentRecord,
	question, prompt string,
	accepted []string,
	writeFailures *int,
) []*models.AgentResponse {
	roundCtx, cancel := context.WithTimeout(ctx, o.config.RoundTimeout)
	defer cancel()

	outcomes := o.runner.RunRound(roundCtx, c.ID, round, records, question, prompt)

	accepted = append([]string{}, accepted...)
	rows := make([]*models.AgentResponse, 0, len(outcomes))
	valid, invalid, noExperience := 0, 0, 0

	for _, outcome := range outcomes {
		var verdict Classification
		if outcome.Err == nil {
			verdict = o.validator.Classify(outcome.Result.Text, accepted)
		}
		row := outcomeToResponse(c.ID, round, outcome, verdict)
		rows = append(rows, row)

		switch {
		case row.Valid && row.NoExperience:
			noExperience++
			valid++
			metrics.ValidationOutcomes.WithLabelValues("no_experience").Inc()
		case row.Valid:
			valid++
			accepted = append(accepted, row.Text)
			metrics.ValidationOutcomes.WithLabelValues("valid").Inc()
		default:
			invalid++
			metrics.ValidationOutcomes.WithLabelValues("invalid").Inc()
		}
	}

	o.publisher.Emit(ctx, events.ValidationSummary(c.ID, round, valid, invalid, noExperience))

	for _, wr := range o.responses.PutBatch(ctx, rows) {
		if wr.Err != nil {
			*writeFailures++
			metrics.StoreWriteErrors.Inc()
		}
	}
	return rows
}

// decideStatus applies the terminal decision table over the full response
// set.
func decideStatus(responses []*models.AgentResponse, writeFailures int) models.ConsultationStatus {
	// Substance counts distinct agents so a reaction round never inflates
	// the threshold.
	substantiveAgents := make(map[string]struct{})
	valid := 0
	for _, resp := range responses {
		if !resp.Valid {
			continue
		}
		valid++
		if !resp.NoExperience {
			substantiveAgents[resp.AgentID] = struct{}{}
		}
	}

	// A write failure means the persisted set may not account for every
	// queried agent, so even a round with zero accepted answers ends
	// PARTIAL rather than FAILED.
	switch {
	case valid == 0 && writeFailures == 0:
		return models.StatusFailed
	case len(substantiveAgents) >= doneThreshold && writeFailures == 0:
		return models.StatusDone
	default:
		return models.StatusPartial
	}
}

// anyValid reports whether at least one response survived validation.
func anyValid(responses []*models.AgentResponse) bool {
	for _, resp := range responses {
		if resp.Valid {
			return true
		}
	}
	return false
}

// finalize attaches the summary when one is warranted, transitions to the
// terminal status, and emits completion signals.
func (o *Orchestrator) finalize(ctx context.Context, c *models.Consultation, status models.ConsultationStatus, responses []*models.AgentResponse, writeFailures int) {
	if status != models.StatusFailed && anyValid(responses) {
		summary := o.builder.Build(responses)
		if o.summarizer != nil {
			summary = o.summarizer.Refine(ctx, c.Question, summary)
		}
		c.Summary = summary
		o.publisher.Emit(ctx, events.SummaryReady(c.ID))
	}

	if !models.ValidTransition(c.Status, status) {
		o.logger.Error("invalid status transition", map[string]interface{}{
			"consultationId": c.ID,
			"from":           string(c.Status),
			"to":             string(status),
		})
	}
	c.Status = status
	o.saveConsultation(ctx, c)

	o.publisher.Emit(ctx, events.ConsultationDone(c.ID, status))
	metrics.ConsultationsCompleted.WithLabelValues(string(status)).Inc()
	o.logger.Info("consultation finished", map[string]interface{}{
		"consultationId": c.ID,
		"status":         string(status),
		"writeFailures":  writeFailures,
	})
}

// saveConsultation persists the row, logging instead of failing: losing a
// status checkpoint must not abort a consultation in flight.
func (o *Orchestrator) saveConsultation(ctx context.Context, c *models.Consultation) {
	if err := o.responses.SaveConsultation(ctx, c); err != nil {
		metrics.StoreWriteErrors.Inc()
		o.logger.WithError(err).Error("consultation write failed", map[string]interface{}{
			"consultationId": c.ID,
			"status":         string(c.Status),
		})
	}
}

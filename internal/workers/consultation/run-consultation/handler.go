// internal/workers/consultation/run-consultation/handler.go
package runconsultation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/errors"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/metrics"
	"github.com/Joe-rq/MedCrowd-sub000/internal/consultation"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/notify"
)

const (
	TaskType = "run-consultation"
)

// ConsultationRunner is the orchestration surface, extracted for mocking.
type ConsultationRunner interface {
	RunConsultation(ctx context.Context, askerID, question string) (*consultation.Result, error)
}

// Archiver copies terminal consultations to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, c *models.Consultation, responses []*models.AgentResponse)
}

// Notifier tells the asker about the terminal status.
type Notifier interface {
	NotifyDone(ctx context.Context, contact notify.Contact, c *models.Consultation)
}

type Handler struct {
	config       *Config
	runner       ConsultationRunner
	archiver     Archiver
	notifier     Notifier
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler wires the worker. archiver and notifier may be nil when those
// subsystems are not configured.
func NewHandler(config *Config, runner ConsultationRunner, archiver Archiver, notifier Notifier, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		runner:       runner,
		archiver:     archiver,
		notifier:     notifier,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job,
			errors.NewInvalidConsultationInputError(fmt.Sprintf("parse input: %v", err)))
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeInvalidConsultationInput)).Inc()
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		code := "INTERNAL_ERROR"
		if stdErr, ok := err.(*errors.StandardError); ok {
			code = string(stdErr.Code)
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.runner.RunConsultation(ctx, input.AskerID, input.Question)
	if err != nil {
		return nil, err
	}

	c := result.Consultation
	if h.archiver != nil {
		h.archiver.Archive(ctx, c, result.Responses)
	}
	if h.notifier != nil {
		h.notifier.NotifyDone(ctx, notify.Contact{Email: input.AskerEmail, Phone: input.AskerPhone}, c)
	}

	valid, noExperience := 0, 0
	for _, resp := range result.Responses {
		if resp.Valid {
			valid++
		}
		if resp.Valid && resp.NoExperience {
			noExperience++
		}
	}

	return &Output{
		ConsultationID:    c.ID,
		Status:            string(c.Status),
		AgentsQueried:     c.TotalAgentsQueried,
		ValidResponses:    valid,
		NoExperienceCount: noExperience,
		Summary:           c.Summary,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

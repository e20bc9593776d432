// internal/workers/consultation/run-consultation/handler_test.go
package runconsultation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/errors"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/consultation"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/notify"
)

type mockRunner struct {
	result *consultation.Result
	err    error

	askerID  string
	question string
}

func (m *mockRunner) RunConsultation(_ context.Context, askerID, question string) (*consultation.Result, error) {
	m.askerID = askerID
	m.question = question
	return m.result, m.err
}

type mockArchiver struct {
	archived *models.Consultation
}

func (m *mockArchiver) Archive(_ context.Context, c *models.Consultation, _ []*models.AgentResponse) {
	m.archived = c
}

type mockNotifier struct {
	contact  notify.Contact
	notified *models.Consultation
}

func (m *mockNotifier) NotifyDone(_ context.Context, contact notify.Contact, c *models.Consultation) {
	m.contact = contact
	m.notified = c
}

func doneResult() *consultation.Result {
	return &consultation.Result{
		Consultation: &models.Consultation{
			ID:                 "c1",
			AskerID:            "asker-1",
			Status:             models.StatusDone,
			TotalAgentsQueried: 4,
			Summary:            &models.ReportSummary{NoExperienceCount: 1},
		},
		Responses: []*models.AgentResponse{
			{AgentID: "agent-1", Valid: true},
			{AgentID: "agent-2", Valid: true},
			{AgentID: "agent-3", Valid: true, NoExperience: true},
			{AgentID: "agent-4"},
		},
	}
}

func TestExecuteBuildsOutput(t *testing.T) {
	runner := &mockRunner{result: doneResult()}
	archiver := &mockArchiver{}
	notifier := &mockNotifier{}
	h := NewHandler(LoadConfig(), runner, archiver, notifier, logger.NewTestLogger(t))

	output, err := h.execute(context.Background(), &Input{
		AskerID:    "asker-1",
		Question:   "anyone dealt with migraines?",
		AskerEmail: "asker@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "asker-1", runner.askerID)
	assert.Equal(t, "anyone dealt with migraines?", runner.question)

	assert.Equal(t, "c1", output.ConsultationID)
	assert.Equal(t, "DONE", output.Status)
	assert.Equal(t, 4, output.AgentsQueried)
	assert.Equal(t, 3, output.ValidResponses)
	assert.Equal(t, 1, output.NoExperienceCount)
	require.NotNil(t, output.Summary)

	require.NotNil(t, archiver.archived)
	assert.Equal(t, "c1", archiver.archived.ID)
	require.NotNil(t, notifier.notified)
	assert.Equal(t, "asker@example.com", notifier.contact.Email)
}

func TestExecutePropagatesOrchestrationError(t *testing.T) {
	runner := &mockRunner{err: errors.NewNoEligibleAgentsError("asker-1")}
	h := NewHandler(LoadConfig(), runner, nil, nil, logger.NewTestLogger(t))

	output, err := h.execute(context.Background(), &Input{AskerID: "asker-1", Question: "q"})
	require.Error(t, err)
	assert.Nil(t, output)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeNoEligibleAgents, stdErr.Code)
}

func TestExecuteWithoutOptionalSubsystems(t *testing.T) {
	runner := &mockRunner{result: doneResult()}
	h := NewHandler(LoadConfig(), runner, nil, nil, logger.NewTestLogger(t))

	output, err := h.execute(context.Background(), &Input{AskerID: "asker-1", Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "c1", output.ConsultationID)
}

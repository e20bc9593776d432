// internal/consultation/events/events.go

// Package events defines the closed set of progress events a consultation
// emits and the sinks that deliver them. Delivery is fire-and-forget:
// publishing never blocks or fails orchestration, and consumers must
// tolerate loss.
package events

import (
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

// Type discriminates the event variants.
type Type string

const (
	TypeConsultationStarted Type = "consultation_started"
	TypeAgentQueryStarted   Type = "agent_query_started"
	TypeAgentQueryFinished  Type = "agent_query_finished"
	TypeValidationSummary   Type = "validation_summary"
	TypeReactionStarted     Type = "reaction_started"
	TypeReactionFinished    Type = "reaction_finished"
	TypeSummaryReady        Type = "summary_ready"
	TypeConsultationDone    Type = "consultation_done"
)

// Event is one typed progress notification for a consultation. Only the
// fields relevant to the variant are populated.
type Event struct {
	Type           Type         `json:"type"`
	ConsultationID string       `json:"consultationId"`
	Timestamp      time.Time    `json:"timestamp"`
	AgentID        string       `json:"agentId,omitempty"`
	Round          models.Round `json:"round,omitempty"`
	OK             bool         `json:"ok,omitempty"`
	LatencyMs      int64        `json:"latencyMs,omitempty"`

	// ValidationSummary counts.
	ValidCount        int `json:"validCount,omitempty"`
	InvalidCount      int `json:"invalidCount,omitempty"`
	NoExperienceCount int `json:"noExperienceCount,omitempty"`

	// ConsultationDone terminal status.
	Status models.ConsultationStatus `json:"status,omitempty"`
}

func newEvent(typ Type, consultationID string) Event {
	return Event{
		Type:           typ,
		ConsultationID: consultationID,
		Timestamp:      time.Now().UTC(),
	}
}

// ConsultationStarted marks the creation of a consultation.
func ConsultationStarted(consultationID string) Event {
	return newEvent(TypeConsultationStarted, consultationID)
}

// AgentQueryStarted marks one agent call beginning in a round.
func AgentQueryStarted(consultationID, agentID string, round models.Round) Event {
	e := newEvent(TypeAgentQueryStarted, consultationID)
	e.AgentID = agentID
	e.Round = round
	return e
}

// AgentQueryFinished marks one agent call completing, successfully or not.
func AgentQueryFinished(consultationID, agentID string, round models.Round, ok bool, latencyMs int64) Event {
	e := newEvent(TypeAgentQueryFinished, consultationID)
	e.AgentID = agentID
	e.Round = round
	e.OK = ok
	e.LatencyMs = latencyMs
	return e
}

// ValidationSummary reports per-round validation counts.
func ValidationSummary(consultationID string, round models.Round, valid, invalid, noExperience int) Event {
	e := newEvent(TypeValidationSummary, consultationID)
	e.Round = round
	e.ValidCount = valid
	e.InvalidCount = invalid
	e.NoExperienceCount = noExperience
	return e
}

// ReactionStarted marks the reaction round beginning.
func ReactionStarted(consultationID string) Event {
	return newEvent(TypeReactionStarted, consultationID)
}

// ReactionFinished marks the reaction round completing.
func ReactionFinished(consultationID string) Event {
	return newEvent(TypeReactionFinished, consultationID)
}

// SummaryReady marks the synthesized report being attached.
func SummaryReady(consultationID string) Event {
	return newEvent(TypeSummaryReady, consultationID)
}

// ConsultationDone marks the terminal status decision.
func ConsultationDone(consultationID string, status models.ConsultationStatus) Event {
	e := newEvent(TypeConsultationDone, consultationID)
	e.Status = status
	return e
}

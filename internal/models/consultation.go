// internal/models/consultation.go
package models

import "time"

// ConsultationStatus is the lifecycle state of a consultation.
type ConsultationStatus string

const (
	StatusPending    ConsultationStatus = "PENDING"
	StatusConsulting ConsultationStatus = "CONSULTING"
	StatusDone       ConsultationStatus = "DONE"
	StatusPartial    ConsultationStatus = "PARTIAL"
	StatusFailed     ConsultationStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s ConsultationStatus) Terminal() bool {
	return s == StatusDone || s == StatusPartial || s == StatusFailed
}

var allowedTransitions = map[ConsultationStatus]map[ConsultationStatus]struct{}{
	StatusPending: {
		StatusConsulting: {},
		StatusFailed:     {},
	},
	StatusConsulting: {
		StatusDone:    {},
		StatusPartial: {},
		StatusFailed:  {},
	},
}

// ValidTransition reports whether a consultation may move from one status
// to another.
func ValidTransition(from, to ConsultationStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Round tags which wave of the consultation a response belongs to.
type Round string

const (
	RoundInitial  Round = "initial"
	RoundReaction Round = "reaction"
)

// Consultation is one question-and-answer session across multiple agents.
// Mutated only by the orchestrator; immutable once terminal except for
// summary attachment.
type Consultation struct {
	ID                 string             `json:"id"`
	AskerID            string             `json:"askerId"`
	Question           string             `json:"question"`
	Status             ConsultationStatus `json:"status"`
	TotalAgentsQueried int                `json:"totalAgentsQueried"`
	TriageIntent       string             `json:"triageIntent,omitempty"`
	Summary            *ReportSummary     `json:"summary,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// AgentResponse is one agent's answer in one round. Exactly one row exists
// per (consultationId, round, agentId); failed calls are stored as invalid
// rows so every queried agent is accounted for.
type AgentResponse struct {
	ID             string    `json:"id"`
	ConsultationID string    `json:"consultationId"`
	AgentID        string    `json:"agentId"`
	Round          Round     `json:"round"`
	SessionID      string    `json:"sessionId,omitempty"`
	Text           string    `json:"text"`
	Valid          bool      `json:"valid"`
	InvalidReason  string    `json:"invalidReason,omitempty"`
	NoExperience   bool      `json:"noExperience,omitempty"`
	LatencyMs      int64     `json:"latencyMs"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Substantive reports whether the response counts toward the consensus
// threshold: valid and not a no-experience answer.
func (r *AgentResponse) Substantive() bool {
	return r.Valid && !r.NoExperience
}

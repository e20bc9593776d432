// internal/consultation/reaction.go
package consultation

import (
	"time"

	"github.com/google/uuid"

	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

// shouldReact gates the reaction round: it needs something to react to, so
// at least two valid initial answers of which at least one is substantive.
func shouldReact(enabled bool, initial []*models.AgentResponse) bool {
	if !enabled {
		return false
	}
	valid, substantive := 0, 0
	for _, resp := range initial {
		if !resp.Valid {
			continue
		}
		valid++
		if !resp.NoExperience {
			substantive++
		}
	}
	return valid >= 2 && substantive >= 1
}

// reactionParticipants picks the agents whose initial answer was accepted.
// Agents that failed or were filtered out sit the second round out.
func reactionParticipants(selected []*models.AgentRecord, initial []*models.AgentResponse) []*models.AgentRecord {
	accepted := make(map[string]struct{})
	for _, resp := range initial {
		if resp.Valid {
			accepted[resp.AgentID] = struct{}{}
		}
	}

	var participants []*models.AgentRecord
	for _, record := range selected {
		if _, ok := accepted[record.AgentID]; ok {
			participants = append(participants, record)
		}
	}
	return participants
}

// outcomeToResponse turns one raw query outcome into its persisted row.
// Failed calls become invalid rows so every queried agent is accounted for.
func outcomeToResponse(consultationID string, round models.Round, outcome QueryOutcome, verdict Classification) *models.AgentResponse {
	resp := &models.AgentResponse{
		ID:             uuid.NewString(),
		ConsultationID: consultationID,
		AgentID:        outcome.Agent.AgentID,
		Round:          round,
		LatencyMs:      outcome.LatencyMs,
		CreatedAt:      time.Now().UTC(),
	}
	if outcome.Err != nil {
		resp.InvalidReason = string(outcome.Err.Code)
		return resp
	}

	resp.Text = outcome.Result.Text
	resp.SessionID = outcome.Result.SessionID
	resp.Valid = verdict.Valid
	resp.NoExperience = verdict.NoExperience
	if !verdict.Valid {
		resp.InvalidReason = string(verdict.Reason)
	}
	return resp
}

// internal/workers/consultation/run-consultation/models.go
package runconsultation

import "github.com/Joe-rq/MedCrowd-sub000/internal/models"

type Input struct {
	AskerID  string `json:"askerId"`
	Question string `json:"question"`
	// Optional contact details for the terminal-status notification.
	AskerEmail string `json:"askerEmail,omitempty"`
	AskerPhone string `json:"askerPhone,omitempty"`
}

type Output struct {
	ConsultationID    string                `json:"consultationId"`
	Status            string                `json:"consultationStatus"`
	AgentsQueried     int                   `json:"agentsQueried"`
	ValidResponses    int                   `json:"validResponses"`
	NoExperienceCount int                   `json:"noExperienceCount"`
	Summary           *models.ReportSummary `json:"summary,omitempty"`
}

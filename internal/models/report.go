// internal/models/report.go
package models

// ConsensusPoint is one statement supported by two or more distinct agents.
type ConsensusPoint struct {
	Text        string `json:"text"`
	AgentCount  int    `json:"agentCount"`
	TotalAgents int    `json:"totalAgents"`
}

// DivergencePair holds two opposing statements found across responses.
// Ratio is the share of matched responses on the positive side.
type DivergencePair struct {
	Positive string  `json:"positive"`
	Negative string  `json:"negative"`
	Ratio    float64 `json:"ratio"`
}

// CostRange is the aggregated span of currency mentions across responses.
type CostRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ResponseExcerpt is a truncated, de-identified view of one response.
// Token is the opaque responder label used in place of the agent identity.
type ResponseExcerpt struct {
	Token        string `json:"token"`
	Round        Round  `json:"round"`
	Excerpt      string `json:"excerpt"`
	NoExperience bool   `json:"noExperience,omitempty"`
}

// ReportSummary is the synthesized view of one consultation's accepted
// responses. Rebuilt in full when the consultation finalizes, never
// partially written.
type ReportSummary struct {
	ConsensusPoints    []ConsensusPoint  `json:"consensusPoints"`
	Divergences        []DivergencePair  `json:"divergences"`
	Preparation        []string          `json:"preparation"`
	DoctorReferrals    []string          `json:"doctorReferrals"`
	CostRange          *CostRange        `json:"costRange,omitempty"`
	Disclaimer         string            `json:"disclaimer"`
	Excerpts           []ResponseExcerpt `json:"excerpts"`
	ReactionHighlights []string          `json:"reactionHighlights,omitempty"`
	NoExperienceCount  int               `json:"noExperienceCount"`
}

// internal/models/agent.go
package models

import "time"

// AgentRecord is the availability record for one participant's agent.
// Read by selection, written by credential refresh and circuit-breaking.
type AgentRecord struct {
	AgentID        string    `json:"agentId"`
	OwnerID        string    `json:"ownerId"`
	DisplayName    string    `json:"displayName,omitempty"`
	AccessToken    string    `json:"accessToken,omitempty"`
	RefreshToken   string    `json:"refreshToken,omitempty"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
	Consultable    bool      `json:"consultable"`
	CooldownUntil  time.Time `json:"cooldownUntil,omitempty"`
}

// CredentialExpired reports whether the access token is already past its
// expiry at the given instant.
func (a *AgentRecord) CredentialExpired(now time.Time) bool {
	return !a.TokenExpiresAt.After(now)
}

// CredentialExpiresWithin reports whether the access token expires inside
// the grace window and should be refreshed before use.
func (a *AgentRecord) CredentialExpiresWithin(now time.Time, grace time.Duration) bool {
	return a.TokenExpiresAt.Before(now.Add(grace))
}

// CoolingDown reports whether the agent is circuit-broken at the given
// instant. A zero CooldownUntil means no cooldown is set.
func (a *AgentRecord) CoolingDown(now time.Time) bool {
	return !a.CooldownUntil.IsZero() && a.CooldownUntil.After(now)
}

// Eligible reports whether the agent may be selected for a consultation
// asked by askerID: consultable, not the asker's own agent, credential
// unexpired, and not cooling down.
func (a *AgentRecord) Eligible(askerID string, now time.Time) bool {
	if !a.Consultable {
		return false
	}
	if a.OwnerID == askerID {
		return false
	}
	if a.CredentialExpired(now) {
		return false
	}
	if a.CoolingDown(now) {
		return false
	}
	return true
}

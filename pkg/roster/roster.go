// pkg/roster/roster.go

// Package roster loads the agent roster file that seeds the directory on
// startup. The file is validated against a JSON schema before use so a
// malformed roster fails fast instead of silently dropping agents.
package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

const rosterSchema = `{
  "type": "object",
  "properties": {
    "version": {"type": "string"},
    "updatedAt": {"type": "string"},
    "agents": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "agentId": {"type": "string", "minLength": 1},
          "ownerId": {"type": "string", "minLength": 1},
          "displayName": {"type": "string"},
          "accessToken": {"type": "string"},
          "refreshToken": {"type": "string", "minLength": 1},
          "tokenExpiresAt": {"type": "string"},
          "consultable": {"type": "boolean"}
        },
        "required": ["agentId", "ownerId", "refreshToken"],
        "additionalProperties": false
      }
    }
  },
  "required": ["agents"],
  "additionalProperties": false
}`

type Roster struct {
	Version   string  `json:"version"`
	UpdatedAt string  `json:"updatedAt"`
	Agents    []Entry `json:"agents"`
}

type Entry struct {
	AgentID     string `json:"agentId"`
	OwnerID     string `json:"ownerId"`
	DisplayName string `json:"displayName"`
	AccessToken string `json:"accessToken"`
	// RefreshToken lets the engine mint a fresh access token when the one
	// in the file has expired.
	RefreshToken   string `json:"refreshToken"`
	TokenExpiresAt string `json:"tokenExpiresAt"`
	Consultable    bool   `json:"consultable"`
}

// Load reads and validates the roster file.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(rosterSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate roster %s: %w", path, err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("roster %s failed schema validation: %v", path, result.Errors())
	}

	var roster Roster
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("decode roster %s: %w", path, err)
	}
	return &roster, nil
}

// Records converts roster entries into directory records. Entries without a
// parseable expiry get a zero expiry, so the refresher renews them before
// first use.
func (r *Roster) Records() []*models.AgentRecord {
	records := make([]*models.AgentRecord, 0, len(r.Agents))
	for _, entry := range r.Agents {
		record := &models.AgentRecord{
			AgentID:      entry.AgentID,
			OwnerID:      entry.OwnerID,
			DisplayName:  entry.DisplayName,
			AccessToken:  entry.AccessToken,
			RefreshToken: entry.RefreshToken,
			Consultable:  entry.Consultable,
		}
		if entry.TokenExpiresAt != "" {
			if expiry, err := time.Parse(time.RFC3339, entry.TokenExpiresAt); err == nil {
				record.TokenExpiresAt = expiry
			}
		}
		records = append(records, record)
	}
	return records
}

// pkg/roster/roster_test.go
package roster

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadValidRoster(t *testing.T) {
	path := writeRoster(t, `{
		"version": "1",
		"updatedAt": "2026-08-01T00:00:00Z",
		"agents": [
			{
				"agentId": "agent-1",
				"ownerId": "owner-1",
				"displayName": "First Agent",
				"accessToken": "tok-1",
				"refreshToken": "ref-1",
				"tokenExpiresAt": "2026-09-01T00:00:00Z",
				"consultable": true
			},
			{
				"agentId": "agent-2",
				"ownerId": "owner-2",
				"refreshToken": "ref-2",
				"consultable": false
			}
		]
	}`)

	roster, err := Load(path)
	require.NoError(t, err)
	require.Len(t, roster.Agents, 2)

	records := roster.Records()
	require.Len(t, records, 2)

	assert.Equal(t, "agent-1", records[0].AgentID)
	assert.Equal(t, "owner-1", records[0].OwnerID)
	assert.True(t, records[0].Consultable)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), records[0].TokenExpiresAt)

	// Missing expiry leaves the credential expired so it is refreshed
	// before first use.
	assert.True(t, records[1].TokenExpiresAt.IsZero())
	assert.False(t, records[1].Consultable)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing agents", `{"version": "1"}`},
		{"missing refresh token", `{"agents": [{"agentId": "a", "ownerId": "o"}]}`},
		{"empty agent id", `{"agents": [{"agentId": "", "ownerId": "o", "refreshToken": "r"}]}`},
		{"unknown field", `{"agents": [], "extra": true}`},
		{"not json", `not a roster`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeRoster(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

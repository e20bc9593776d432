// cmd/tools/roster-updater/main.go
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/pkg/roster"
)

const defaultRosterPath = "configs/agent-roster.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	removeCmd := flag.NewFlagSet("remove", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	addPath := addCmd.String("path", defaultRosterPath, "Path to roster file")
	idAdd := addCmd.String("id", "", "Agent ID (e.g., agent-dr-chen)")
	ownerID := addCmd.String("ownerId", "", "Owner user ID")
	displayName := addCmd.String("displayName", "", "Display name shown in logs")
	refreshToken := addCmd.String("refreshToken", "", "Refresh token for credential renewal")
	accessToken := addCmd.String("accessToken", "", "Initial access token (optional)")
	expiresAt := addCmd.String("expiresAt", "", "Access token expiry, RFC3339 (optional)")
	consultable := addCmd.Bool("consultable", true, "Whether the agent accepts consultations")

	// Update command flags
	updatePath := updateCmd.String("path", defaultRosterPath, "Path to roster file")
	idUpdate := updateCmd.String("id", "", "Agent ID to update")
	field := updateCmd.String("field", "", "Field to update (consultable, refreshToken, accessToken, expiresAt, displayName, ownerId)")
	value := updateCmd.String("value", "", "New value for the field")

	// Remove command flags
	removePath := removeCmd.String("path", defaultRosterPath, "Path to roster file")
	idRemove := removeCmd.String("id", "", "Agent ID to remove")

	// Validate command flags
	validatePath := validateCmd.String("path", defaultRosterPath, "Path to roster file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *ownerID == "" || *refreshToken == "" {
			fmt.Println("Error: id, ownerId, and refreshToken are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		entry := roster.Entry{
			AgentID:        *idAdd,
			OwnerID:        *ownerID,
			DisplayName:    *displayName,
			AccessToken:    *accessToken,
			RefreshToken:   *refreshToken,
			TokenExpiresAt: *expiresAt,
			Consultable:    *consultable,
		}
		if err := addAgent(*addPath, entry); err != nil {
			fmt.Printf("Error adding agent: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added agent: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateAgent(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating agent: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated agent %s, field %s to %s\n", *idUpdate, *field, *value)

	case "remove":
		removeCmd.Parse(os.Args[2:])
		if *idRemove == "" {
			fmt.Println("Error: id is required for remove.")
			removeCmd.Usage()
			os.Exit(1)
		}
		if err := removeAgent(*removePath, *idRemove); err != nil {
			fmt.Printf("Error removing agent: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed agent: %s\n", *idRemove)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRoster(*validatePath); err != nil {
			fmt.Printf("Roster validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Roster validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func addAgent(path string, entry roster.Entry) error {
	r, err := roster.Load(path)
	if err != nil {
		// A missing file starts an empty roster.
		if errors.Is(err, os.ErrNotExist) {
			r = &roster.Roster{Version: "1.0.0"}
		} else {
			return fmt.Errorf("failed to load roster: %w", err)
		}
	}

	for _, existing := range r.Agents {
		if existing.AgentID == entry.AgentID {
			return fmt.Errorf("agent with ID %s already exists", entry.AgentID)
		}
	}

	if entry.TokenExpiresAt != "" {
		if _, err := time.Parse(time.RFC3339, entry.TokenExpiresAt); err != nil {
			return fmt.Errorf("invalid expiresAt value: %w", err)
		}
	}

	r.Agents = append(r.Agents, entry)
	return saveRoster(r, path)
}

func updateAgent(path, id, field, value string) error {
	r, err := roster.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	found := false
	for i := range r.Agents {
		if r.Agents[i].AgentID == id {
			found = true
			switch field {
			case "consultable":
				consultable, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("invalid consultable value: %w", err)
				}
				r.Agents[i].Consultable = consultable
			case "refreshToken":
				r.Agents[i].RefreshToken = value
			case "accessToken":
				r.Agents[i].AccessToken = value
			case "expiresAt":
				if _, err := time.Parse(time.RFC3339, value); err != nil {
					return fmt.Errorf("invalid expiresAt value: %w", err)
				}
				r.Agents[i].TokenExpiresAt = value
			case "displayName":
				r.Agents[i].DisplayName = value
			case "ownerId":
				r.Agents[i].OwnerID = value
			default:
				return fmt.Errorf("unknown field: %s", field)
			}
			break
		}
	}

	if !found {
		return fmt.Errorf("agent with ID %s not found", id)
	}

	return saveRoster(r, path)
}

func removeAgent(path, id string) error {
	r, err := roster.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	kept := r.Agents[:0]
	found := false
	for _, entry := range r.Agents {
		if entry.AgentID == id {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return fmt.Errorf("agent with ID %s not found", id)
	}

	r.Agents = kept
	return saveRoster(r, path)
}

func validateRoster(path string) error {
	r, err := roster.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	if len(r.Agents) == 0 {
		return fmt.Errorf("roster contains no agents")
	}

	ids := make(map[string]bool)
	for _, entry := range r.Agents {
		if ids[entry.AgentID] {
			return fmt.Errorf("duplicate agent ID: %s", entry.AgentID)
		}
		ids[entry.AgentID] = true

		if entry.TokenExpiresAt != "" {
			if _, err := time.Parse(time.RFC3339, entry.TokenExpiresAt); err != nil {
				return fmt.Errorf("agent %s has invalid tokenExpiresAt: %w", entry.AgentID, err)
			}
		}
	}

	fmt.Printf("Roster validation passed. Found %d agents.\n", len(r.Agents))
	return nil
}

// saveRoster writes the roster with a refreshed updatedAt stamp.
func saveRoster(r *roster.Roster, path string) error {
	r.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal roster: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write roster file: %w", err)
	}

	return nil
}

func help() {
	fmt.Print(`
Usage: roster-updater <command> [flags]

Commands:
  add      Add a new agent to the roster
  update   Update an existing agent's field
  remove   Remove an agent from the roster
  validate Validate the roster file
  help     Show this help message

Examples:
  roster-updater add -id agent-dr-chen -ownerId user-42 -displayName "Dr. Chen" -refreshToken rt-abc123
  roster-updater update -id agent-dr-chen -field consultable -value false
  roster-updater validate -path configs/agent-roster.json

Use 'roster-updater <command> -h' for more information about a command.
`)
}

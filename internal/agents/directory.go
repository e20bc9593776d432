// internal/agents/directory.go

// Package agents manages the agent availability records: directory lookups,
// eligibility selection, credential refresh, and the chat client that talks
// to each agent's endpoint.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/store"
)

const agentSetKey = "agents:all"

func agentKey(agentID string) string {
	return "agent:" + agentID
}

// Directory persists agent records through the storage primitives: one JSON
// value per agent plus a membership set for enumeration.
type Directory struct {
	store store.Store
}

// NewDirectory creates a Directory over the given store.
func NewDirectory(s store.Store) *Directory {
	return &Directory{store: s}
}

// Put writes or replaces an agent record and registers it in the set.
func (d *Directory) Put(ctx context.Context, record *models.AgentRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal agent %s: %w", record.AgentID, err)
	}
	if err := d.store.Set(ctx, agentKey(record.AgentID), string(payload), 0); err != nil {
		return fmt.Errorf("store agent %s: %w", record.AgentID, err)
	}
	return d.store.SetAdd(ctx, agentSetKey, record.AgentID)
}

// Get returns the record for agentID, or (nil, nil) when unknown.
func (d *Directory) Get(ctx context.Context, agentID string) (*models.AgentRecord, error) {
	raw, ok, err := d.store.Get(ctx, agentKey(agentID))
	if err != nil {
		return nil, fmt.Errorf("load agent %s: %w", agentID, err)
	}
	if !ok {
		return nil, nil
	}
	var record models.AgentRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decode agent %s: %w", agentID, err)
	}
	return &record, nil
}

// Remove deletes an agent record and its set membership.
func (d *Directory) Remove(ctx context.Context, agentID string) error {
	if err := d.store.Delete(ctx, agentKey(agentID)); err != nil {
		return err
	}
	return d.store.SetRemove(ctx, agentSetKey, agentID)
}

// List returns every known agent record, sorted by agent ID.
func (d *Directory) List(ctx context.Context) ([]*models.AgentRecord, error) {
	ids, err := d.store.SetMembers(ctx, agentSetKey)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	sort.Strings(ids)

	records := make([]*models.AgentRecord, 0, len(ids))
	for _, id := range ids {
		record, err := d.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, record)
		}
	}
	return records, nil
}

// SelectEligible applies the eligibility predicate (consultable, not the
// asker's own agent, credential unexpired, not cooling down), sorts by agent
// ID for determinism, and caps the result at the fan-out limit.
func (d *Directory) SelectEligible(ctx context.Context, askerID string, now time.Time, cap int) ([]*models.AgentRecord, error) {
	all, err := d.List(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]*models.AgentRecord, 0, len(all))
	for _, record := range all {
		if record.Eligible(askerID, now) {
			eligible = append(eligible, record)
		}
	}
	if cap > 0 && len(eligible) > cap {
		eligible = eligible[:cap]
	}
	return eligible, nil
}

// CircuitBreak suppresses an agent's eligibility until now + cooldown,
// typically after an authorization failure.
func (d *Directory) CircuitBreak(ctx context.Context, agentID string, until time.Time) error {
	record, err := d.Get(ctx, agentID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("circuit-break unknown agent %s", agentID)
	}
	record.CooldownUntil = until
	return d.Put(ctx, record)
}

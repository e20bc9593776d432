// internal/agents/directory_test.go
package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/store"
)

func testAgent(id, owner string, expiresAt time.Time) *models.AgentRecord {
	return &models.AgentRecord{
		AgentID:        id,
		OwnerID:        owner,
		DisplayName:    "Agent " + id,
		AccessToken:    "token-" + id,
		RefreshToken:   "refresh-" + id,
		TokenExpiresAt: expiresAt,
		Consultable:    true,
	}
}

func TestDirectory_PutGetList(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(store.NewMemoryStore())
	now := time.Now()

	require.NoError(t, dir.Put(ctx, testAgent("a2", "u2", now.Add(time.Hour))))
	require.NoError(t, dir.Put(ctx, testAgent("a1", "u1", now.Add(time.Hour))))

	got, err := dir.Get(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.OwnerID)

	missing, err := dir.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Sorted by agent ID for determinism.
	assert.Equal(t, "a1", all[0].AgentID)
	assert.Equal(t, "a2", all[1].AgentID)

	require.NoError(t, dir.Remove(ctx, "a1"))
	all, _ = dir.List(ctx)
	assert.Len(t, all, 1)
}

func TestDirectory_SelectEligible(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	dir := NewDirectory(store.NewMemoryStore())

	fresh := now.Add(time.Hour)

	eligible := testAgent("a1", "u1", fresh)
	ownAgent := testAgent("a2", "asker", fresh)
	expired := testAgent("a3", "u3", now.Add(-time.Minute))
	notConsultable := testAgent("a4", "u4", fresh)
	notConsultable.Consultable = false
	coolingDown := testAgent("a5", "u5", fresh)
	coolingDown.CooldownUntil = now.Add(30 * time.Minute)
	cooldownElapsed := testAgent("a6", "u6", fresh)
	cooldownElapsed.CooldownUntil = now.Add(-time.Minute)

	for _, a := range []*models.AgentRecord{eligible, ownAgent, expired, notConsultable, coolingDown, cooldownElapsed} {
		require.NoError(t, dir.Put(ctx, a))
	}

	selected, err := dir.SelectEligible(ctx, "asker", now, 5)
	require.NoError(t, err)

	ids := make([]string, 0, len(selected))
	for _, a := range selected {
		ids = append(ids, a.AgentID)
	}
	assert.Equal(t, []string{"a1", "a6"}, ids)
}

func TestDirectory_SelectEligible_FanOutCap(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	dir := NewDirectory(store.NewMemoryStore())

	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7"} {
		require.NoError(t, dir.Put(ctx, testAgent(id, "owner-"+id, now.Add(time.Hour))))
	}

	selected, err := dir.SelectEligible(ctx, "asker", now, 5)
	require.NoError(t, err)
	require.Len(t, selected, 5)
	// Deterministic prefix of the sorted order.
	assert.Equal(t, "a1", selected[0].AgentID)
	assert.Equal(t, "a5", selected[4].AgentID)
}

func TestDirectory_SelectEligible_NoneEligible(t *testing.T) {
	ctx := context.Background()
	dir := NewDirectory(store.NewMemoryStore())

	selected, err := dir.SelectEligible(ctx, "asker", time.Now(), 5)
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestDirectory_CircuitBreak(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	dir := NewDirectory(store.NewMemoryStore())

	require.NoError(t, dir.Put(ctx, testAgent("a1", "u1", now.Add(time.Hour))))

	until := now.Add(30 * time.Minute)
	require.NoError(t, dir.CircuitBreak(ctx, "a1", until))

	got, err := dir.Get(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.CoolingDown(now))
	assert.False(t, got.Eligible("asker", now))

	err = dir.CircuitBreak(ctx, "ghost", until)
	assert.Error(t, err)
}

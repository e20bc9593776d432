// internal/agents/refresher.go
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/store"
)

// RefresherConfig tunes the credential refresh path.
type RefresherConfig struct {
	RefreshURL string
	// Grace is how close to expiry a credential may get before a refresh is
	// attempted ahead of a call.
	Grace time.Duration
	// LockTTL bounds how long a crashed holder can block other refreshers.
	LockTTL time.Duration
	// WaiterBackoff is the single poll a non-holder performs before
	// re-reading the agent record.
	WaiterBackoff time.Duration
	// Timeout bounds the refresh endpoint call.
	Timeout time.Duration
}

// Refresher renews expiring agent credentials under a per-agent lease so
// concurrent consultations targeting the same agent do not invalidate each
// other's tokens.
type Refresher struct {
	config    RefresherConfig
	directory *Directory
	store     store.Store
	client    *http.Client
	logger    logger.Logger
}

// NewRefresher creates a Refresher using the shared directory and store.
func NewRefresher(config RefresherConfig, directory *Directory, s store.Store, log logger.Logger) *Refresher {
	return &Refresher{
		config:    config,
		directory: directory,
		store:     s,
		client:    &http.Client{Timeout: config.Timeout},
		logger:    log,
	}
}

func refreshLockKey(agentID string) string {
	return "lock:agent-refresh:" + agentID
}

// EnsureFresh returns a record whose credential is usable for a call. When
// the credential expires inside the grace window it refreshes under the
// per-agent lease; non-holders back off once and re-read. A refresh failure
// returns an error: the caller is expected to circuit-break the agent and
// abandon the call for this round.
func (r *Refresher) EnsureFresh(ctx context.Context, record *models.AgentRecord) (*models.AgentRecord, error) {
	now := time.Now()
	if !record.CredentialExpiresWithin(now, r.config.Grace) {
		return record, nil
	}

	lock := store.NewLock(r.store, refreshLockKey(record.AgentID), r.config.LockTTL)
	held, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire refresh lock for %s: %w", record.AgentID, err)
	}

	if held {
		defer func() {
			if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
				r.logger.Warn("refresh lock release failed", map[string]interface{}{
					"agentId": record.AgentID,
					"error":   releaseErr.Error(),
				})
			}
		}()
		return r.refresh(ctx, record)
	}

	// Someone else is refreshing: poll once, then re-read the record and use
	// its credential if now fresh.
	if err := store.WaitOnce(ctx, r.config.WaiterBackoff); err != nil {
		return nil, err
	}

	current, err := r.directory.Get(ctx, record.AgentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("agent %s disappeared during refresh", record.AgentID)
	}
	if current.CredentialExpiresWithin(time.Now(), r.config.Grace) {
		return nil, fmt.Errorf("agent %s credential still stale after waiting for refresh", record.AgentID)
	}
	return current, nil
}

type refreshRequest struct {
	AgentID      string `json:"agentId"`
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"` // seconds
}

// refresh calls the credential refresh endpoint and persists the renewed
// pair on the agent record.
func (r *Refresher) refresh(ctx context.Context, record *models.AgentRecord) (*models.AgentRecord, error) {
	body, _ := json.Marshal(refreshRequest{
		AgentID:      record.AgentID,
		RefreshToken: record.RefreshToken,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.RefreshURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh call for %s: %w", record.AgentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("refresh for %s rejected with status %d: %s", record.AgentID, resp.StatusCode, string(raw))
	}

	var parsed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode refresh response for %s: %w", record.AgentID, err)
	}
	if parsed.AccessToken == "" || parsed.ExpiresIn <= 0 {
		return nil, fmt.Errorf("refresh response for %s missing token or expiry", record.AgentID)
	}

	record.AccessToken = parsed.AccessToken
	if parsed.RefreshToken != "" {
		record.RefreshToken = parsed.RefreshToken
	}
	record.TokenExpiresAt = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)

	if err := r.directory.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("persist refreshed credential for %s: %w", record.AgentID, err)
	}

	r.logger.Info("agent credential refreshed", map[string]interface{}{
		"agentId":   record.AgentID,
		"expiresAt": record.TokenExpiresAt.Format(time.RFC3339),
	})
	return record, nil
}

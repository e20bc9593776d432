// internal/consultation/responses.go
package consultation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
	"github.com/Joe-rq/MedCrowd-sub000/internal/store"
)

func responseKey(consultationID string, round models.Round, agentID string) string {
	return fmt.Sprintf("resp:%s:%s:%s", consultationID, round, agentID)
}

func responseListKey(consultationID string) string {
	return fmt.Sprintf("consultation:%s:responses", consultationID)
}

func consultationKey(consultationID string) string {
	return "consultation:" + consultationID
}

// WriteReport is the per-item outcome of a batch write. The orchestrator
// uses Err to decide whether the consultation degrades to PARTIAL.
type WriteReport struct {
	AgentID string
	Written bool
	Deduped bool
	Err     error
}

// ResponseStore persists agent responses idempotently: exactly one row per
// (consultation, round, agent), first write wins.
type ResponseStore struct {
	store  store.Store
	logger logger.Logger
}

// NewResponseStore creates a ResponseStore over the given store.
func NewResponseStore(s store.Store, log logger.Logger) *ResponseStore {
	return &ResponseStore{store: s, logger: log}
}

// Put writes one response if its idempotency key is absent. It reports
// whether the row was inserted; false with a nil error means a row for the
// same key already existed and was preserved.
func (r *ResponseStore) Put(ctx context.Context, resp *models.AgentResponse) (bool, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return false, fmt.Errorf("marshal response for %s: %w", resp.AgentID, err)
	}

	key := responseKey(resp.ConsultationID, resp.Round, resp.AgentID)
	written, err := r.store.SetIfAbsent(ctx, key, string(payload), 0)
	if err != nil {
		return false, fmt.Errorf("persist response %s: %w", key, err)
	}
	if !written {
		return false, nil
	}

	// Only the first insert joins the consultation's response list, so the
	// list never holds duplicates.
	if err := r.store.Append(ctx, responseListKey(resp.ConsultationID), key); err != nil {
		return true, fmt.Errorf("index response %s: %w", key, err)
	}
	return true, nil
}

// PutBatch writes a batch of responses, isolating failures per item: one
// item's persistence error never blocks or rolls back the others.
func (r *ResponseStore) PutBatch(ctx context.Context, responses []*models.AgentResponse) []WriteReport {
	reports := make([]WriteReport, 0, len(responses))
	for _, resp := range responses {
		written, err := r.Put(ctx, resp)
		report := WriteReport{
			AgentID: resp.AgentID,
			Written: written,
			Deduped: !written && err == nil,
			Err:     err,
		}
		if err != nil {
			r.logger.Error("response write failed", map[string]interface{}{
				"consultationId": resp.ConsultationID,
				"agentId":        resp.AgentID,
				"round":          string(resp.Round),
				"error":          err.Error(),
			})
		}
		reports = append(reports, report)
	}
	return reports
}

// List returns every persisted response of a consultation in insertion
// order, both rounds included.
func (r *ResponseStore) List(ctx context.Context, consultationID string) ([]*models.AgentResponse, error) {
	keys, err := r.store.GetList(ctx, responseListKey(consultationID))
	if err != nil {
		return nil, fmt.Errorf("list responses for %s: %w", consultationID, err)
	}

	responses := make([]*models.AgentResponse, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load response %s: %w", key, err)
		}
		if !ok {
			continue
		}
		var resp models.AgentResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return nil, fmt.Errorf("decode response %s: %w", key, err)
		}
		responses = append(responses, &resp)
	}
	return responses, nil
}

// SaveConsultation persists the consultation row as JSON. Called at every
// status transition.
func (r *ResponseStore) SaveConsultation(ctx context.Context, c *models.Consultation) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal consultation %s: %w", c.ID, err)
	}
	return r.store.Set(ctx, consultationKey(c.ID), string(payload), 0)
}

// LoadConsultation returns the persisted consultation row, or (nil, nil)
// when unknown.
func (r *ResponseStore) LoadConsultation(ctx context.Context, consultationID string) (*models.Consultation, error) {
	raw, ok, err := r.store.Get(ctx, consultationKey(consultationID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var c models.Consultation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode consultation %s: %w", consultationID, err)
	}
	return &c, nil
}

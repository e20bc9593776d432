// internal/consultation/query.go
package consultation

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/Joe-rq/MedCrowd-sub000/internal/agents"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/errors"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/metrics"
	"github.com/Joe-rq/MedCrowd-sub000/internal/consultation/events"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

// QueryOutcome is one agent's raw result in a round, success or failure.
// Failures are data: no outcome ever aborts sibling calls.
type QueryOutcome struct {
	Agent     *models.AgentRecord
	Result    *agents.ChatResult
	Err       *errors.StandardError
	LatencyMs int64
}

// QueryRunner fans one round out across the selected agents: refresh
// expiring credentials, call each chat endpoint in parallel, and collect
// every outcome. A failing or slow agent never cancels its siblings, so the
// runner joins with a WaitGroup rather than a cancel-on-first-error group.
type QueryRunner struct {
	refresher *agents.Refresher
	chat      *agents.ChatClient
	directory *agents.Directory
	cooldown  time.Duration
	publisher *events.Publisher
	logger    logger.Logger
}

// NewQueryRunner wires the round runner.
func NewQueryRunner(
	refresher *agents.Refresher,
	chat *agents.ChatClient,
	directory *agents.Directory,
	cooldown time.Duration,
	publisher *events.Publisher,
	log logger.Logger,
) *QueryRunner {
	return &QueryRunner{
		refresher: refresher,
		chat:      chat,
		directory: directory,
		cooldown:  cooldown,
		publisher: publisher,
		logger:    log,
	}
}

// RunRound queries every record in parallel and returns outcomes indexed by
// selection order. The batch completes when the slowest non-timed-out call
// finishes.
func (q *QueryRunner) RunRound(
	ctx context.Context,
	consultationID string,
	round models.Round,
	records []*models.AgentRecord,
	message, sysPrompt string,
) []QueryOutcome {
	outcomes := make([]QueryOutcome, len(records))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, record := range records {
		wg.Add(1)
		go func(i int, record *models.AgentRecord) {
			defer wg.Done()

			q.publisher.Emit(ctx, events.AgentQueryStarted(consultationID, record.AgentID, round))
			outcome := q.queryOne(ctx, record, message, sysPrompt)
			q.publisher.Emit(ctx, events.AgentQueryFinished(
				consultationID, record.AgentID, round, outcome.Err == nil, outcome.LatencyMs))

			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
		}(i, record)
	}
	wg.Wait()

	return outcomes
}

// queryOne performs the refresh-then-call sequence for one agent and maps
// every failure mode to its error code.
func (q *QueryRunner) queryOne(ctx context.Context, record *models.AgentRecord, message, sysPrompt string) QueryOutcome {
	outcome := QueryOutcome{Agent: record}

	fresh, err := q.refresher.EnsureFresh(ctx, record)
	if err != nil {
		// Refresh failure, holder or waiter: circuit-break and abandon the
		// call for this round.
		q.circuitBreak(ctx, record.AgentID)
		outcome.Err = errors.NewAgentAuthFailureError(record.AgentID, "credential refresh failed: "+err.Error())
		metrics.AgentCalls.WithLabelValues("auth_failure").Inc()
		return outcome
	}

	result, latencyMs, err := q.chat.Ask(ctx, fresh, message, sysPrompt)
	outcome.LatencyMs = latencyMs
	metrics.AgentCallLatency.Observe(float64(latencyMs) / 1000)

	switch {
	case err == nil:
		outcome.Result = result
		metrics.AgentCalls.WithLabelValues("ok").Inc()
	case stderrors.Is(err, agents.ErrUnauthorized):
		q.circuitBreak(ctx, record.AgentID)
		outcome.Err = errors.NewAgentAuthFailureError(record.AgentID, "chat call rejected: "+err.Error())
		metrics.AgentCalls.WithLabelValues("auth_failure").Inc()
	case stderrors.Is(err, context.DeadlineExceeded):
		outcome.Err = errors.NewAgentTimeoutError(record.AgentID, latencyMs)
		metrics.AgentCalls.WithLabelValues("timeout").Inc()
	default:
		outcome.Err = errors.NewAgentCallFailedError(record.AgentID, err, latencyMs)
		metrics.AgentCalls.WithLabelValues("failed").Inc()
	}
	return outcome
}

func (q *QueryRunner) circuitBreak(ctx context.Context, agentID string) {
	until := time.Now().Add(q.cooldown)
	if err := q.directory.CircuitBreak(context.WithoutCancel(ctx), agentID, until); err != nil {
		q.logger.Warn("circuit-break write failed", map[string]interface{}{
			"agentId": agentID,
			"error":   err.Error(),
		})
		return
	}
	q.logger.Info("agent circuit-broken", map[string]interface{}{
		"agentId":       agentID,
		"cooldownUntil": until.Format(time.RFC3339),
	})
}

// internal/consultation/events/sink_test.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joe-rq/MedCrowd-sub000/internal/common/config"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/database"
	"github.com/Joe-rq/MedCrowd-sub000/internal/common/logger"
	"github.com/Joe-rq/MedCrowd-sub000/internal/models"
)

type captureSink struct {
	events []Event
	err    error
}

func (s *captureSink) Publish(_ context.Context, e Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func TestPublisher_Emit(t *testing.T) {
	sink := &captureSink{}
	pub := NewPublisher(sink, logger.NewNoOpLogger())

	pub.Emit(context.Background(), ConsultationStarted("c1"))
	pub.Emit(context.Background(), ConsultationDone("c1", models.StatusDone))

	require.Len(t, sink.events, 2)
	assert.Equal(t, TypeConsultationStarted, sink.events[0].Type)
	assert.Equal(t, TypeConsultationDone, sink.events[1].Type)
	assert.Equal(t, models.StatusDone, sink.events[1].Status)
}

func TestPublisher_SinkErrorIsSwallowed(t *testing.T) {
	sink := &captureSink{err: errors.New("channel gone")}
	pub := NewPublisher(sink, logger.NewTestLogger(t))

	// Must not panic or propagate.
	pub.Emit(context.Background(), SummaryReady("c1"))
}

func TestPublisher_NilSinkDropsEvents(t *testing.T) {
	pub := NewPublisher(nil, logger.NewNoOpLogger())
	pub.Emit(context.Background(), ReactionStarted("c1"))
}

func TestEventConstructors(t *testing.T) {
	e := AgentQueryFinished("c1", "a1", models.RoundInitial, true, 412)
	assert.Equal(t, TypeAgentQueryFinished, e.Type)
	assert.Equal(t, "c1", e.ConsultationID)
	assert.Equal(t, "a1", e.AgentID)
	assert.Equal(t, models.RoundInitial, e.Round)
	assert.True(t, e.OK)
	assert.Equal(t, int64(412), e.LatencyMs)
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, time.Second)

	v := ValidationSummary("c1", models.RoundInitial, 3, 1, 1)
	assert.Equal(t, 3, v.ValidCount)
	assert.Equal(t, 1, v.InvalidCount)
	assert.Equal(t, 1, v.NoExperienceCount)
}

func TestRedisSink_PublishesJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer redisClient.Close()

	sub := redisClient.GetClient().Subscribe(context.Background(), Channel("c1"))
	defer sub.Close()
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	sink := NewRedisSink(redisClient)
	require.NoError(t, sink.Publish(context.Background(), AgentQueryStarted("c1", "a1", models.RoundInitial)))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, TypeAgentQueryStarted, got.Type)
		assert.Equal(t, "a1", got.AgentID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received on channel")
	}
}

func TestRedisSink_PublishErrorSurfacesToPublisher(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	event := SummaryReady("c1")
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	mock.ExpectPublish(Channel("c1"), payload).SetErr(errors.New("connection lost"))

	sink := NewRedisSink(&database.RedisClient{Client: db})

	err = sink.Publish(context.Background(), event)
	require.Error(t, err)

	// The publisher swallows the same failure instead of propagating it.
	mock.ExpectPublish(Channel("c1"), payload).SetErr(errors.New("connection lost"))
	NewPublisher(sink, logger.NewTestLogger(t)).Emit(context.Background(), event)

	assert.NoError(t, mock.ExpectationsWereMet())
}

package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/agentplane/internal/model"
)

type fakeRedis struct {
	channels []string
	messages [][]byte
	failOn   int
	closed   bool
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message.([]byte))
	if f.failOn > 0 && len(f.messages) == f.failOn {
		return redis.NewIntResult(0, errors.New("connection refused"))
	}
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisPublisher_Publish(t *testing.T) {
	client := &fakeRedis{}
	pub := NewRedisPublisher(client, "agentplane.events")

	err := pub.Publish(context.Background(),
		model.Event{ID: "e1", TenantID: testTenant, EventType: model.EventVersionPromoted, Payload: json.RawMessage(`{"version_id":"v"}`), OccurredAt: testNow},
		model.Event{ID: "e2", TenantID: testTenant, EventType: model.EventVersionRetired, Payload: json.RawMessage(`{}`), OccurredAt: testNow},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"agentplane.events", "agentplane.events"}, client.channels)

	var got model.Event
	require.NoError(t, json.Unmarshal(client.messages[0], &got))
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, model.EventVersionPromoted, got.EventType)
	assert.JSONEq(t, `{"version_id":"v"}`, string(got.Payload))
}

func TestRedisPublisher_ContinuesAfterFailure(t *testing.T) {
	client := &fakeRedis{failOn: 1}
	pub := NewRedisPublisher(client, "events")

	err := pub.Publish(context.Background(), model.Event{ID: "e1", Payload: json.RawMessage(`{}`)}, model.Event{ID: "e2", Payload: json.RawMessage(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event e1")
	assert.Len(t, client.messages, 2)

	require.NoError(t, pub.Close())
	assert.True(t, client.closed)
}

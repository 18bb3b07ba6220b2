package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/edvin/agentplane/internal/model"
)

// redisPublishClient is the subset of *redis.Client the publisher uses.
type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher fans committed events out on a Redis pub/sub channel, one
// JSON message per event.
type RedisPublisher struct {
	client  redisPublishClient
	channel string
}

func NewRedisPublisher(client redisPublishClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, events ...model.Event) error {
	var errs []error
	for _, ev := range events {
		msg, err := json.Marshal(ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal event %s: %w", ev.ID, err))
			continue
		}
		if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
			errs = append(errs, fmt.Errorf("publish event %s: %w", ev.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

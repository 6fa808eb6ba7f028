// Package events publishes drive change notifications to the platform's
// streaming layer over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
)

const (
	EventDriveFileCreated = "driveFileCreated"
	EventFileCreated      = "fileCreated"
)

// Publisher delivers fire-and-forget notifications to a user's streams.
type Publisher interface {
	PublishMainStream(ctx context.Context, userID string, event string, body any) error
	PublishDriveStream(ctx context.Context, userID string, event string, body any) error
}

type envelope struct {
	Channel string  `json:"channel"`
	Message message `json:"message"`
}

type message struct {
	Type string `json:"type"`
	Body any    `json:"body"`
}

// RedisPublisher publishes on the channel named after the instance host,
// which is where the streaming servers subscribe.
type RedisPublisher struct {
	rdb     redis.Cmdable
	channel string
}

// NewRedisPublisher derives the pub/sub channel from instanceURL.
func NewRedisPublisher(rdb redis.Cmdable, instanceURL string) (*RedisPublisher, error) {
	u, err := url.Parse(instanceURL)
	if err != nil {
		return nil, fmt.Errorf("instance url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("instance url %q has no host", instanceURL)
	}
	return &RedisPublisher{rdb: rdb, channel: u.Host}, nil
}

func (p *RedisPublisher) PublishMainStream(ctx context.Context, userID string, event string, body any) error {
	return p.publish(ctx, "mainStream:"+userID, event, body)
}

func (p *RedisPublisher) PublishDriveStream(ctx context.Context, userID string, event string, body any) error {
	return p.publish(ctx, "driveStream:"+userID, event, body)
}

func (p *RedisPublisher) publish(ctx context.Context, stream string, event string, body any) error {
	b, err := json.Marshal(envelope{Channel: stream, Message: message{Type: event, Body: body}})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", stream, err)
	}
	return nil
}

// Package xpevents fans XP events out across server instances through a
// Redis stream.
package xpevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"terretahub/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the stream key used when none is configured
const DefaultStream = "xp:events"

const streamMaxLen = 10000

// Broadcaster delivers events to locally connected clients
type Broadcaster interface {
	Broadcast(event models.XPEvent)
}

// Publisher appends XP events to the stream
type Publisher struct {
	rdb    redis.Cmdable
	stream string
}

func NewPublisher(rdb redis.Cmdable, stream string) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{rdb: rdb, stream: stream}
}

// Publish appends one event, trimming the stream to roughly streamMaxLen entries
func (p *Publisher) Publish(ctx context.Context, event models.XPEvent) error {
	values, err := encodeEvent(event)
	if err != nil {
		return err
	}
	_, err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish xp event: %w", err)
	}
	return nil
}

// Consumer tails the stream and hands every new event to a Broadcaster.
// Each server instance runs its own consumer so every instance sees every
// event.
type Consumer struct {
	rdb    redis.Cmdable
	stream string
	hub    Broadcaster
	logger *zap.Logger
}

func NewConsumer(rdb redis.Cmdable, stream string, hub Broadcaster, logger *zap.Logger) *Consumer {
	if stream == "" {
		stream = DefaultStream
	}
	return &Consumer{rdb: rdb, stream: stream, hub: hub, logger: logger}
}

// Run blocks until ctx is cancelled. Only events added after Run starts are
// delivered.
func (c *Consumer) Run(ctx context.Context) {
	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := c.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{c.stream, lastID},
			Count:   100,
			Block:   time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("xp stream read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				event, err := decodeEvent(message)
				if err != nil {
					c.logger.Warn("dropping malformed xp event", zap.String("id", message.ID), zap.Error(err))
					continue
				}
				c.hub.Broadcast(event)
			}
		}
	}
}

func encodeEvent(event models.XPEvent) (map[string]interface{}, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal xp event: %w", err)
	}
	return map[string]interface{}{
		"type": event.Type,
		"data": string(data),
	}, nil
}

func decodeEvent(message redis.XMessage) (models.XPEvent, error) {
	var event models.XPEvent
	data, ok := message.Values["data"].(string)
	if !ok {
		return event, fmt.Errorf("invalid message format: missing data field")
	}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal xp event: %w", err)
	}
	return event, nil
}

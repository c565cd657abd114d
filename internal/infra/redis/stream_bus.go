package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/ports/adapter"
)

const valueField = "value"

var _ adapter.Bus = (*StreamBus)(nil)

// StreamBus maps topics onto Redis Streams read through a consumer group.
type StreamBus struct {
	client *Client
	group  string
	block  time.Duration

	mu     sync.Mutex
	closed bool
}

func NewStreamBus(c *Client, group string, block time.Duration) *StreamBus {
	if block <= 0 {
		block = 5 * time.Second
	}
	return &StreamBus{client: c, group: group, block: block}
}

func (b *StreamBus) Publish(ctx context.Context, topic string, value []byte) error {
	if b.isClosed() {
		return domain.ErrBusClosed
	}
	err := b.client.cli.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{valueField: value},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	return nil
}

func (b *StreamBus) Subscribe(ctx context.Context, topics ...string) (adapter.Consumer, error) {
	if b.isClosed() {
		return nil, domain.ErrBusClosed
	}
	for _, t := range topics {
		err := b.client.cli.XGroupCreateMkStream(ctx, t, b.group, "$").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return nil, fmt.Errorf("create group %s on %s: %w", b.group, t, err)
		}
	}
	streams := make([]string, 0, 2*len(topics))
	streams = append(streams, topics...)
	for range topics {
		streams = append(streams, ">")
	}
	return &streamConsumer{
		bus:     b,
		name:    b.group + "-" + uuid.NewString()[:8],
		streams: streams,
		done:    make(chan struct{}),
	}, nil
}

// Close releases the Redis client.
func (b *StreamBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.client.Close()
}

func (b *StreamBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type streamConsumer struct {
	bus     *StreamBus
	name    string
	streams []string
	pending []adapter.Message
	done    chan struct{}
	once    sync.Once
}

func (c *streamConsumer) Next(ctx context.Context) (adapter.Message, error) {
	for len(c.pending) == 0 {
		select {
		case <-ctx.Done():
			return adapter.Message{}, ctx.Err()
		case <-c.done:
			return adapter.Message{}, domain.ErrBusClosed
		default:
		}
		if err := c.fetch(ctx); err != nil {
			return adapter.Message{}, err
		}
	}
	m := c.pending[0]
	c.pending = c.pending[1:]
	return m, nil
}

func (c *streamConsumer) fetch(ctx context.Context) error {
	cli := c.bus.client.cli
	res, err := cli.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.bus.group,
		Consumer: c.name,
		Streams:  c.streams,
		Count:    16,
		Block:    c.bus.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("xreadgroup: %w", err)
	}
	for _, stream := range res {
		ids := make([]string, 0, len(stream.Messages))
		for _, xm := range stream.Messages {
			ids = append(ids, xm.ID)
			c.pending = append(c.pending, adapter.Message{
				Topic: stream.Stream,
				Key:   []byte(xm.ID),
				Value: fieldBytes(xm.Values[valueField]),
			})
		}
		if len(ids) > 0 {
			if err := cli.XAck(ctx, stream.Stream, c.bus.group, ids...).Err(); err != nil {
				return fmt.Errorf("xack %s: %w", stream.Stream, err)
			}
		}
	}
	return nil
}

func fieldBytes(v interface{}) []byte {
	switch t := v.(type) {
	case string:
		return []byte(t)
	case []byte:
		return t
	default:
		return nil
	}
}

func (c *streamConsumer) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Package membus is an in-process bus. Every consumer subscribed to a topic
// receives its own copy of each message published after it subscribed.
package membus

import (
	"context"
	"sync"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/ports/adapter"
)

var _ adapter.Bus = (*Bus)(nil)

type Bus struct {
	mu        sync.RWMutex
	consumers map[*consumer]struct{}
	closed    bool
}

func New() *Bus {
	return &Bus{consumers: make(map[*consumer]struct{})}
}

func (b *Bus) Publish(_ context.Context, topic string, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return domain.ErrBusClosed
	}
	for c := range b.consumers {
		if _, ok := c.topics[topic]; ok {
			c.push(adapter.Message{Topic: topic, Value: append([]byte(nil), value...)})
		}
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context, topics ...string) (adapter.Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, domain.ErrBusClosed
	}
	c := &consumer{
		bus:    b,
		topics: make(map[string]struct{}, len(topics)),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, t := range topics {
		c.topics[t] = struct{}{}
	}
	b.consumers[c] = struct{}{}
	return c, nil
}

// Close ends every consumer.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for c := range b.consumers {
		c.shutdown()
	}
	b.consumers = nil
	return nil
}

func (b *Bus) remove(c *consumer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.consumers, c)
}

type consumer struct {
	bus    *Bus
	topics map[string]struct{}

	mu      sync.Mutex
	pending []adapter.Message
	notify  chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (c *consumer) push(m adapter.Message) {
	c.mu.Lock()
	c.pending = append(c.pending, m)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *consumer) Next(ctx context.Context) (adapter.Message, error) {
	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			m := c.pending[0]
			c.pending = c.pending[1:]
			c.mu.Unlock()
			return m, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return adapter.Message{}, ctx.Err()
		case <-c.done:
			return adapter.Message{}, domain.ErrBusClosed
		case <-c.notify:
		}
	}
}

func (c *consumer) shutdown() { c.once.Do(func() { close(c.done) }) }

func (c *consumer) Close() error {
	c.shutdown()
	c.bus.remove(c)
	return nil
}

// Package natsbus implements the bus on core NATS subjects.
package natsbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/ports/adapter"
)

var _ adapter.Bus = (*Bus)(nil)

type Bus struct {
	conn  *nats.Conn
	queue string
}

// Connect dials url. Consumers join queue so replicas share the load.
func Connect(url, queue string, logger *zerolog.Logger) (*Bus, error) {
	log := logger.With().Str("component", "nats").Logger()
	conn, err := nats.Connect(url,
		nats.Name(queue),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return New(conn, queue), nil
}

func New(conn *nats.Conn, queue string) *Bus {
	return &Bus{conn: conn, queue: queue}
}

func (b *Bus) Publish(_ context.Context, topic string, value []byte) error {
	if b.conn.IsClosed() {
		return domain.ErrBusClosed
	}
	if err := b.conn.Publish(topic, value); err != nil {
		return fmt.Errorf("nats publish %s: %w", topic, err)
	}
	return nil
}

func (b *Bus) Subscribe(_ context.Context, topics ...string) (adapter.Consumer, error) {
	if b.conn.IsClosed() {
		return nil, domain.ErrBusClosed
	}
	c := &consumer{
		msgs: make(chan *nats.Msg, 256),
		done: make(chan struct{}),
	}
	for _, t := range topics {
		var (
			sub *nats.Subscription
			err error
		)
		if b.queue != "" {
			sub, err = b.conn.ChanQueueSubscribe(t, b.queue, c.msgs)
		} else {
			sub, err = b.conn.ChanSubscribe(t, c.msgs)
		}
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("nats subscribe %s: %w", t, err)
		}
		c.subs = append(c.subs, sub)
	}
	return c, nil
}

func (b *Bus) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}

type consumer struct {
	msgs chan *nats.Msg
	subs []*nats.Subscription
	done chan struct{}
	once sync.Once
}

func (c *consumer) Next(ctx context.Context) (adapter.Message, error) {
	select {
	case <-ctx.Done():
		return adapter.Message{}, ctx.Err()
	case <-c.done:
		return adapter.Message{}, domain.ErrBusClosed
	case m := <-c.msgs:
		return adapter.Message{Topic: m.Subject, Value: m.Data}, nil
	}
}

func (c *consumer) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		for _, s := range c.subs {
			if uerr := s.Unsubscribe(); uerr != nil && err == nil {
				err = uerr
			}
		}
	})
	return err
}

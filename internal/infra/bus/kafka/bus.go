// Package kafka implements the bus on Kafka topics with segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/ports/adapter"
)

var _ adapter.Bus = (*Bus)(nil)

type Config struct {
	Brokers []string
	GroupID string
}

type Bus struct {
	cfg    Config
	writer *kafka.Writer
	log    zerolog.Logger

	mu      sync.Mutex
	readers map[*consumer]struct{}
	closed  bool
}

func New(cfg Config, logger *zerolog.Logger) (*Bus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &Bus{
		cfg:     cfg,
		writer:  w,
		log:     logger.With().Str("component", "kafka").Logger(),
		readers: make(map[*consumer]struct{}),
	}, nil
}

func (b *Bus) Publish(ctx context.Context, topic string, value []byte) error {
	if err := b.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Value: value}); err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins a consumer group derived from the configured group id and
// the topic set, so readers over different topics never share a group.
func (b *Bus) Subscribe(_ context.Context, topics ...string) (adapter.Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, domain.ErrBusClosed
	}
	group := groupFor(b.cfg.GroupID, topics)
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		GroupID:     group,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			b.log.Error().Str("group", group).Msgf(msg, args...)
		}),
	})
	c := &consumer{bus: b, reader: r}
	b.readers[c] = struct{}{}
	b.log.Info().Str("group", group).Strs("topics", topics).Msg("reader started")
	return c, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	readers := b.readers
	b.readers = nil
	b.mu.Unlock()

	var errs []error
	for c := range readers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func groupFor(base string, topics []string) string {
	sorted := append([]string(nil), topics...)
	sort.Strings(sorted)
	return base + "." + strings.Join(sorted, "+")
}

type consumer struct {
	bus    *Bus
	reader *kafka.Reader
	once   sync.Once
}

func (c *consumer) Next(ctx context.Context) (adapter.Message, error) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return adapter.Message{}, ctx.Err()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return adapter.Message{}, domain.ErrBusClosed
		}
		return adapter.Message{}, fmt.Errorf("kafka read: %w", err)
	}
	return adapter.Message{Topic: m.Topic, Key: m.Key, Value: m.Value}, nil
}

func (c *consumer) Close() error {
	var err error
	c.once.Do(func() {
		c.bus.mu.Lock()
		if c.bus.readers != nil {
			delete(c.bus.readers, c)
		}
		c.bus.mu.Unlock()
		err = c.reader.Close()
	})
	return err
}

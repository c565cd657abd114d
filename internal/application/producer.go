package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/model"
	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/infra/metrics"
)

// Producer serializes outbound chat messages and publishes them to the
// produce topic from its own goroutine.
type Producer struct {
	pub          adapter.Publisher
	topic        string
	queue        chan *model.BotMessage
	stopping     chan struct{}
	stopped      chan struct{}
	flushTimeout time.Duration
	attempts     int
	retryDelay   time.Duration
	log          zerolog.Logger
}

var _ adapter.MessageSender = (*Producer)(nil)

func NewProducer(pub adapter.Publisher, topic string, buffer int, logger *zerolog.Logger) *Producer {
	if buffer <= 0 {
		buffer = 256
	}
	return &Producer{
		pub:          pub,
		topic:        topic,
		queue:        make(chan *model.BotMessage, buffer),
		stopping:     make(chan struct{}),
		stopped:      make(chan struct{}),
		flushTimeout: 5 * time.Second,
		attempts:     3,
		retryDelay:   200 * time.Millisecond,
		log:          logger.With().Str("component", "producer").Str("topic", topic).Logger(),
	}
}

// WithRetry sets how often a failed publish is tried and the base delay
// between tries. The delay doubles after every failure.
func (p *Producer) WithRetry(attempts int, delay time.Duration) *Producer {
	if attempts > 0 {
		p.attempts = attempts
	}
	if delay > 0 {
		p.retryDelay = delay
	}
	return p
}

// Send queues msg for publishing. It blocks only while the queue is full.
func (p *Producer) Send(ctx context.Context, msg *model.BotMessage) error {
	select {
	case <-p.stopping:
		return domain.ErrBusClosed
	default:
	}
	select {
	case p.queue <- msg:
		return nil
	case <-p.stopping:
		return domain.ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run publishes queued messages until ctx is done, then flushes what is left.
// A message whose retries were cut short by ctx is flushed first.
func (p *Producer) Run(ctx context.Context) {
	defer close(p.stopped)
	for {
		select {
		case msg := <-p.queue:
			if !p.publish(ctx, msg) {
				close(p.stopping)
				p.flush(ctx, msg)
				return
			}
		case <-ctx.Done():
			close(p.stopping)
			p.flush(ctx, nil)
			return
		}
	}
}

// Done is closed after Run has flushed and returned.
func (p *Producer) Done() <-chan struct{} { return p.stopped }

func (p *Producer) flush(ctx context.Context, pending *model.BotMessage) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.flushTimeout)
	defer cancel()
	if pending != nil {
		p.publish(fctx, pending)
	}
	for {
		select {
		case msg := <-p.queue:
			p.publish(fctx, msg)
		default:
			return
		}
	}
}

// publish tries msg up to the configured number of times with a doubling
// delay. It reports false only when ctx ended while a retry was pending.
func (p *Producer) publish(ctx context.Context, msg *model.BotMessage) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		p.log.Error().Err(err).Str("chat_id", msg.ChatID()).Msg("failed to encode message")
		return true
	}
	delay := p.retryDelay
	for attempt := 1; ; attempt++ {
		err = p.pub.Publish(ctx, p.topic, b)
		if err == nil {
			p.log.Debug().Str("chat_id", msg.ChatID()).Str("status", msg.Status).Int("attempt", attempt).Msg("message published")
			return true
		}
		metrics.IncPublishError(p.topic)
		if attempt >= p.attempts {
			break
		}
		p.log.Warn().Err(err).Str("chat_id", msg.ChatID()).Int("attempt", attempt).Dur("retry_in", delay).Msg("publish failed, retrying")
		if !sleep(ctx, delay) {
			p.log.Warn().Err(err).Str("chat_id", msg.ChatID()).Msg("publish retry interrupted")
			return false
		}
		delay *= 2
	}
	p.log.Error().Err(err).Str("chat_id", msg.ChatID()).Str("correlation_id", msg.CorrelationID).Int("attempts", p.attempts).Msg("dropping message after failed publish")
	return true
}

// String is used in logs.
func (p *Producer) String() string { return fmt.Sprintf("producer(%s)", p.topic) }

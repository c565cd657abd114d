package session

import (
	"context"
	"sync"

	"build-notifier/internal/domain/model"
)

// Mailbox is an unbounded FIFO of inbound messages with a single consumer.
type Mailbox struct {
	mu     sync.Mutex
	items  []*model.BotMessage
	closed bool
	notify chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Enqueue appends msg and never blocks. It reports false once the mailbox
// is closed.
func (m *Mailbox) Enqueue(msg *model.BotMessage) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, msg)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Close refuses further messages and returns the ones never received.
// Closing twice returns nil.
func (m *Mailbox) Close() []*model.BotMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	left := m.items
	m.items = nil
	return left
}

// Receive blocks until a message is queued or ctx is done. On cancellation it
// returns the context cause.
func (m *Mailbox) Receive(ctx context.Context) (*model.BotMessage, error) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			msg := m.items[0]
			m.items[0] = nil
			m.items = m.items[1:]
			m.mu.Unlock()
			return msg, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-m.notify:
		}
	}
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

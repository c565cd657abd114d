// File: internal/domain/ports/adapter/bus.go
package adapter

import "context"

// Message is one record read from the bus.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

type Publisher interface {
	Publish(ctx context.Context, topic string, value []byte) error
}

// Consumer yields messages from the topics it was opened on.
type Consumer interface {
	// Next blocks until a message arrives or ctx is done.
	Next(ctx context.Context) (Message, error)
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (Consumer, error)
}

// Bus is a transport that can both publish and subscribe.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

package adapter

import "context"

// Deduper claims an event key once. Claim reports false when the key was seen before.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
}

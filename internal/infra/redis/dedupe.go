package redis

import (
	"context"
	"time"

	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/infra/metrics"
)

var _ adapter.Deduper = (*Dedupe)(nil)

// Dedupe claims event ids with SET NX so that replicas sharing a Redis see each id once.
type Dedupe struct {
	client *Client
	prefix string
	ttl    time.Duration
}

func NewDedupe(c *Client, ttl time.Duration) *Dedupe {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Dedupe{client: c, prefix: "build_notifier:seen:", ttl: ttl}
}

func (d *Dedupe) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.cli.SetNX(ctx, d.prefix+key, 1, d.ttl).Result()
	switch {
	case err != nil:
		metrics.IncDedupeRequest("redis", "error")
		return false, err
	case ok:
		metrics.IncDedupeRequest("redis", "new")
	default:
		metrics.IncDedupeRequest("redis", "duplicate")
	}
	return ok, nil
}

package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

type Options struct {
	URL      string
	Password string
	DB       int
}

// Client wraps the go-redis client shared by the dedupe store and the stream bus.
type Client struct {
	cli *redis.Client
}

// NewClient accepts either a host:port address or a redis:// URL and pings the server.
func NewClient(ctx context.Context, o Options) (*Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(o.URL, "redis://") || strings.HasPrefix(o.URL, "rediss://") {
		parsed, err := redis.ParseURL(o.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: o.URL}
	}
	if o.Password != "" {
		opts.Password = o.Password
	}
	if o.DB != 0 {
		opts.DB = o.DB
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: c}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *Client) Close() error { return c.cli.Close() }

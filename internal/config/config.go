// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"build-notifier/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type ServiceConfig struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Commands    []model.ServiceCommand `yaml:"commands"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type StreamConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Group    string        `yaml:"group"`
	Block    time.Duration `yaml:"block"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type TopicsConfig struct {
	Webhook string `yaml:"webhook"`
}

type BusConfig struct {
	Driver string       `yaml:"driver"` // kafka | redis | nats | memory (tests only)
	Kafka  KafkaConfig  `yaml:"kafka"`
	Redis  StreamConfig `yaml:"redis"`
	NATS   NATSConfig   `yaml:"nats"`
	Topics TopicsConfig `yaml:"topics"`
}

type RegistrationConfig struct {
	RequestTopic   string        `yaml:"request_topic"`
	ResponseTopic  string        `yaml:"response_topic"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
}

type SessionConfig struct {
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
	WatchdogInterval  time.Duration `yaml:"watchdog_interval"`
	PageSize          int           `yaml:"page_size"`
}

type RouterConfig struct {
	ConsumeBackoff time.Duration `yaml:"consume_backoff"`
	ErrorDelay     time.Duration `yaml:"error_delay"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`

	PublishAttempts   int           `yaml:"publish_attempts"`
	PublishRetryDelay time.Duration `yaml:"publish_retry_delay"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres | memory
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

type RedisConfig struct {
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	DedupeTTL time.Duration `yaml:"dedupe_ttl"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type UsernameAPIConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type BotConfig struct {
	Language string `yaml:"language"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type Config struct {
	Service      ServiceConfig      `yaml:"service"`
	Bus          BusConfig          `yaml:"bus"`
	Registration RegistrationConfig `yaml:"registration"`
	Session      SessionConfig      `yaml:"session"`
	Router       RouterConfig       `yaml:"router"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	HTTP         HTTPConfig         `yaml:"http"`
	UsernameAPI  UsernameAPIConfig  `yaml:"username_api"`
	Bot          BotConfig          `yaml:"bot"`
	Log          LogConfig          `yaml:"log"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. ${VAR} references are expanded from
// the environment before parsing.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(b))))
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes raw YAML, applies defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Description == "" {
		c.Service.Description = "Notifies subscribed chats about failed Bamboo builds"
	}
	if len(c.Service.Commands) == 0 {
		c.Service.Commands = DefaultCommands()
	}
	if c.Bus.Driver == "" {
		c.Bus.Driver = "kafka"
	}
	if c.Bus.Kafka.GroupID == "" {
		c.Bus.Kafka.GroupID = c.Service.Name
	}
	if c.Bus.Redis.Group == "" {
		c.Bus.Redis.Group = c.Service.Name
	}
	c.Bus.Redis.Block = orDuration(c.Bus.Redis.Block, 5*time.Second)
	if c.Bus.Topics.Webhook == "" {
		c.Bus.Topics.Webhook = "bamboo-webhook"
	}

	if c.Registration.RequestTopic == "" {
		c.Registration.RequestTopic = "service-info-request"
	}
	if c.Registration.ResponseTopic == "" {
		c.Registration.ResponseTopic = "service-info-response"
	}
	c.Registration.AttemptTimeout = orDuration(c.Registration.AttemptTimeout, 30*time.Second)
	c.Registration.RetryDelay = orDuration(c.Registration.RetryDelay, time.Second)

	c.Session.InactivityTimeout = orDuration(c.Session.InactivityTimeout, 2*time.Minute)
	if c.Session.WatchdogInterval <= 0 {
		c.Session.WatchdogInterval = min(time.Minute, c.Session.InactivityTimeout)
	}
	if c.Session.PageSize <= 0 {
		c.Session.PageSize = model.DefaultPageSize
	}

	c.Router.ConsumeBackoff = orDuration(c.Router.ConsumeBackoff, time.Second)
	c.Router.ErrorDelay = orDuration(c.Router.ErrorDelay, time.Second)
	if c.Router.Workers <= 0 {
		c.Router.Workers = 4
	}
	if c.Router.PublishAttempts <= 0 {
		c.Router.PublishAttempts = 3
	}
	c.Router.PublishRetryDelay = orDuration(c.Router.PublishRetryDelay, 200*time.Millisecond)
	if c.Router.QueueSize <= 0 {
		c.Router.QueueSize = 128
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "build-notifier.db"
	}
	c.Redis.DedupeTTL = orDuration(c.Redis.DedupeTTL, 24*time.Hour)

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	c.UsernameAPI.Timeout = orDuration(c.UsernameAPI.Timeout, 5*time.Second)
	if c.Bot.Language == "" {
		c.Bot.Language = "en"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Service.Name) == "" {
		return errors.New("service.name is required")
	}
	switch c.Bus.Driver {
	case "kafka":
		if len(c.Bus.Kafka.Brokers) == 0 {
			return errors.New("bus.kafka.brokers is required for the kafka driver")
		}
	case "redis":
		if c.Bus.Redis.URL == "" {
			return errors.New("bus.redis.url is required for the redis driver")
		}
	case "nats":
		if c.Bus.NATS.URL == "" {
			return errors.New("bus.nats.url is required for the nats driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown bus.driver %q", c.Bus.Driver)
	}
	switch c.Database.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Session.WatchdogInterval > c.Session.InactivityTimeout {
		return errors.New("session.watchdog_interval must not exceed session.inactivity_timeout")
	}
	return nil
}

// DefaultCommands is the command set advertised when the config has none.
func DefaultCommands() []model.ServiceCommand {
	cmd := func(name, desc string) model.ServiceCommand {
		return model.ServiceCommand{Name: name, Description: desc, Action: name, Right: "user", Availability: "all"}
	}
	return []model.ServiceCommand{
		cmd("/subfailedbuildnotifier", "Subscribe to failed build notifications for the given plans"),
		cmd("/unsubfailedbuildnotifier", "Unsubscribe from the given plans or from all"),
		cmd("/myfailedbuildnotifiersubs", "List your failed build subscriptions"),
		cmd("/subfailedbuildnotifierwithsession", "Subscribe to a plan step by step"),
		cmd("/unsubfailedbuildnotifierwithsession", "Browse and remove your subscriptions"),
	}
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

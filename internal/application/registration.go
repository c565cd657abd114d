package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"build-notifier/internal/domain"
	"build-notifier/internal/domain/model"
	"build-notifier/internal/domain/ports/adapter"
	"build-notifier/internal/infra/metrics"
)

type RegistrationConfig struct {
	RequestTopic   string
	ResponseTopic  string
	AttemptTimeout time.Duration
	RetryDelay     time.Duration
}

// Registrar announces the service to the command manager and waits for the
// topics it is assigned.
type Registrar struct {
	bus  adapter.Bus
	desc model.ServiceDescription
	cfg  RegistrationConfig
	log  zerolog.Logger
}

func NewRegistrar(bus adapter.Bus, desc model.ServiceDescription, cfg RegistrationConfig, logger *zerolog.Logger) *Registrar {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Registrar{
		bus:  bus,
		desc: desc,
		cfg:  cfg,
		log:  logger.With().Str("component", "registration").Str("service", desc.Name).Logger(),
	}
}

// Register retries until the command manager accepts this service or ctx is
// cancelled, in which case the error wraps domain.ErrRegistrationCancelled.
func (r *Registrar) Register(ctx context.Context) (*model.RegistrationInfo, error) {
	payload, err := json.Marshal(r.desc)
	if err != nil {
		return nil, fmt.Errorf("encode service description: %w", err)
	}

	consumer, err := r.subscribe(ctx)
	if err != nil {
		return nil, err
	}
	defer consumer.Close()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		log := r.log.With().Int("attempt", attempt).Logger()

		if err := r.bus.Publish(ctx, r.cfg.RequestTopic, payload); err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			metrics.IncRegistrationAttempt("publish_error")
			log.Error().Err(err).Str("topic", r.cfg.RequestTopic).Msg("failed to publish registration request")
			if !sleep(ctx, r.cfg.RetryDelay) {
				return nil, cancelled(ctx.Err())
			}
			continue
		}
		log.Info().Str("topic", r.cfg.RequestTopic).Msg("registration request published")

		info, err := r.await(ctx, consumer)
		if err == nil {
			metrics.IncRegistrationAttempt("accepted")
			log.Info().
				Str("consume_topic", info.ConsumeTopic).
				Str("produce_topic", info.ProduceTopic).
				Str("message", info.Message).
				Msg("service registered")
			return info, nil
		}
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.IncRegistrationAttempt("timeout")
			log.Warn().Dur("timeout", r.cfg.AttemptTimeout).Msg("no registration response, retrying")
			continue
		}
		log.Error().Err(err).Msg("registration response consume failed")
		if !sleep(ctx, r.cfg.RetryDelay) {
			return nil, cancelled(ctx.Err())
		}
	}
}

func (r *Registrar) subscribe(ctx context.Context) (adapter.Consumer, error) {
	for {
		consumer, err := r.bus.Subscribe(ctx, r.cfg.ResponseTopic)
		if err == nil {
			return consumer, nil
		}
		r.log.Error().Err(err).Str("topic", r.cfg.ResponseTopic).Msg("failed to subscribe to registration responses")
		if !sleep(ctx, r.cfg.RetryDelay) {
			return nil, cancelled(ctx.Err())
		}
	}
}

// await reads responses until one is addressed to this service or the attempt times out.
func (r *Registrar) await(ctx context.Context, consumer adapter.Consumer) (*model.RegistrationInfo, error) {
	actx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()
	for {
		m, err := consumer.Next(actx)
		if err != nil {
			return nil, err
		}
		var info model.RegistrationInfo
		if err := json.Unmarshal(m.Value, &info); err != nil {
			metrics.IncRegistrationAttempt("malformed")
			r.log.Warn().Err(err).Msg("malformed registration response")
			continue
		}
		if info.ServiceName != r.desc.Name {
			metrics.IncRegistrationAttempt("foreign")
			r.log.Debug().Str("target", info.ServiceName).Msg("registration response for another service")
			continue
		}
		if info.ConsumeTopic == "" || info.ProduceTopic == "" {
			metrics.IncRegistrationAttempt("malformed")
			r.log.Warn().Str("message", info.Message).Msg("registration response without topics")
			continue
		}
		return &info, nil
	}
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrRegistrationCancelled, err)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

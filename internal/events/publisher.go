package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"veoqueue/internal/domain"
	"veoqueue/internal/infra"
)

// Publisher fans job lifecycle events out to an external broker.
type Publisher interface {
	Publish(ctx context.Context, event domain.JobEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, domain.JobEvent) error {
	return nil
}

func (Noop) Close() error {
	return nil
}

// New builds the publisher selected by EVENTS_BACKEND.
func New(cfg *infra.Config) (Publisher, error) {
	switch cfg.EventsBackend {
	case "", infra.EventsNone:
		return Noop{}, nil
	case infra.EventsNATS:
		return NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
	case infra.EventsRabbitMQ:
		return NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	case infra.EventsRedis:
		return NewRedisPublisher(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
	default:
		return nil, fmt.Errorf("events: unsupported backend %q", cfg.EventsBackend)
	}
}

// topic maps "job.completed" to "<base>.completed".
func topic(base string, t domain.JobEventType) string {
	return base + "." + strings.TrimPrefix(string(t), "job.")
}

func encode(event domain.JobEvent) ([]byte, error) {
	return json.Marshal(event)
}

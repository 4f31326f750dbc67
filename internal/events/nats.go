package events

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"veoqueue/internal/domain"
)

// NATSPublisher publishes each event on <subject>.<kind>.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("veoqueue"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event domain.JobEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := encode(event)
	if err != nil {
		return err
	}
	return p.nc.Publish(topic(p.subject, event.Type), b)
}

func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}

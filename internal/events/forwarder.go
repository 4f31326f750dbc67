package events

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"veoqueue/internal/domain"
	"veoqueue/internal/infra"
)

const defaultQueueSize = 256

// Forwarder decouples the job store from broker latency: Observe enqueues
// without blocking and a single goroutine publishes in order. Events are
// dropped, with a warning, when the queue is full.
type Forwarder struct {
	pub     Publisher
	logger  *infra.Logger
	timeout time.Duration

	queue  chan domain.JobEvent
	once   sync.Once
	closed chan struct{}
	done   chan struct{}
}

// NewForwarder starts the publishing goroutine.
func NewForwarder(pub Publisher, logger *infra.Logger, queueSize int) *Forwarder {
	if pub == nil {
		pub = Noop{}
	}
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	f := &Forwarder{
		pub:     pub,
		logger:  logger,
		timeout: 5 * time.Second,
		queue:   make(chan domain.JobEvent, queueSize),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go f.loop()
	return f
}

// Observe matches jobstore.Observer.
func (f *Forwarder) Observe(event domain.JobEvent) {
	select {
	case <-f.closed:
		return
	default:
	}
	select {
	case f.queue <- event:
	default:
		f.logger.Warn().Str("job_id", event.JobID).Str("event", string(event.Type)).Msg("events: queue full; event dropped")
	}
}

func (f *Forwarder) loop() {
	defer close(f.done)
	for {
		select {
		case event := <-f.queue:
			f.publish(event)
		case <-f.closed:
			for {
				select {
				case event := <-f.queue:
					f.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) publish(event domain.JobEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	if err := f.pub.Publish(ctx, event); err != nil {
		f.logger.Error().Err(err).Str("job_id", event.JobID).Str("event", string(event.Type)).Msg("events: publish failed")
	}
}

// Close flushes queued events and closes the publisher.
func (f *Forwarder) Close() error {
	f.once.Do(func() { close(f.closed) })
	<-f.done
	return f.pub.Close()
}

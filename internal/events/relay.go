package events

import (
	"context"
	"fmt"
	"io"
	"time"

	"woodslot/internal/metrics"
	"woodslot/internal/worker"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	defaultRelayBuffer = 256
	publishTimeout     = 5 * time.Second
)

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (amqpChannel, io.Closer, error)

func dialAMQP(url string) (amqpChannel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	return ch, conn, nil
}

// Relay forwards bus events to a durable RabbitMQ queue. Handle never blocks
// the publisher: events are buffered and dropped when the buffer is full.
type Relay struct {
	url    string
	queue  string
	retry  worker.RetryPolicy
	buffer chan *Event
	dial   dialFunc
	logger *zerolog.Logger

	pending  *Event
	attempts int
}

func NewRelay(url, queue string, retry worker.RetryPolicy, logger *zerolog.Logger) *Relay {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	return &Relay{
		url:    url,
		queue:  queue,
		retry:  retry.WithDefaults(),
		buffer: make(chan *Event, defaultRelayBuffer),
		dial:   dialAMQP,
		logger: logger,
	}
}

// Handle is an EventHandler suitable for EventBus.SubscribeAll.
func (r *Relay) Handle(event *Event) error {
	select {
	case r.buffer <- event:
		return nil
	default:
		metrics.IncEventRelayed("dropped")
		r.logger.Warn().Str("type", event.Type).Msg("event relay buffer full, dropping event")
		return fmt.Errorf("relay buffer full")
	}
}

// Run connects to the broker and publishes buffered events until ctx ends,
// reconnecting with backoff when the connection fails.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info().Str("queue", r.queue).Msg("event relay started")

	dialAttempt := 0
	for ctx.Err() == nil {
		ch, conn, err := r.dial(r.url)
		if err != nil {
			dialAttempt++
			delay := r.retry.NextDelay(dialAttempt)
			r.logger.Warn().Err(err).Dur("retry_in", delay).Msg("failed to dial broker")
			if r.retry.Wait(ctx, dialAttempt) != nil {
				break
			}
			continue
		}
		dialAttempt = 0

		err = r.pump(ctx, ch)
		_ = ch.Close()
		_ = conn.Close()
		if err != nil {
			r.logger.Warn().Err(err).Msg("event relay connection lost, reconnecting")
			if r.retry.Wait(ctx, r.attempts) != nil {
				break
			}
		}
	}

	r.logger.Info().Msg("event relay stopped")
}

func (r *Relay) pump(ctx context.Context, ch amqpChannel) error {
	if _, err := ch.QueueDeclare(r.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	for {
		if r.pending == nil {
			select {
			case <-ctx.Done():
				return nil
			case r.pending = <-r.buffer:
				r.attempts = 0
			}
		}

		if err := r.publish(ctx, ch, r.pending); err != nil {
			r.attempts++
			if r.retry.Exhausted(r.attempts) {
				metrics.IncEventRelayed("failed")
				r.logger.Error().Err(err).Str("type", r.pending.Type).Msg("giving up on event")
				r.pending = nil
			}
			return err
		}

		metrics.IncEventRelayed("published")
		r.pending = nil
	}
}

func (r *Relay) publish(ctx context.Context, ch amqpChannel, event *Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return ch.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         event.Type,
		Timestamp:    event.CreatedAt.UTC(),
		Body:         event.Payload,
	})
}

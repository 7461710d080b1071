package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"djbook/internal/core/domain"
	"djbook/pkg/circuitbreaker"
	"djbook/pkg/clock"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	EventUserViolation EventType = "user.violation"
	EventBookingStatus EventType = "booking.status"
)

const channelPrefix = "djbook:events:"

// Channel returns the pub/sub channel an event type is published on.
func Channel(t EventType) string {
	return channelPrefix + string(t)
}

// Event is the envelope sent between instances.
type Event struct {
	Type       EventType        `json:"type"`
	InstanceID string           `json:"instance_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Username   string           `json:"username,omitempty"`
	BookingID  domain.BookingID `json:"booking_id,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.Type)
	}
	return json.Unmarshal(e.Payload, v)
}

// EventBus publishes committed ledger and booking changes over Redis
// pub/sub so other instances can react (drop caches, log, alert). While
// redis keeps failing, publishes fail fast with circuitbreaker.ErrOpen.
type EventBus struct {
	client     redis.UniversalClient
	instanceID string
	clock      clock.Clock
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.SugaredLogger
}

func NewEventBus(client redis.UniversalClient, instanceID string, clk clock.Clock, logger *zap.SugaredLogger) *EventBus {
	if clk == nil {
		clk = clock.Real()
	}
	breaker := circuitbreaker.New("event-bus", circuitbreaker.DefaultConfig(), clk)
	breaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Warnw("circuit breaker state changed", "breaker", name, "from", from, "to", to)
	})
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		clock:      clk,
		breaker:    breaker,
		logger:     logger,
	}
}

func (eb *EventBus) InstanceID() string {
	return eb.instanceID
}

// Publish stamps and sends event on its type's channel.
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = eb.clock.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = eb.breaker.Execute(ctx, func(ctx context.Context) error {
		return eb.client.Publish(ctx, Channel(event.Type), data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"username", event.Username,
		"booking_id", event.BookingID,
	)
	return nil
}

func (eb *EventBus) PublishViolation(ctx context.Context, outcome *domain.EnforcementOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	return eb.Publish(ctx, &Event{
		Type:     EventUserViolation,
		Username: outcome.Username,
		Payload:  payload,
	})
}

// PublishBookingStatus sends the booking without its streaming link; the
// link never leaves the store unredacted.
func (eb *EventBus) PublishBookingStatus(ctx context.Context, booking *domain.Booking) error {
	b := *booking
	b.StreamingLink = ""
	payload, err := json.Marshal(&b)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}
	return eb.Publish(ctx, &Event{
		Type:      EventBookingStatus,
		Username:  booking.DJUsername,
		BookingID: booking.ID,
		Payload:   payload,
	})
}

// Subscribe blocks delivering events from other instances to handler until
// ctx is done. Events published by this instance are skipped.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error, types ...EventType) error {
	if len(types) == 0 {
		types = []EventType{EventUserViolation, EventBookingStatus}
	}
	channels := make([]string, len(types))
	for i, t := range types {
		channels[i] = Channel(t)
	}

	pubsub := eb.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %v: %w", channels, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"channel", msg.Channel,
				)
				continue
			}

			if event.InstanceID == eb.instanceID {
				continue
			}

			if err := handler(&event); err != nil {
				eb.logger.Warnw("error handling event",
					"type", event.Type,
					"error", err,
				)
			}
		}
	}
}

// LogPublisher stands in for the bus on single-instance deployments.
type LogPublisher struct {
	logger *zap.SugaredLogger
}

func NewLogPublisher(logger *zap.SugaredLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishViolation(_ context.Context, outcome *domain.EnforcementOutcome) error {
	p.logger.Debugw("violation event",
		"username", outcome.Username,
		"decision", outcome.Decision,
		"strikes", outcome.BanStrikeCount,
	)
	return nil
}

func (p *LogPublisher) PublishBookingStatus(_ context.Context, booking *domain.Booking) error {
	p.logger.Debugw("booking status event",
		"booking_id", booking.ID,
		"status", booking.Status,
	)
	return nil
}

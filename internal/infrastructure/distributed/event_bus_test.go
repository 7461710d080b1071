package distributed

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"djbook/internal/core/domain"
	"djbook/pkg/circuitbreaker"
	"djbook/pkg/clock"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Runs against a real redis when DJBOOK_TEST_REDIS_ADDR is set.
func testClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	addr := os.Getenv("DJBOOK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DJBOOK_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "djbook:events:user.violation", Channel(EventUserViolation))
	assert.Equal(t, "djbook:events:booking.status", Channel(EventBookingStatus))
}

func TestEvent_Decode(t *testing.T) {
	payload, err := json.Marshal(&domain.EnforcementOutcome{Username: "dj_alex", Decision: domain.DecisionWarn, BanStrikeCount: 1})
	require.NoError(t, err)

	ev := &Event{Type: EventUserViolation, Payload: payload}
	var out domain.EnforcementOutcome
	require.NoError(t, ev.Decode(&out))
	assert.Equal(t, domain.DecisionWarn, out.Decision)

	assert.Error(t, (&Event{Type: EventBookingStatus}).Decode(&out))
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(zaptest.NewLogger(t).Sugar())
	assert.NoError(t, p.PublishViolation(context.Background(), &domain.EnforcementOutcome{Username: "dj_alex"}))
	assert.NoError(t, p.PublishBookingStatus(context.Background(), &domain.Booking{ID: "b-1"}))
}

func TestEventBus_DeliversToOtherInstances(t *testing.T) {
	client := testClient(t)
	log := zaptest.NewLogger(t).Sugar()
	now := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

	sender := NewEventBus(client, "instance-a", clock.NewFake(now), log)
	receiver := NewEventBus(client, "instance-b", nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *Event, 4)
	go func() {
		_ = receiver.Subscribe(ctx, func(e *Event) error {
			got <- e
			return nil
		})
	}()
	// own events are skipped
	go func() {
		_ = sender.Subscribe(ctx, func(e *Event) error {
			t.Errorf("instance-a received its own event %s", e.Type)
			return nil
		})
	}()
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, sender.PublishBookingStatus(ctx, &domain.Booking{
		ID:            "b-1",
		DJUsername:    "dj_alex",
		StreamingLink: "https://stream.example/secret",
		Status:        domain.BookingStatusConfirmed,
	}))

	select {
	case e := <-got:
		assert.Equal(t, EventBookingStatus, e.Type)
		assert.Equal(t, "instance-a", e.InstanceID)
		assert.Equal(t, now, e.Timestamp)
		assert.Equal(t, domain.BookingID("b-1"), e.BookingID)

		var b domain.Booking
		require.NoError(t, e.Decode(&b))
		assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
		assert.Empty(t, b.StreamingLink)
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

func TestInstanceRegistry_RegisterListUnregister(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	log := zaptest.NewLogger(t).Sugar()
	started := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

	a := NewInstanceRegistry(client, InstanceInfo{ID: "test-a", Address: ":8080", Backend: "redis", StartedAt: started}, time.Minute, clock.NewFake(started), log)
	b := NewInstanceRegistry(client, InstanceInfo{ID: "test-b", Address: ":8081", Backend: "redis", StartedAt: started}, time.Minute, clock.NewFake(started), log)
	t.Cleanup(func() {
		_ = a.Unregister(ctx)
		_ = b.Unregister(ctx)
	})

	require.NoError(t, a.Register(ctx))
	require.NoError(t, b.Register(ctx))

	list, err := a.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, info := range list {
		ids = append(ids, info.ID)
	}
	assert.Contains(t, ids, "test-a")
	assert.Contains(t, ids, "test-b")

	require.NoError(t, b.Unregister(ctx))
	list, err = a.List(ctx)
	require.NoError(t, err)
	for _, info := range list {
		assert.NotEqual(t, "test-b", info.ID)
	}
}

func TestEventBus_FailsFastWhileRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	bus := NewEventBus(client, "instance-a", nil, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()
	outcome := &domain.EnforcementOutcome{Username: "dj_alex", Decision: domain.DecisionWarn}

	for i := 0; i < circuitbreaker.DefaultConfig().FailureThreshold; i++ {
		err := bus.PublishViolation(ctx, outcome)
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}
	assert.ErrorIs(t, bus.PublishViolation(ctx, outcome), circuitbreaker.ErrOpen)
}

package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"descansos/internal/models"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()

	id1, ch1 := bus.Subscribe(4)
	id2, ch2 := bus.Subscribe(4)
	defer bus.Unsubscribe(id1)
	defer bus.Unsubscribe(id2)

	ev := Change{Kind: KindCreated, Reservation: models.Reservation{ID: 7}}
	bus.Publish(ev)

	for _, ch := range []<-chan Change{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, KindCreated, got.Kind)
			assert.Equal(t, int64(7), got.Reservation.ID)
			assert.False(t, got.At.IsZero(), "publish stamps the event time")
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestBusSkipsFullSubscriber(t *testing.T) {
	bus := NewBus()

	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	bus.Publish(Change{Kind: KindCreated, Reservation: models.Reservation{ID: 1}})
	// Buffer is full; this one is dropped instead of blocking.
	bus.Publish(Change{Kind: KindCreated, Reservation: models.Reservation{ID: 2}})

	got := <-ch
	assert.Equal(t, int64(1), got.Reservation.ID)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected second event %+v", extra)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()

	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)

	// Double unsubscribe is a no-op.
	bus.Unsubscribe(id)
}

func TestFeedWithoutRedisDeliversLocally(t *testing.T) {
	feed := NewFeed(nil, zerolog.Nop())

	id, ch := feed.Subscribe(4)
	defer feed.Unsubscribe(id)

	feed.Publish(context.Background(), Change{Kind: KindDeleted, Reservation: models.Reservation{ID: 3}})

	select {
	case got := <-ch:
		assert.Equal(t, KindDeleted, got.Kind)
		assert.Equal(t, int64(3), got.Reservation.ID)
	case <-time.After(time.Second):
		t.Fatal("local delivery failed without redis")
	}
}

func TestFeedRunReturnsWithoutRedis(t *testing.T) {
	feed := NewFeed(nil, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		feed.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run must return immediately when redis is absent")
	}
}

func TestSubscribeDefaultBuffer(t *testing.T) {
	bus := NewBus()
	id, ch := bus.Subscribe(0)
	defer bus.Unsubscribe(id)

	require.Equal(t, 16, cap(ch))
}

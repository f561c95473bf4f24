package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channel is the Redis pub/sub channel carrying reservation changes.
const Channel = "descansos:changes"

// Feed publishes reservation changes and, when Redis is configured,
// mirrors them across service instances. Without Redis it degrades to
// the in-process bus alone.
type Feed struct {
	bus    *Bus
	rdb    *redis.Client
	logger zerolog.Logger
}

// NewFeed creates a feed over the local bus; rdb may be nil.
func NewFeed(rdb *redis.Client, logger zerolog.Logger) *Feed {
	return &Feed{
		bus:    NewBus(),
		rdb:    rdb,
		logger: logger.With().Str("component", "feed").Logger(),
	}
}

// Subscribe attaches a local subscriber to the feed.
func (f *Feed) Subscribe(buffer int) (int64, <-chan Change) {
	return f.bus.Subscribe(buffer)
}

// Unsubscribe detaches a local subscriber.
func (f *Feed) Unsubscribe(id int64) {
	f.bus.Unsubscribe(id)
}

// Publish fans the change out. With Redis the local delivery happens via
// the subscription loop so every instance, including this one, sees the
// same stream; a failed publish falls back to local delivery.
func (f *Feed) Publish(ctx context.Context, ev Change) {
	if f.rdb == nil {
		f.bus.Publish(ev)
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		f.logger.Error().Err(err).Msg("marshal change event")
		f.bus.Publish(ev)
		return
	}
	if err := f.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		f.logger.Error().Err(err).Msg("redis publish failed, delivering locally")
		f.bus.Publish(ev)
	}
}

// Run consumes the Redis channel and republishes into the local bus.
// It blocks until ctx is cancelled; a nil Redis client returns at once.
func (f *Feed) Run(ctx context.Context) {
	if f.rdb == nil {
		return
	}

	sub := f.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	ch := sub.Channel()
	f.logger.Info().Str("channel", Channel).Msg("change feed subscribed")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Change
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.logger.Error().Err(err).Msg("decode change event")
				continue
			}
			f.bus.Publish(ev)
		}
	}
}

package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const DefaultChannelPrefix = "wheelroom:room:"

// RedisPublisher publishes room events on one Redis channel per room so
// that every instance running a Relay delivers them to its local members.
type RedisPublisher struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisPublisher(rdb *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{rdb: rdb, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, roomID string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}
	if err := p.rdb.Publish(ctx, p.prefix+roomID, data).Err(); err != nil {
		return fmt.Errorf("publishing %s to redis: %w", ev.Type, err)
	}
	return nil
}

// Relay forwards every room channel under prefix into broker until ctx is
// done. A single subscription connection keeps per-channel order intact.
func Relay(ctx context.Context, rdb *redis.Client, prefix string, broker *Broker, logger *slog.Logger) error {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}

	pubsub := rdb.PSubscribe(ctx, prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s*: %w", prefix, err)
	}
	logger.Info("relaying room events from redis", "pattern", prefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			roomID, ok := roomFromChannel(prefix, msg.Channel)
			if !ok {
				continue
			}
			n := broker.Deliver(roomID, []byte(msg.Payload))
			logger.Debug("relayed room event", "room_id", roomID, "members", n)
		}
	}
}

func roomFromChannel(prefix, channel string) (string, bool) {
	roomID, ok := strings.CutPrefix(channel, prefix)
	return roomID, ok && roomID != ""
}

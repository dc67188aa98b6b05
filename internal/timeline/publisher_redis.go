package timeline

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis Stream the external audit consumer reads.
const DefaultStream = "clearvet:timeline"

// RedisPublisher fans timeline events out to a Redis Stream for the external
// audit collaborator. Delivery is at-most-once from the core's point of view;
// the persisted store entry remains authoritative.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisPublisher constructs a stream publisher. An empty stream name falls
// back to DefaultStream.
func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{client: client, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	values := map[string]any{
		"event_id":    event.ID.String(),
		"order_id":    event.OrderID.String(),
		"entity_type": event.EntityType,
		"entity_id":   event.EntityID.String(),
		"action":      event.Action,
		"actor":       event.Actor,
		"timestamp":   event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	for k, v := range event.Detail {
		values["detail_"+k] = v
	}
	if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: p.stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd timeline event: %w", err)
	}
	return nil
}

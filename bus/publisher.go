package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher appends JSON-encoded records to Redis Streams. Unlike the
// teacher's RedisClient wrapper it is not nil-safe: KASS's bus is a required
// collaborator (not an optional cache), and Publisher does no nil check on
// its client.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish appends one record to a stream, trimming approximately to
// DefaultMaxLen. Returns the new entry ID.
func (p *Publisher) Publish(ctx context.Context, stream string, v interface{}) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("bus: marshal payload for %s: %w", stream, err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: DefaultMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": body},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("bus: xadd %s: %w", stream, err)
	}
	return id, nil
}

// PublishFanout publishes v to ownStream and then, last, to StreamSignalsAll
// — spec §7's "publishing to all last" rule, which makes duplicate
// redelivery on retry benign because the Aggregator dedupes by signal_id.
// If the own-stream publish fails, the fan-in publish is skipped entirely so
// a half-published signal never reaches the Aggregator alone.
func (p *Publisher) PublishFanout(ctx context.Context, ownStream string, v interface{}) error {
	if _, err := p.Publish(ctx, ownStream, v); err != nil {
		return err
	}
	if _, err := p.Publish(ctx, StreamSignalsAll, v); err != nil {
		return fmt.Errorf("bus: fan-in publish after own-stream publish to %s: %w", ownStream, err)
	}
	return nil
}

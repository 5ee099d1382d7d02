package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Consumer reads one or more streams through a durable consumer group,
// giving multiple processor instances shared, at-least-once delivery (spec
// §4.1, §6.1). The consumer name is the processor-instance-id per spec.
type Consumer struct {
	client   *redis.Client
	group    string
	name     string
	streams  []string
}

// NewConsumer creates a reader bound to group/name over the given streams.
// Each stream's consumer group is created (MKSTREAM) if absent, starting
// from "$" (only new entries) — a fresh consumer that needs history relies
// on the broker's replay window per spec §3's ownership rule.
func NewConsumer(ctx context.Context, client *redis.Client, group, name string, streams ...string) (*Consumer, error) {
	c := &Consumer{client: client, group: group, name: name, streams: streams}
	for _, s := range streams {
		err := client.XGroupCreateMkStream(ctx, s, group, "$").Err()
		if err != nil && !isBusyGroupErr(err) {
			return nil, fmt.Errorf("bus: create group %s on %s: %w", group, s, err)
		}
	}
	return c, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

// Read blocks up to block for up to count new messages across all of the
// consumer's streams. An empty, nil-error result means the timeout elapsed
// with nothing delivered — the caller's batch loop should treat that as a
// normal idle tick, not an error (spec §5 "no user-facing call may block
// longer than the batch timeout").
func (c *Consumer) Read(ctx context.Context, count int64, block time.Duration) ([]Message, error) {
	streamsArg := make([]string, 0, len(c.streams)*2)
	for _, s := range c.streams {
		streamsArg = append(streamsArg, s)
	}
	for range c.streams {
		streamsArg = append(streamsArg, ">")
	}

	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  streamsArg,
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, classifyRedisErr(err)
	}

	now := time.Now()
	var out []Message
	for _, stream := range res {
		for _, entry := range stream.Messages {
			raw, _ := entry.Values["data"].(string)
			out = append(out, Message{
				Stream:        stream.Stream,
				ID:            entry.ID,
				Payload:       []byte(raw),
				DeliveryCount: c.deliveryCount(ctx, stream.Stream, entry.ID),
				ReceivedAt:    now,
			})
		}
	}
	return out, nil
}

// Ack acknowledges successful processing of a message — it must only be
// called after the event has been fully applied, per spec §4.1's
// ack-after-success rule.
func (c *Consumer) Ack(ctx context.Context, stream, id string) error {
	if err := c.client.XAck(ctx, stream, c.group, id).Err(); err != nil {
		return fmt.Errorf("bus: ack %s/%s: %w", stream, id, err)
	}
	return nil
}

// deliveryCount looks up how many times this message has been delivered to
// any consumer in the group, used to detect a poison message (spec §4.1,
// §7) after a bounded retry count. Best-effort: a lookup failure returns 1
// rather than surfacing a secondary error from a function whose job is just
// classification.
func (c *Consumer) deliveryCount(ctx context.Context, stream, id string) int64 {
	res, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  c.group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(res) == 0 {
		return 1
	}
	return res[0].RetryCount
}

func classifyRedisErr(err error) error {
	return fmt.Errorf("bus: transient read failure: %w", err)
}

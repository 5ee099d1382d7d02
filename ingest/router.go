package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"kass/bus"
)

// envelope is the self-describing wire shape each push-stream frame
// carries: a channel discriminator plus the record itself (spec §6.1: raw
// input streams are "self-describing records").
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

var channelToStream = map[string]string{
	"trades":           bus.StreamTrades,
	"ticker_updates":   bus.StreamTickerUpdates,
	"orderbook_deltas": bus.StreamOrderbookDeltas,
	"lifecycle":        bus.StreamLifecycle,
	"system":           bus.StreamSystem,
}

// Router reads frames off a Client and republishes each record's payload
// onto the matching bus stream, giving every downstream processor durable
// consumer-group delivery (spec §6.1).
type Router struct {
	Client    *Client
	Publisher *bus.Publisher
}

func NewRouter(client *Client, publisher *bus.Publisher) *Router {
	return &Router{Client: client, Publisher: publisher}
}

// Run reads frames until ctx is cancelled or the connection drops, at which
// point the caller is expected to reconnect and call Run again — the same
// reconnect-and-resume shape as the teacher's WebSocket manager.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		raw, err := r.Client.ReadMessage()
		if err != nil {
			return fmt.Errorf("ingest: read: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("⚠️  [ingest] malformed frame, dropped: %v", err)
			continue
		}
		stream, ok := channelToStream[env.Channel]
		if !ok {
			log.Printf("⚠️  [ingest] unknown channel %q, dropped", env.Channel)
			continue
		}
		if _, err := r.Publisher.Publish(ctx, stream, json.RawMessage(env.Data)); err != nil {
			log.Printf("⚠️  [ingest] publish to %s failed: %v", stream, err)
		}
	}
}

package crossmarket

import (
	"encoding/json"
	"fmt"
	"time"

	"kass/bus"
	"kass/market"
	"kass/model"
	"kass/processor"
)

// EventLookup resolves a market's event_id, the sibling-group key this
// processor's state is keyed by (spec §4.5).
type EventLookup interface {
	EventID(marketID string) (string, bool)
}

// Handler adapts the pure Step transducer to processor.Handler. State is an
// Arena[EventState] keyed by event_id (spec §9's arena note generalizes
// cleanly to any string key, not just market_id).
type Handler struct {
	Arena *market.Arena[EventState]
	Cfg   Config
	IDs   *model.IDGenerator
	Meta  EventLookup
}

func NewHandler(arena *market.Arena[EventState], cfg Config, ids *model.IDGenerator, meta EventLookup) *Handler {
	return &Handler{Arena: arena, Cfg: cfg, IDs: ids, Meta: meta}
}

func (h *Handler) HandleMessage(stream string, payload []byte, receivedAt time.Time) ([]model.Signal, error) {
	switch stream {
	case bus.StreamTickerUpdates:
		var tu model.TickerUpdate
		if err := json.Unmarshal(payload, &tu); err != nil {
			return nil, processor.Malformed(fmt.Errorf("crossmarket: decode ticker: %w", err))
		}
		if !tu.Valid() {
			return nil, processor.Malformed(fmt.Errorf("crossmarket: invalid ticker"))
		}
		eventID, ok := h.Meta.EventID(tu.MarketID)
		if !ok {
			// Discovery hasn't told us this market's event yet — not an
			// error, just nothing to correlate against (spec §7
			// StateUnderflow treatment).
			return nil, nil
		}
		state := h.Arena.Get(eventID, NewEventState)
		return Step(state, eventID, tu.MarketID, tu.Timestamp, tu.Price, h.Cfg, h.IDs), nil

	case bus.StreamMarketMeta:
		if store, ok := h.Meta.(interface{ Update(model.MarketMeta) }); ok {
			var m model.MarketMeta
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, processor.Malformed(fmt.Errorf("crossmarket: decode market meta: %w", err))
			}
			store.Update(m)
		}
		return nil, nil

	default:
		return nil, nil
	}
}

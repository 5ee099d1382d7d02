package lifecycle

import (
	"encoding/json"
	"fmt"
	"time"

	"kass/bus"
	"kass/market"
	"kass/model"
	"kass/processor"
)

// EventLookup resolves a market's event_id (spec §4.6 needs the same
// sibling-group membership crossmarket does).
type EventLookup interface {
	EventID(marketID string) (string, bool)
}

// Handler adapts the pure Step* functions to processor.Handler.
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
	case bus.StreamLifecycle:
		var l model.LifecycleEvent
		if err := json.Unmarshal(payload, &l); err != nil {
			return nil, processor.Malformed(fmt.Errorf("lifecycle: decode lifecycle event: %w", err))
		}
		if !l.Valid() {
			return nil, processor.Malformed(fmt.Errorf("lifecycle: invalid lifecycle event"))
		}
		eventID := l.EventID
		if eventID == "" {
			if ev, ok := h.Meta.EventID(l.MarketID); ok {
				eventID = ev
			} else {
				return nil, nil
			}
		}
		state := h.Arena.Get(eventID, NewEventState)

		switch l.Status {
		case model.StatusSettled:
			return StepSettlement(state, eventID, l.MarketID, l.Timestamp, l.Winner, h.Cfg, h.IDs), nil
		case model.StatusOpen:
			StepOpen(state, l.MarketID)
			return nil, nil
		default:
			return nil, nil
		}

	case bus.StreamTickerUpdates:
		var tu model.TickerUpdate
		if err := json.Unmarshal(payload, &tu); err != nil {
			return nil, processor.Malformed(fmt.Errorf("lifecycle: decode ticker: %w", err))
		}
		if !tu.Valid() {
			return nil, processor.Malformed(fmt.Errorf("lifecycle: invalid ticker"))
		}
		eventID, ok := h.Meta.EventID(tu.MarketID)
		if !ok {
			return nil, nil
		}
		state := h.Arena.Get(eventID, NewEventState)
		return StepPrice(state, eventID, tu.MarketID, tu.Timestamp, tu.Price, h.Cfg, h.IDs), nil

	case bus.StreamMarketMeta:
		if store, ok := h.Meta.(interface{ Update(model.MarketMeta) }); ok {
			var m model.MarketMeta
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, processor.Malformed(fmt.Errorf("lifecycle: decode market meta: %w", err))
			}
			store.Update(m)
		}
		return nil, nil

	default:
		return nil, nil
	}
}

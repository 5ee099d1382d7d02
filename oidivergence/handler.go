package oidivergence

import (
	"encoding/json"
	"fmt"
	"time"

	"kass/bus"
	"kass/market"
	"kass/model"
	"kass/processor"
)

// Handler adapts the pure Step transducer to processor.Handler.
type Handler struct {
	Arena *market.Arena[MarketState]
	Cfg   Config
	IDs   *model.IDGenerator
}

func NewHandler(arena *market.Arena[MarketState], cfg Config, ids *model.IDGenerator) *Handler {
	return &Handler{Arena: arena, Cfg: cfg, IDs: ids}
}

func (h *Handler) HandleMessage(stream string, payload []byte, receivedAt time.Time) ([]model.Signal, error) {
	switch stream {
	case bus.StreamTickerUpdates:
		var tu model.TickerUpdate
		if err := json.Unmarshal(payload, &tu); err != nil {
			return nil, processor.Malformed(fmt.Errorf("oidivergence: decode ticker: %w", err))
		}
		if !tu.Valid() {
			return nil, processor.Malformed(fmt.Errorf("oidivergence: invalid ticker"))
		}
		state := h.Arena.Get(tu.MarketID, NewMarketState)
		return Step(state, tu, h.Cfg, h.IDs), nil

	case bus.StreamLifecycle:
		var l model.LifecycleEvent
		if err := json.Unmarshal(payload, &l); err != nil {
			return nil, processor.Malformed(fmt.Errorf("oidivergence: decode lifecycle: %w", err))
		}
		if !l.Valid() {
			return nil, processor.Malformed(fmt.Errorf("oidivergence: invalid lifecycle event"))
		}
		if l.Status.Terminal() {
			h.Arena.Evict(l.MarketID)
		}
		return nil, nil

	default:
		return nil, nil
	}
}

package toxicity

import (
	"encoding/json"
	"fmt"
	"time"

	"kass/bus"
	"kass/market"
	"kass/model"
	"kass/processor"
)

// Handler adapts the pure Step transducer to processor.Handler, decoding
// trades off the bus and routing each into the right market's bucket state.
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
	case bus.StreamTrades:
		var t model.Trade
		if err := json.Unmarshal(payload, &t); err != nil {
			return nil, processor.Malformed(fmt.Errorf("toxicity: decode trade: %w", err))
		}
		if !t.Valid() {
			return nil, processor.Malformed(fmt.Errorf("toxicity: invalid trade"))
		}
		state := h.Arena.Get(t.MarketID, func() *MarketState {
			return newMarketState(h.Cfg.BucketMinVolume, h.Cfg.Window)
		})
		return Step(state, t, h.Cfg, h.IDs), nil

	case bus.StreamLifecycle:
		var l model.LifecycleEvent
		if err := json.Unmarshal(payload, &l); err != nil {
			return nil, processor.Malformed(fmt.Errorf("toxicity: decode lifecycle: %w", err))
		}
		if !l.Valid() {
			return nil, processor.Malformed(fmt.Errorf("toxicity: invalid lifecycle event"))
		}
		if l.Status.Terminal() {
			h.Arena.Evict(l.MarketID)
		}
		return nil, nil

	default:
		return nil, nil
	}
}

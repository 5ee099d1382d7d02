package regime

import (
	"encoding/json"
	"fmt"
	"time"

	"kass/bus"
	"kass/market"
	"kass/model"
	"kass/processor"
)

// MetaProvider resolves a market's close time, if known, so PRE_SETTLE can
// fire (spec §3's MarketMeta, "maintained by discovery; read by the core").
// It is read-only and never blocks the event loop.
type MetaProvider interface {
	CloseTime(marketID string) (time.Time, bool)
}

// Handler adapts the pure Step transducer to processor.Handler by decoding
// each raw stream's JSON payload and routing it into the right market's
// rolling state.
type Handler struct {
	Arena *market.Arena[MarketState]
	Cfg   Config
	IDs   *model.IDGenerator
	Meta  MetaProvider
}

func NewHandler(arena *market.Arena[MarketState], cfg Config, ids *model.IDGenerator, meta MetaProvider) *Handler {
	return &Handler{Arena: arena, Cfg: cfg, IDs: ids, Meta: meta}
}

func (h *Handler) closeTime(marketID string) time.Time {
	if h.Meta == nil {
		return time.Time{}
	}
	if ct, ok := h.Meta.CloseTime(marketID); ok {
		return ct
	}
	return time.Time{}
}

func (h *Handler) HandleMessage(stream string, payload []byte, receivedAt time.Time) ([]model.Signal, error) {
	switch stream {
	case bus.StreamTrades:
		var t model.Trade
		if err := json.Unmarshal(payload, &t); err != nil {
			return nil, processor.Malformed(fmt.Errorf("regime: decode trade: %w", err))
		}
		if !t.Valid() {
			return nil, processor.Malformed(fmt.Errorf("regime: invalid trade"))
		}
		state := h.Arena.Get(t.MarketID, NewMarketState)
		obs := Observation{Ts: t.Timestamp, MarketID: t.MarketID, IsTrade: true, CloseTime: h.closeTime(t.MarketID)}
		return Step(state, obs, h.Cfg, h.IDs), nil

	case bus.StreamTickerUpdates:
		var tu model.TickerUpdate
		if err := json.Unmarshal(payload, &tu); err != nil {
			return nil, processor.Malformed(fmt.Errorf("regime: decode ticker: %w", err))
		}
		if !tu.Valid() {
			return nil, processor.Malformed(fmt.Errorf("regime: invalid ticker"))
		}
		state := h.Arena.Get(tu.MarketID, NewMarketState)
		obs := Observation{Ts: tu.Timestamp, MarketID: tu.MarketID, CloseTime: h.closeTime(tu.MarketID)}
		return Step(state, obs, h.Cfg, h.IDs), nil

	case bus.StreamOrderbookDeltas:
		var o model.OrderbookDelta
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, processor.Malformed(fmt.Errorf("regime: decode orderbook delta: %w", err))
		}
		if !o.Valid() {
			return nil, processor.Malformed(fmt.Errorf("regime: invalid orderbook delta"))
		}
		state := h.Arena.Get(o.MarketID, NewMarketState)
		obs := Observation{Ts: o.Timestamp, MarketID: o.MarketID, CloseTime: h.closeTime(o.MarketID)}
		if o.Side == model.SideYes {
			obs.DepthDeltaYes = o.SizeDelta
		} else {
			obs.DepthDeltaNo = o.SizeDelta
		}
		return Step(state, obs, h.Cfg, h.IDs), nil

	case bus.StreamLifecycle:
		var l model.LifecycleEvent
		if err := json.Unmarshal(payload, &l); err != nil {
			return nil, processor.Malformed(fmt.Errorf("regime: decode lifecycle: %w", err))
		}
		if !l.Valid() {
			return nil, processor.Malformed(fmt.Errorf("regime: invalid lifecycle event"))
		}
		if l.Status.Terminal() {
			h.Arena.Evict(l.MarketID)
			return nil, nil
		}
		state := h.Arena.Get(l.MarketID, NewMarketState)
		obs := Observation{Ts: l.Timestamp, MarketID: l.MarketID, CloseTime: h.closeTime(l.MarketID)}
		return Step(state, obs, h.Cfg, h.IDs), nil

	case bus.StreamMarketMeta:
		if store, ok := h.Meta.(interface{ Update(model.MarketMeta) }); ok {
			var m model.MarketMeta
			if err := json.Unmarshal(payload, &m); err != nil {
				return nil, processor.Malformed(fmt.Errorf("regime: decode market meta: %w", err))
			}
			store.Update(m)
		}
		return nil, nil

	default:
		return nil, nil
	}
}

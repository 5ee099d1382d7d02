package lifecycle

import (
	"math"
	"time"

	"kass/model"
)

// Config carries the thresholds spec §4.6 needs. Unlike the other
// processors, most of §4.6's behavior is driven by comparisons the spec
// states directly (elimination, residual-probability divergence), so the
// only tunable is the cascade TTL and the new-market divergence bar.
type Config struct {
	CascadeTTLSec      int
	NewMarketThreshold float64 // minimum |initial price - implied residual|, in probability units
}

func (c Config) cascadeTTL() int {
	if c.CascadeTTLSec <= 0 {
		return 60
	}
	return c.CascadeTTLSec
}

func (c Config) newMarketThreshold() float64 {
	if c.NewMarketThreshold <= 0 {
		return 0.10
	}
	return c.NewMarketThreshold
}

// StepSettlement folds a settlement LifecycleEvent into state and returns
// the cascade signals it implies (spec §4.6 "Settlement cascade").
func StepSettlement(state *EventState, eventID, marketID string, ts time.Time, winner *model.Side, cfg Config, ids *model.IDGenerator) []model.Signal {
	m := state.ensure(marketID)
	m.settled = true
	m.winner = winner

	var signals []model.Signal
	if winner != nil && *winner == model.SideYes {
		// This market won: every other unsettled sibling is eliminated.
		for _, sibID := range state.unsettledOthers(marketID) {
			signals = append(signals, cascadeSignal(ts, eventID, sibID, model.DirectionBuyNo, cfg, ids))
			state.members[sibID].settled = true
			state.members[sibID].winner = ptrSide(model.SideNo)
		}
		return signals
	}

	// This market lost (or its outcome is unknown): if exactly one
	// unsettled sibling remains, it is the unique survivor.
	remaining := state.unsettledOthers(marketID)
	if len(remaining) == 1 {
		survivor := remaining[0]
		signals = append(signals, cascadeSignal(ts, eventID, survivor, model.DirectionBuyYes, cfg, ids))
		state.members[survivor].settled = true
		state.members[survivor].winner = ptrSide(model.SideYes)
	}
	return signals
}

func ptrSide(s model.Side) *model.Side { return &s }

func cascadeSignal(ts time.Time, eventID, marketID string, dir model.Direction, cfg Config, ids *model.IDGenerator) model.Signal {
	return model.Signal{
		SignalID:   ids.Next(),
		Ts:         ts,
		SignalType: model.SignalTypeLifecycleCascade,
		MarketID:   marketID,
		EventID:    eventID,
		Direction:  dir,
		Strength:   1,
		Confidence: 1,
		Urgency:    model.UrgencyCritical,
		TTLSeconds: cfg.cascadeTTL(),
		Metadata: map[string]interface{}{
			"cascade_from": eventID,
		},
	}
}

// StepOpen records a newly-opened market joining state's event. If it joins
// established siblings (ones with at least one known price already) it is
// flagged to be checked against the implied residual probability as soon as
// its own first price arrives.
func StepOpen(state *EventState, marketID string) {
	m := state.ensure(marketID)
	if hasKnownSiblingPrice(state, marketID) {
		m.awaitingBaseline = true
	}
}

func hasKnownSiblingPrice(state *EventState, exclude string) bool {
	for id, m := range state.members {
		if id == exclude {
			continue
		}
		if m.price != nil {
			return true
		}
	}
	return false
}

// StepPrice folds a ticker update's price into state, and if marketID was
// flagged awaiting a baseline check, compares its first price against the
// implied residual probability of its siblings (spec §4.6 "New-market
// scan").
func StepPrice(state *EventState, eventID, marketID string, ts time.Time, yesPrice int, cfg Config, ids *model.IDGenerator) []model.Signal {
	m := state.ensure(marketID)
	m.price = &yesPrice

	if !m.awaitingBaseline {
		return nil
	}
	m.awaitingBaseline = false

	siblingSum := 0.0
	known := 0
	for id, sib := range state.members {
		if id == marketID || sib.price == nil {
			continue
		}
		siblingSum += float64(*sib.price) / 100
		known++
	}
	if known == 0 {
		return nil
	}

	residual := clamp01(1 - siblingSum)
	initial := float64(yesPrice) / 100
	diff := initial - residual
	if math.Abs(diff) < cfg.newMarketThreshold() {
		return nil
	}

	dir := model.DirectionBuyNo
	if diff < 0 {
		dir = model.DirectionBuyYes
	}

	return []model.Signal{{
		SignalID:   ids.Next(),
		Ts:         ts,
		SignalType: model.SignalTypeLifecycleNewMkt,
		MarketID:   marketID,
		EventID:    eventID,
		Direction:  dir,
		Strength:   clamp01(math.Abs(diff) * 2),
		Confidence: clamp01(float64(known) / 3),
		Urgency:    model.UrgencyNormal,
		TTLSeconds: 300,
		Metadata: map[string]interface{}{
			"initial_price":      yesPrice,
			"implied_residual":   residual,
			"sibling_count":      known,
		},
	}}
}

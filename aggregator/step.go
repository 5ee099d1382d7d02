package aggregator

import (
	"math"
	"time"

	"kass/market"
	"kass/model"
)

// Config carries the weight vector, regime multipliers (via model.Regime's
// own Multiplier method), and emission-gating thresholds from spec §4.7.
type Config struct {
	Weights         map[string]float64
	EmitDelta       float64
	NeutralBand     float64
	HeartbeatSec    int
	DedupeWindowSec int
}

func (c Config) weight(t model.SignalType) float64 {
	if w, ok := c.Weights[string(t)]; ok {
		return w
	}
	return 0
}

func (c Config) dedupeWindow() time.Duration {
	if c.DedupeWindowSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.DedupeWindowSec) * time.Second
}

// Aggregator is the fusion engine's mutable runtime: the global dedupe set
// plus the per-market arena of active-signal tables.
type Aggregator struct {
	Arena *market.Arena[MarketState]
	Cfg   Config
	Now   func() time.Time // injectable wall clock, defaults to time.Now

	seen map[string]time.Time // signal_id -> event ts first seen
}

func New(arena *market.Arena[MarketState], cfg Config) *Aggregator {
	return &Aggregator{
		Arena: arena,
		Cfg:   cfg,
		Now:   time.Now,
		seen:  make(map[string]time.Time),
	}
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// StepSignal folds one incoming Signal (from the signals:all fan-in) into
// state and returns a CompositeSignal if the fused score changed enough to
// publish, per spec §4.7 steps 1-6.
func (a *Aggregator) StepSignal(sig model.Signal) []model.CompositeSignal {
	if _, dup := a.seen[sig.SignalID]; dup {
		return nil
	}
	a.seen[sig.SignalID] = sig.Ts
	a.pruneSeen(sig.Ts)

	state := a.Arena.Get(sig.MarketID, NewMarketState)
	state.expire(sig.Ts)

	if sig.SignalType == model.SignalTypeRegime {
		if r, ok := sig.Metadata["new_regime"]; ok {
			switch v := r.(type) {
			case model.Regime:
				state.regime = v
			case string:
				// the wire path: encoding/json decodes Metadata values into
				// plain primitives, never back into model.Regime.
				state.regime = model.Regime(v)
			}
		}
		comp := a.recompute(state, sig.MarketID, sig.Ts)
		return a.maybeEmit(state, comp)
	}

	state.upsert(sig)
	comp := a.recompute(state, sig.MarketID, sig.Ts)
	return a.maybeEmit(state, comp)
}

// StepTerminal evicts a market's arena slot once it reaches a terminal
// lifecycle status (spec §3's "active" definition excludes markets that
// have entered a terminal status since the signal fired).
func (a *Aggregator) StepTerminal(marketID string) {
	a.Arena.Evict(marketID)
}

func (a *Aggregator) pruneSeen(now time.Time) {
	cutoff := now.Add(-a.Cfg.dedupeWindow())
	for id, ts := range a.seen {
		if ts.Before(cutoff) {
			delete(a.seen, id)
		}
	}
}

func (a *Aggregator) recompute(state *MarketState, marketID string, ts time.Time) model.CompositeSignal {
	sum := 0.0
	for _, sig := range state.active {
		sum += sig.Direction.Sign() * sig.Strength * sig.Confidence * a.Cfg.weight(sig.SignalType)
	}
	score := clamp(sum*state.regime.Multiplier(), -1, 1)

	dir := model.DirectionBuyYes
	switch {
	case math.Abs(score) < a.Cfg.NeutralBand:
		dir = model.DirectionNeutral
	case score < 0:
		dir = model.DirectionBuyNo
	}

	ids := state.activeIDs()
	return model.CompositeSignal{
		Ts:                ts,
		MarketID:          marketID,
		Direction:         dir,
		CompositeScore:    score,
		Regime:            state.regime,
		ActiveSignalIDs:   ids,
		ActiveSignalCount: len(ids),
	}
}

// maybeEmit applies spec §4.7 step 6's four emission conditions.
func (a *Aggregator) maybeEmit(state *MarketState, comp model.CompositeSignal) []model.CompositeSignal {
	delta := math.Abs(comp.CompositeScore - state.lastEmitted.CompositeScore)
	signFlipped := state.haveEmitted && sign(comp.CompositeScore) != sign(state.lastEmitted.CompositeScore)
	countChanged := state.haveEmitted && comp.ActiveSignalCount != state.lastEmitted.ActiveSignalCount
	heartbeat := state.haveEmitted && a.now().Sub(state.lastEmittedWall) >= time.Duration(a.Cfg.HeartbeatSec)*time.Second

	emit := delta >= a.Cfg.EmitDelta ||
		signFlipped ||
		(countChanged && math.Abs(comp.CompositeScore) >= 0.15) ||
		(heartbeat && math.Abs(comp.CompositeScore) >= 0.20)

	if !emit {
		return nil
	}
	state.lastEmitted = comp
	state.lastEmittedWall = a.now()
	state.haveEmitted = true
	return []model.CompositeSignal{comp}
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

package regime

import (
	"math"
	"time"

	"kass/model"
)

// Config carries the thresholds spec §4.4 parameterizes.
type Config struct {
	EvalPeriodSec   int
	HysteresisSec   int
	PreSettleMinute int
	WindowSec       int // rolling observable window, default 30s
}

func (c Config) windowSec() int {
	if c.WindowSec <= 0 {
		return 30
	}
	return c.WindowSec
}

// Observation is one raw event's contribution to a market's rolling regime
// observables. The Regime Handler builds one of these per incoming
// trade/ticker/orderbook-delta/lifecycle message; Step stays pure given
// (state, obs, cfg, ids) per the deterministic-replay design note (spec §9).
type Observation struct {
	Ts            time.Time
	MarketID      string
	IsTrade       bool
	DepthDeltaYes int
	DepthDeltaNo  int
	// CloseTime is the market's close time if known at this point (from
	// MarketMeta, spec §3) — zero means unknown, which disables PRE_SETTLE.
	CloseTime time.Time
}

// Step folds one observation into state and, at most once per
// EvalPeriodSec of event-time, re-evaluates the regime transition table. It
// returns a signal only when a transition actually fires.
func Step(state *MarketState, obs Observation, cfg Config, ids *model.IDGenerator) []model.Signal {
	window := time.Duration(cfg.windowSec()) * time.Second
	state.recordMessage(obs.Ts, obs.IsTrade, window)
	state.depthYes = clampNonNeg(state.depthYes + float64(obs.DepthDeltaYes))
	state.depthNo = clampNonNeg(state.depthNo + float64(obs.DepthDeltaNo))
	if !obs.CloseTime.IsZero() {
		state.closeTime = obs.CloseTime
	}

	evalPeriod := time.Duration(cfg.EvalPeriodSec) * time.Second
	if evalPeriod <= 0 {
		evalPeriod = 5 * time.Second
	}
	if state.lastEval.IsZero() {
		state.lastEval = obs.Ts
	}
	if obs.Ts.Sub(state.lastEval) < evalPeriod {
		return nil
	}
	state.lastEval = obs.Ts

	tradeRate := ratePerMinute(len(state.tradeTimes), cfg.windowSec())
	msgRate := ratePerMinute(len(state.msgTimes), cfg.windowSec())
	imbalance := depthImbalance(state.depthYes, state.depthNo)

	preSettleMin := cfg.PreSettleMinute
	if preSettleMin <= 0 {
		preSettleMin = 15
	}
	var timeToClose time.Duration = time.Duration(math.MaxInt64)
	if !state.closeTime.IsZero() {
		timeToClose = state.closeTime.Sub(obs.Ts)
	}

	target := targetRegime(state.current, tradeRate, msgRate, imbalance, timeToClose, time.Duration(preSettleMin)*time.Minute)

	if target == state.current {
		state.pendingTo = ""
		return nil
	}

	if target == model.RegimePreSettle {
		// "dominates" per spec §4.4 — no hysteresis wait.
		return state.transition(obs.Ts, obs.MarketID, target, ids)
	}

	hysteresis := time.Duration(cfg.HysteresisSec) * time.Second
	if hysteresis <= 0 {
		hysteresis = 15 * time.Second
	}
	if state.pendingTo != target {
		state.pendingTo = target
		state.pendingSince = obs.Ts
		return nil
	}
	if obs.Ts.Sub(state.pendingSince) >= hysteresis {
		return state.transition(obs.Ts, obs.MarketID, target, ids)
	}
	return nil
}

// targetRegime computes the non-hysteretic transition-table target for the
// current observables, per spec §4.4's table.
func targetRegime(current model.Regime, tradeRate, msgRate, imbalance float64, timeToClose, preSettleWindow time.Duration) model.Regime {
	if timeToClose <= preSettleWindow {
		return model.RegimePreSettle
	}
	if current == model.RegimePreSettle {
		return model.RegimePreSettle
	}

	deadCond := tradeRate < 0.1 && msgRate < 1

	switch current {
	case model.RegimeDead:
		if tradeRate >= 0.5 {
			return model.RegimeQuiet
		}
		return model.RegimeDead
	case model.RegimeQuiet:
		if tradeRate >= 5 || msgRate >= 20 {
			return model.RegimeActive
		}
		if deadCond {
			return model.RegimeDead
		}
		return model.RegimeQuiet
	case model.RegimeActive:
		if math.Abs(imbalance) >= 0.6 && tradeRate >= 5 {
			return model.RegimeInformed
		}
		if tradeRate < 2 {
			return model.RegimeQuiet
		}
		if deadCond {
			return model.RegimeDead
		}
		return model.RegimeActive
	case model.RegimeInformed:
		if math.Abs(imbalance) < 0.3 {
			return model.RegimeActive
		}
		if deadCond {
			return model.RegimeDead
		}
		return model.RegimeInformed
	default:
		return model.RegimeQuiet
	}
}

// transition commits state.current → target and builds the regime signal
// (spec §4.4: "on every transition: emit a regime signal ... strength
// encodes importance").
func (s *MarketState) transition(ts time.Time, marketID string, target model.Regime, ids *model.IDGenerator) []model.Signal {
	old := s.current
	s.current = target
	s.enteredAt = ts
	s.pendingTo = ""

	strong := target == model.RegimeInformed || target == model.RegimePreSettle
	strength := 0.4
	urgency := model.UrgencyNormal
	if strong {
		strength = 0.9
		urgency = model.UrgencyHigh
	}

	return []model.Signal{{
		SignalID:   ids.Next(),
		Ts:         ts,
		SignalType: model.SignalTypeRegime,
		MarketID:   marketID,
		Direction:  model.DirectionNeutral,
		Strength:   strength,
		Confidence: 1,
		Urgency:    urgency,
		TTLSeconds: 3600,
		Metadata: map[string]interface{}{
			"old_regime": old,
			"new_regime": target,
		},
	}}
}

package oidivergence

import (
	"math"
	"time"

	"kass/model"
)

// Config carries the thresholds spec §4.3 parameterizes.
type Config struct {
	ZScoreThreshold float64
	EWMAHalfLifeSec float64

	// MinSamples is the warm-up floor below which the rolling EWMA/variance
	// are not trusted enough to emit (spec §7 StateUnderflow, handled here
	// by suppressing emission rather than returning an error).
	MinSamples int
}

const defaultMinSamples = 10

// Subtype names spec §4.3's four classification regimes, carried in
// metadata. The emit gate keys on (market, signal_type, direction) only, so
// the subtype is not part of a signal's gating identity.
const (
	SubtypeNewLongs        = "new_longs"
	SubtypeShortCovering    = "short_covering"
	SubtypeNewShorts        = "new_shorts"
	SubtypeLongLiquidation  = "long_liquidation"
)

// Step applies one ticker update to state and returns any signal it
// produces. Pure given (state, update, cfg, ids) per the deterministic
// replay design note in spec §9.
func Step(state *MarketState, t model.TickerUpdate, cfg Config, ids *model.IDGenerator) []model.Signal {
	horizon := time.Duration(cfg.EWMAHalfLifeSec) * time.Second

	var dt float64
	if !state.lastTs.IsZero() {
		dt = t.Timestamp.Sub(state.lastTs).Seconds()
	}
	state.lastTs = t.Timestamp

	delta := float64(t.OpenInterestDelta)
	if !state.haveEWMA {
		state.oiVelocity = delta
		state.variance = 0
		state.haveEWMA = true
	} else {
		alpha := 1.0
		if dt > 0 && cfg.EWMAHalfLifeSec > 0 {
			alpha = 1 - math.Exp(-math.Ln2*dt/cfg.EWMAHalfLifeSec)
		}
		diff := delta - state.oiVelocity
		state.oiVelocity += alpha * diff
		state.variance = (1 - alpha) * (state.variance + alpha*diff*diff)
	}

	state.pushPrice(t.Timestamp, t.Price, horizon)
	state.samples++

	minSamples := cfg.MinSamples
	if minSamples <= 0 {
		minSamples = defaultMinSamples
	}
	if state.samples < minSamples {
		return nil
	}

	std := math.Sqrt(state.variance)
	z := 0.0
	if std > 0 {
		z = state.oiVelocity / std
	}
	priceDelta := state.priceDelta()

	threshold := cfg.ZScoreThreshold
	if threshold <= 0 {
		threshold = 2.0
	}

	subtype, dir, weak, ok := classify(z, priceDelta, threshold)
	if !ok {
		return nil
	}

	strength := clamp01(math.Abs(z) / 4)
	if weak {
		strength *= 0.7
	}

	sizeFactor := clamp01(float64(state.samples) / float64(minSamples))
	stability := 1.0
	if state.oiVelocity != 0 || std != 0 {
		stability = 1 / (1 + std/(math.Abs(state.oiVelocity)+1e-9))
	}
	confidence := clamp01(sizeFactor * stability)

	return []model.Signal{{
		SignalID:   ids.Next(),
		Ts:         t.Timestamp,
		SignalType: model.SignalTypeOIDivergence,
		MarketID:   t.MarketID,
		Direction:  dir,
		Strength:   strength,
		Confidence: confidence,
		Urgency:    model.UrgencyNormal,
		TTLSeconds: 600,
		Metadata: map[string]interface{}{
			"oi_velocity":        state.oiVelocity,
			"oi_velocity_zscore": z,
			"price_delta":        priceDelta,
			"subtype":            subtype,
		},
	}}
}

// classify maps (z, Δp) onto spec §4.3's four named regimes. weak reports
// whether this regime's strength should be discounted (short_covering and
// long_liquidation are explicitly called out as "weaker").
func classify(z, priceDelta, threshold float64) (subtype string, dir model.Direction, weak bool, ok bool) {
	switch {
	case z >= threshold && priceDelta > 0:
		return SubtypeNewLongs, model.DirectionBuyYes, false, true
	case z <= -threshold && priceDelta > 0:
		return SubtypeShortCovering, model.DirectionBuyNo, true, true
	case z >= threshold && priceDelta < 0:
		return SubtypeNewShorts, model.DirectionBuyNo, false, true
	case z <= -threshold && priceDelta < 0:
		return SubtypeLongLiquidation, model.DirectionBuyYes, true, true
	default:
		return "", model.DirectionNeutral, false, false
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

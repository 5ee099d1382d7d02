package toxicity

import (
	"math"
	"time"

	"kass/model"
)

// Config carries the thresholds spec §4.2 parameterizes.
type Config struct {
	BucketMinVolume int
	Window          int
	Threshold       float64
	High            float64
}

// Step applies one trade to state and returns any signals it produces. It
// is pure given (state, trade, cfg, ids) — no bus, no clock calls beyond the
// trade's own timestamp — so it can be replayed deterministically in tests.
func Step(state *MarketState, t model.Trade, cfg Config, ids *model.IDGenerator) []model.Signal {
	if state.bucketStart.IsZero() {
		state.bucketStart = t.Timestamp
	}

	netBuy := t.TakerSide == model.SideYes
	if netBuy {
		state.buyVolume += t.Count
	} else {
		state.sellVolume += t.Count
	}

	total := state.buyVolume + state.sellVolume
	target := state.targetVolume
	if target <= 0 {
		target = cfg.BucketMinVolume
	}
	if total < target {
		return nil
	}

	// Close the bucket.
	imbalance := 0.0
	if total > 0 {
		imbalance = math.Abs(float64(state.buyVolume-state.sellVolume)) / float64(total)
	}
	closedNetBuy := state.buyVolume >= state.sellVolume
	closeTime := t.Timestamp
	bucketDur := closeTime.Sub(state.bucketStart)

	b := bucket{closedAt: closeTime, volume: total, imbalance: imbalance, netBuy: closedNetBuy}

	wasAbove := state.aboveThr

	// burst check uses the pre-push rolling mean so it measures this
	// bucket against history, not itself.
	var signals []model.Signal
	if state.haveEWMA && state.volumeEWMA > 0 && float64(total) >= 3*state.volumeEWMA && bucketDur <= 10*time.Second {
		z := zScore(float64(total), state.volumeEWMA, state.volumeStd())
		signals = append(signals, burstSignal(state, t.MarketID, closeTime, z, ids))
	}

	state.pushBucket(b)
	state.targetVolume = int(state.volumeEWMA) // re-estimate V from rolling mean
	if state.targetVolume < cfg.BucketMinVolume {
		state.targetVolume = cfg.BucketMinVolume
	}
	state.buyVolume, state.sellVolume = 0, 0
	state.bucketStart = time.Time{}

	vpin := state.lastVPIN
	nowAbove := vpin >= cfg.Threshold
	crossedUp := nowAbove && !wasAbove
	state.aboveThr = nowAbove

	if crossedUp && imbalance > 0 {
		signals = append(signals, vpinSignal(state, t.MarketID, closeTime, vpin, closedNetBuy, imbalance, cfg, ids))
	}

	return signals
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

func zScore(x, mean, std float64) float64 {
	if std <= 0 {
		return 0
	}
	return (x - mean) / std
}

func vpinSignal(state *MarketState, marketID string, ts time.Time, vpin float64, netBuy bool, lastImbalance float64, cfg Config, ids *model.IDGenerator) model.Signal {
	dir := model.DirectionBuyNo
	if netBuy {
		dir = model.DirectionBuyYes
	}
	urgency := model.UrgencyNormal
	if vpin > cfg.High {
		urgency = model.UrgencyHigh
	}
	return model.Signal{
		SignalID:   ids.Next(),
		Ts:         ts,
		SignalType: model.SignalTypeToxicityVPIN,
		MarketID:   marketID,
		Direction:  dir,
		Strength:   clamp01((vpin - 0.5) / 0.5),
		Confidence: math.Min(1, float64(state.filled())/float64(state.windowK)),
		Urgency:    urgency,
		TTLSeconds: 300,
		Metadata: map[string]interface{}{
			"vpin":            vpin,
			"bucket_count":    state.filled(),
			"last_imbalance":  lastImbalance,
		},
	}
}

func burstSignal(state *MarketState, marketID string, ts time.Time, z float64, ids *model.IDGenerator) model.Signal {
	dir := model.DirectionNeutral
	if state.buyVolume > state.sellVolume {
		dir = model.DirectionBuyYes
	} else if state.sellVolume > state.buyVolume {
		dir = model.DirectionBuyNo
	}
	return model.Signal{
		SignalID:   ids.Next(),
		Ts:         ts,
		SignalType: model.SignalTypeToxicityBurst,
		MarketID:   marketID,
		Direction:  dir,
		Strength:   clamp01(z / 5),
		Confidence: math.Min(1, float64(state.filled())/float64(state.windowK)),
		Urgency:    model.UrgencyHigh,
		TTLSeconds: 120,
		Metadata: map[string]interface{}{
			"volume_zscore": z,
			"bucket_volume": state.buyVolume + state.sellVolume,
		},
	}
}

package aggregator

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"kass/market"
	"kass/model"
)

func testConfig() Config {
	return Config{
		Weights: map[string]float64{
			string(model.SignalTypeToxicityVPIN): 0.25,
			string(model.SignalTypeOIDivergence): 0.25,
		},
		EmitDelta:       0.10,
		NeutralBand:     0.05,
		HeartbeatSec:    60,
		DedupeWindowSec: 300,
	}
}

func sig(id string, t model.SignalType, dir model.Direction, strength, confidence float64, ts time.Time) model.Signal {
	return model.Signal{
		SignalID:   id,
		Ts:         ts,
		SignalType: t,
		MarketID:   "M1",
		Direction:  dir,
		Strength:   strength,
		Confidence: confidence,
		Urgency:    model.UrgencyNormal,
		TTLSeconds: 300,
	}
}

// TestAggregatorFusion grounds spec.md §8 scenario S5: VPIN(buy_yes,0.6,0.9)
// + OI-Div(buy_yes,0.5,0.8) under regime=INFORMED fuse to composite score
// 0.3055, direction buy_yes.
func TestAggregatorFusion(t *testing.T) {
	agg := New(market.NewArena[MarketState](100), testConfig())
	start := time.Now()

	regimeSig := model.Signal{
		SignalID:   "r1",
		Ts:         start,
		SignalType: model.SignalTypeRegime,
		MarketID:   "M1",
		Direction:  model.DirectionNeutral,
		Urgency:    model.UrgencyHigh,
		TTLSeconds: 3600,
		Metadata:   map[string]interface{}{"old_regime": model.RegimeActive, "new_regime": model.RegimeInformed},
	}
	if comps := agg.StepSignal(regimeSig); len(comps) != 0 {
		t.Fatalf("regime-only update should not itself emit a composite, got %+v", comps)
	}

	agg.StepSignal(sig("vpin1", model.SignalTypeToxicityVPIN, model.DirectionBuyYes, 0.6, 0.9, start))
	comps := agg.StepSignal(sig("oi1", model.SignalTypeOIDivergence, model.DirectionBuyYes, 0.5, 0.8, start))

	if len(comps) != 1 {
		t.Fatalf("expected a composite emission, got %d: %+v", len(comps), comps)
	}
	comp := comps[0]
	if math.Abs(comp.CompositeScore-0.3055) > 1e-9 {
		t.Errorf("composite score = %v, want 0.3055", comp.CompositeScore)
	}
	if comp.Direction != model.DirectionBuyYes {
		t.Errorf("direction = %s, want buy_yes", comp.Direction)
	}
	if comp.Regime != model.RegimeInformed {
		t.Errorf("regime = %s, want INFORMED", comp.Regime)
	}
	if comp.ActiveSignalCount != 2 {
		t.Errorf("active_signal_count = %d, want 2", comp.ActiveSignalCount)
	}
}

// TestAggregatorRegimeFromWire ensures the regime branch of StepSignal
// applies correctly to a Signal that actually crossed the Redis bus as
// JSON, not just one built in-process. encoding/json decodes
// Metadata["new_regime"] into a plain string, never back into the named
// model.Regime type — a fixture built directly in Go would never catch a
// regression here.
func TestAggregatorRegimeFromWire(t *testing.T) {
	agg := New(market.NewArena[MarketState](100), testConfig())
	start := time.Now()

	regimeSig := model.Signal{
		SignalID:   "r1",
		Ts:         start,
		SignalType: model.SignalTypeRegime,
		MarketID:   "M1",
		Direction:  model.DirectionNeutral,
		Urgency:    model.UrgencyHigh,
		TTLSeconds: 3600,
		Metadata:   map[string]interface{}{"old_regime": model.RegimeActive, "new_regime": model.RegimeInformed},
	}

	raw, err := json.Marshal(regimeSig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wireSig model.Signal
	if err := json.Unmarshal(raw, &wireSig); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := wireSig.Metadata["new_regime"].(string); !ok {
		t.Fatalf("test setup: expected json round-trip to decode new_regime as string, got %T", wireSig.Metadata["new_regime"])
	}

	agg.StepSignal(wireSig)
	agg.StepSignal(sig("vpin1", model.SignalTypeToxicityVPIN, model.DirectionBuyYes, 0.6, 0.9, start))
	comps := agg.StepSignal(sig("oi1", model.SignalTypeOIDivergence, model.DirectionBuyYes, 0.5, 0.8, start))

	if len(comps) != 1 {
		t.Fatalf("expected a composite emission, got %d: %+v", len(comps), comps)
	}
	if comps[0].Regime != model.RegimeInformed {
		t.Errorf("regime = %s, want INFORMED (regime update over the wire was not applied)", comps[0].Regime)
	}
	if math.Abs(comps[0].CompositeScore-0.3055) > 1e-9 {
		t.Errorf("composite score = %v, want 0.3055 (INFORMED multiplier not applied)", comps[0].CompositeScore)
	}
}

// TestAggregatorSuppression grounds spec.md §8 scenario S6: after S5 emits
// 0.3055, a replacement contribution lifting the raw sum by only ~0.025
// (score ~0.338) produces |Δ| < 0.10, and should not emit until a larger
// move or the heartbeat.
func TestAggregatorSuppression(t *testing.T) {
	agg := New(market.NewArena[MarketState](100), testConfig())
	start := time.Now()

	agg.StepSignal(model.Signal{
		SignalID: "r1", Ts: start, SignalType: model.SignalTypeRegime, MarketID: "M1",
		Direction: model.DirectionNeutral, TTLSeconds: 3600,
		Metadata: map[string]interface{}{"new_regime": model.RegimeInformed},
	})
	agg.StepSignal(sig("vpin1", model.SignalTypeToxicityVPIN, model.DirectionBuyYes, 0.6, 0.9, start))
	comps := agg.StepSignal(sig("oi1", model.SignalTypeOIDivergence, model.DirectionBuyYes, 0.5, 0.8, start))
	if len(comps) != 1 {
		t.Fatalf("setup: expected initial emission, got %d", len(comps))
	}

	// A replacement oi_divergence signal whose contribution is only
	// marginally larger (raw sum += ~0.025) should be suppressed.
	later := start.Add(time.Second)
	moreComps := agg.StepSignal(sig("oi2", model.SignalTypeOIDivergence, model.DirectionBuyYes, 0.6, 0.834, later))
	if len(moreComps) != 0 {
		t.Fatalf("expected suppression (delta < 0.10), got %+v", moreComps)
	}

	// Advance the wall clock past the heartbeat window: the same
	// marginally-changed score should now emit, since |score| >= 0.20.
	agg.Now = func() time.Time { return start.Add(90 * time.Second) }
	heartbeatComps := agg.StepSignal(sig("oi3", model.SignalTypeOIDivergence, model.DirectionBuyYes, 0.6, 0.834, start.Add(90*time.Second)))
	if len(heartbeatComps) != 1 {
		t.Fatalf("expected a heartbeat emission after 60s, got %d", len(heartbeatComps))
	}
}

// TestAggregatorExpiry ensures a signal whose TTL has lapsed drops out of
// the active set and no longer contributes to the fused score (spec §8
// property 5).
func TestAggregatorExpiry(t *testing.T) {
	agg := New(market.NewArena[MarketState](100), testConfig())
	start := time.Now()

	vpin := sig("vpin1", model.SignalTypeToxicityVPIN, model.DirectionBuyYes, 0.6, 0.9, start)
	vpin.TTLSeconds = 10
	agg.StepSignal(vpin)

	late := start.Add(20 * time.Second)
	agg.StepSignal(sig("oi1", model.SignalTypeOIDivergence, model.DirectionBuyYes, 0.5, 0.8, late))

	state := agg.Arena.Get("M1", NewMarketState)
	if len(state.active) != 1 {
		t.Fatalf("active signal table = %d entries, want 1 (vpin expired at ttl)", len(state.active))
	}
	if _, stillThere := state.active[signalKey(model.SignalTypeToxicityVPIN, model.DirectionBuyYes)]; stillThere {
		t.Errorf("expired vpin signal should have been dropped from the active table")
	}
}

// TestAggregatorDedupe ensures the same signal_id folded in twice only
// contributes once (spec §8 property 3, idempotence).
func TestAggregatorDedupe(t *testing.T) {
	agg := New(market.NewArena[MarketState](100), testConfig())
	start := time.Now()

	s := sig("vpin1", model.SignalTypeToxicityVPIN, model.DirectionBuyYes, 0.6, 0.9, start)
	agg.StepSignal(s)
	comps := agg.StepSignal(s)
	if len(comps) != 0 {
		t.Errorf("replaying the same signal_id should be a no-op, got %+v", comps)
	}
}

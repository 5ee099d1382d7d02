package regime

import (
	"testing"
	"time"

	"kass/model"
)

// TestRegimeProgression grounds spec.md §8 scenario S2: a market moving from
// no activity through rising trade rate and finally a sharp depth imbalance
// should progress DEAD → QUIET → ACTIVE → INFORMED, with hysteresis
// requiring the target to hold for two consecutive evaluations before each
// transition commits (no single-eval flicker).
func TestRegimeProgression(t *testing.T) {
	state := NewMarketState()
	cfg := Config{EvalPeriodSec: 1, HysteresisSec: 2, WindowSec: 30, PreSettleMinute: 15}
	ids := model.NewIDGenerator("test")

	start := time.Now()
	var transitions []model.Regime
	for i := 0; i < 10; i++ {
		obs := Observation{
			Ts:       start.Add(time.Duration(i) * time.Second),
			MarketID: "M1",
			IsTrade:  true,
		}
		if i == 7 {
			obs.DepthDeltaYes = 100 // sharp one-sided depth, pushes imbalance to 1.0
		}
		for _, sig := range Step(state, obs, cfg, ids) {
			if nr, ok := sig.Metadata["new_regime"].(model.Regime); ok {
				transitions = append(transitions, nr)
			}
		}
	}

	want := []model.Regime{model.RegimeQuiet, model.RegimeActive, model.RegimeInformed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i, w := range want {
		if transitions[i] != w {
			t.Errorf("transition[%d] = %s, want %s", i, transitions[i], w)
		}
	}
	if state.current != model.RegimeInformed {
		t.Errorf("final regime = %s, want INFORMED", state.current)
	}
}

// TestPreSettleDominates ensures PRE_SETTLE fires without waiting on
// hysteresis once the close time is within the window, regardless of
// current regime — spec §4.4's "dominates" rule.
func TestPreSettleDominates(t *testing.T) {
	state := NewMarketState()
	state.current = model.RegimeActive
	cfg := Config{EvalPeriodSec: 1, HysteresisSec: 30, WindowSec: 30, PreSettleMinute: 15}
	ids := model.NewIDGenerator("test")

	start := time.Now()
	obs1 := Observation{Ts: start, MarketID: "M1", IsTrade: true, CloseTime: start.Add(10 * time.Minute)}
	Step(state, obs1, cfg, ids)

	obs2 := Observation{Ts: start.Add(time.Second), MarketID: "M1", IsTrade: true, CloseTime: start.Add(10 * time.Minute)}
	signals := Step(state, obs2, cfg, ids)

	if len(signals) != 1 {
		t.Fatalf("expected an immediate PRE_SETTLE transition, got %d signals", len(signals))
	}
	if state.current != model.RegimePreSettle {
		t.Errorf("regime = %s, want PRE_SETTLE", state.current)
	}
}

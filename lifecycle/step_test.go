package lifecycle

import (
	"testing"
	"time"

	"kass/model"
)

// TestSettlementCascade grounds spec.md §8 scenario S4: event E with sibling
// markets {M1,M2,M3}; M1 settles yes. Expect cascade signals buy_no on M2
// and M3, urgency critical, ttl 60.
func TestSettlementCascade(t *testing.T) {
	state := NewEventState()
	cfg := Config{CascadeTTLSec: 60}
	ids := model.NewIDGenerator("test")

	// Register siblings before the settlement event arrives.
	state.ensure("M1")
	state.ensure("M2")
	state.ensure("M3")

	yes := model.SideYes
	signals := StepSettlement(state, "E1", "M1", time.Now(), &yes, cfg, ids)

	if len(signals) != 2 {
		t.Fatalf("expected 2 cascade signals, got %d: %+v", len(signals), signals)
	}
	seen := map[string]bool{}
	for _, sig := range signals {
		seen[sig.MarketID] = true
		if sig.Direction != model.DirectionBuyNo {
			t.Errorf("market %s: direction = %s, want buy_no", sig.MarketID, sig.Direction)
		}
		if sig.Urgency != model.UrgencyCritical {
			t.Errorf("market %s: urgency = %s, want critical", sig.MarketID, sig.Urgency)
		}
		if sig.TTLSeconds != 60 {
			t.Errorf("market %s: ttl = %d, want 60", sig.MarketID, sig.TTLSeconds)
		}
		if sig.SignalType != model.SignalTypeLifecycleCascade {
			t.Errorf("market %s: signal_type = %s, want lifecycle_cascade", sig.MarketID, sig.SignalType)
		}
		if err := sig.Validate(); err != nil {
			t.Errorf("signal for %s fails validation: %v", sig.MarketID, err)
		}
	}
	if !seen["M2"] || !seen["M3"] {
		t.Errorf("expected cascade signals for M2 and M3, got %+v", signals)
	}
	if !state.members["M2"].settled || !state.members["M3"].settled {
		t.Errorf("cascaded siblings should be marked settled")
	}
}

// TestSettlementUniqueSurvivor ensures that when a market settles "no" and
// exactly one unsettled sibling remains, that sibling is flagged as the
// certain winner.
func TestSettlementUniqueSurvivor(t *testing.T) {
	state := NewEventState()
	cfg := Config{CascadeTTLSec: 60}
	ids := model.NewIDGenerator("test")

	state.ensure("M1")
	state.ensure("M2")

	no := model.SideNo
	signals := StepSettlement(state, "E1", "M1", time.Now(), &no, cfg, ids)

	if len(signals) != 1 {
		t.Fatalf("expected 1 survivor signal, got %d: %+v", len(signals), signals)
	}
	if signals[0].MarketID != "M2" || signals[0].Direction != model.DirectionBuyYes {
		t.Errorf("unexpected survivor signal: %+v", signals[0])
	}
}

// TestNewMarketScanDivergence grounds spec §4.6's new-market scan: a newly
// opened market joining established siblings whose initial price diverges
// from the implied residual probability should emit a lifecycle_new_market
// signal.
func TestNewMarketScanDivergence(t *testing.T) {
	state := NewEventState()
	cfg := Config{NewMarketThreshold: 0.10}
	ids := model.NewIDGenerator("test")

	// Two established siblings at 40c and 30c yes => implied residual for a
	// third outcome is 1 - 0.70 = 0.30.
	StepPrice(state, "E1", "M1", time.Now(), 40, cfg, ids)
	StepPrice(state, "E1", "M2", time.Now(), 30, cfg, ids)

	StepOpen(state, "M3")
	signals := StepPrice(state, "E1", "M3", time.Now(), 55, cfg, ids)

	if len(signals) != 1 {
		t.Fatalf("expected a new-market divergence signal, got %d: %+v", len(signals), signals)
	}
	sig := signals[0]
	if sig.SignalType != model.SignalTypeLifecycleNewMkt {
		t.Errorf("signal_type = %s, want lifecycle_new_market", sig.SignalType)
	}
	if sig.Direction != model.DirectionBuyNo {
		t.Errorf("direction = %s, want buy_no (initial 0.55 >> implied residual 0.30)", sig.Direction)
	}
	if err := sig.Validate(); err != nil {
		t.Errorf("emitted signal fails validation: %v", err)
	}
}

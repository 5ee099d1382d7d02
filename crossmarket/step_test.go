package crossmarket

import (
	"testing"
	"time"

	"kass/model"
)

// TestCrossMarketPropagation grounds spec.md §8 scenario S3: event E with
// markets M1, M2, M3; M1's yes_price moves 50→55 in 10s while M2/M3 stay
// flat. Expect one cross_market signal per lagging sibling, direction
// buy_no, metadata.leader_market=M1.
func TestCrossMarketPropagation(t *testing.T) {
	state := NewEventState()
	cfg := Config{LeaderMinMove: 3, FollowerMaxMove: 1, WindowSec: 120, LeaderWindowSec: 60}
	ids := model.NewIDGenerator("test")

	start := time.Now()
	// Seed all three siblings at a flat price.
	Step(state, "E1", "M1", start, 50, cfg, ids)
	Step(state, "E1", "M2", start, 50, cfg, ids)
	Step(state, "E1", "M3", start, 50, cfg, ids)

	signals := Step(state, "E1", "M1", start.Add(10*time.Second), 55, cfg, ids)

	if len(signals) != 2 {
		t.Fatalf("expected 2 propagation signals (M2, M3), got %d: %+v", len(signals), signals)
	}
	seen := map[string]bool{}
	for _, sig := range signals {
		seen[sig.MarketID] = true
		if sig.Direction != model.DirectionBuyNo {
			t.Errorf("market %s: direction = %s, want buy_no", sig.MarketID, sig.Direction)
		}
		if sig.EventID != "E1" {
			t.Errorf("market %s: event_id = %s, want E1", sig.MarketID, sig.EventID)
		}
		if leader, _ := sig.Metadata["leader_market"].(string); leader != "M1" {
			t.Errorf("market %s: metadata.leader_market = %s, want M1", sig.MarketID, leader)
		}
		if err := sig.Validate(); err != nil {
			t.Errorf("signal for %s fails validation: %v", sig.MarketID, err)
		}
	}
	if !seen["M2"] || !seen["M3"] {
		t.Errorf("expected signals for M2 and M3, got %+v", signals)
	}
}

// TestCrossMarketRepricedSiblingSkipped ensures a sibling already repriced
// within the follower window is not flagged as lagging.
func TestCrossMarketRepricedSiblingSkipped(t *testing.T) {
	state := NewEventState()
	cfg := Config{LeaderMinMove: 3, FollowerMaxMove: 1, WindowSec: 120, LeaderWindowSec: 60}
	ids := model.NewIDGenerator("test")

	start := time.Now()
	Step(state, "E1", "M1", start, 50, cfg, ids)
	Step(state, "E1", "M2", start, 50, cfg, ids)
	// M2 already moved in line with M1 before the leader-move observation.
	Step(state, "E1", "M2", start.Add(5*time.Second), 54, cfg, ids)

	signals := Step(state, "E1", "M1", start.Add(10*time.Second), 55, cfg, ids)
	for _, sig := range signals {
		if sig.MarketID == "M2" {
			t.Errorf("M2 already repriced, should not receive a propagation signal: %+v", sig)
		}
	}
}

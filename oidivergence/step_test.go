package oidivergence

import (
	"testing"
	"time"

	"kass/model"
)

func TestClassifyRegimes(t *testing.T) {
	cases := []struct {
		name       string
		z          float64
		priceDelta float64
		wantSub    string
		wantDir    model.Direction
		wantOK     bool
	}{
		{"new_longs", 3.0, 5, SubtypeNewLongs, model.DirectionBuyYes, true},
		{"short_covering", -3.0, 5, SubtypeShortCovering, model.DirectionBuyNo, true},
		{"new_shorts", 3.0, -5, SubtypeNewShorts, model.DirectionBuyNo, true},
		{"long_liquidation", -3.0, -5, SubtypeLongLiquidation, model.DirectionBuyYes, true},
		{"below_threshold", 1.0, 5, "", model.DirectionNeutral, false},
	}
	for _, c := range cases {
		sub, dir, _, ok := classify(c.z, c.priceDelta, 2.0)
		if ok != c.wantOK {
			t.Errorf("%s: ok = %v, want %v", c.name, ok, c.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if sub != c.wantSub {
			t.Errorf("%s: subtype = %s, want %s", c.name, sub, c.wantSub)
		}
		if dir != c.wantDir {
			t.Errorf("%s: direction = %s, want %s", c.name, dir, c.wantDir)
		}
	}
}

// TestStepWarmupSuppressesEmission ensures a market with fewer than
// MinSamples observations never emits — spec §7's StateUnderflow handling.
func TestStepWarmupSuppressesEmission(t *testing.T) {
	state := NewMarketState()
	cfg := Config{ZScoreThreshold: 2.0, EWMAHalfLifeSec: 300, MinSamples: 10}
	ids := model.NewIDGenerator("test")

	start := time.Now()
	for i := 0; i < 5; i++ {
		tu := model.TickerUpdate{
			Timestamp:         start.Add(time.Duration(i) * time.Second),
			MarketID:          "M1",
			Price:             50,
			OpenInterestDelta: 100,
		}
		if sigs := Step(state, tu, cfg, ids); len(sigs) != 0 {
			t.Fatalf("sample %d: expected no signal during warmup, got %v", i, sigs)
		}
	}
}

// TestStepEmitsOnSustainedDivergence exercises the full pipeline: a steady
// positive OI velocity with rising price should eventually classify as
// new_longs.
func TestStepEmitsOnSustainedDivergence(t *testing.T) {
	state := NewMarketState()
	cfg := Config{ZScoreThreshold: 1.0, EWMAHalfLifeSec: 30, MinSamples: 5}
	ids := model.NewIDGenerator("test")

	start := time.Now()
	price := 50
	var last []model.Signal
	for i := 0; i < 20; i++ {
		price += 1
		tu := model.TickerUpdate{
			Timestamp:         start.Add(time.Duration(i) * time.Second),
			MarketID:          "M1",
			Price:             price,
			OpenInterestDelta: 200 + i*10, // steadily increasing OI velocity
		}
		last = Step(state, tu, cfg, ids)
	}
	if len(last) == 0 {
		t.Fatalf("expected at least one signal once warmed up and trending")
	}
	sig := last[0]
	if err := sig.Validate(); err != nil {
		t.Errorf("emitted signal fails validation: %v", err)
	}
	if sig.SignalType != model.SignalTypeOIDivergence {
		t.Errorf("signal_type = %s, want oi_divergence", sig.SignalType)
	}
}

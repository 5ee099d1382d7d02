package toxicity

import (
	"testing"
	"time"

	"kass/model"
)

func testConfig() Config {
	return Config{BucketMinVolume: 50, Window: 50, Threshold: 0.60, High: 0.80}
}

// TestVPINTrigger grounds spec.md §8 scenario S1: 55 of 60 trades taker_side
// yes, 10 contracts each, over 60s. A bucket closes every 5 trades (volume 50
// = target 50); the first, all-yes bucket takes VPIN across the 0.60
// threshold with direction buy_yes.
func TestVPINTrigger(t *testing.T) {
	cfg := testConfig()
	state := newMarketState(cfg.BucketMinVolume, cfg.Window)
	ids := model.NewIDGenerator("test")

	start := time.Now()
	var signals []model.Signal
	for i := 0; i < 60; i++ {
		side := model.SideYes
		if i >= 55 {
			side = model.SideNo // last 5 of 60 trades net no
		}
		tr := model.Trade{
			Timestamp: start.Add(time.Duration(i) * time.Second),
			MarketID:  "M1",
			YesPrice:  50,
			NoPrice:   50,
			Count:     10, // 5 trades/bucket at BucketMinVolume=50
			TakerSide: side,
			TradeID:   "t",
		}
		signals = append(signals, Step(state, tr, cfg, ids)...)
	}

	var vpinSig *model.Signal
	for i := range signals {
		if signals[i].SignalType == model.SignalTypeToxicityVPIN && vpinSig == nil {
			vpinSig = &signals[i]
		}
	}
	if vpinSig == nil {
		t.Fatalf("expected a flow_toxicity signal, got none (total signals: %d)", len(signals))
	}
	if vpinSig.Direction != model.DirectionBuyYes {
		t.Errorf("direction = %s, want buy_yes", vpinSig.Direction)
	}
	if vpinSig.Strength < 0.5 {
		t.Errorf("strength = %f, want >= 0.5", vpinSig.Strength)
	}
	vpin, _ := vpinSig.Metadata["vpin"].(float64)
	if vpin < 0.60 {
		t.Errorf("metadata.vpin = %f, want >= 0.60", vpin)
	}
	if err := vpinSig.Validate(); err != nil {
		t.Errorf("emitted signal fails validation: %v", err)
	}
}

func TestVPINNoSignalBelowThreshold(t *testing.T) {
	cfg := testConfig()
	state := newMarketState(cfg.BucketMinVolume, cfg.Window)
	ids := model.NewIDGenerator("test")

	start := time.Now()
	var signals []model.Signal
	for i := 0; i < 60; i++ {
		side := model.SideYes
		if i%2 == 0 {
			side = model.SideNo // balanced flow, imbalance near 0
		}
		tr := model.Trade{
			Timestamp: start.Add(time.Duration(i) * time.Second),
			MarketID:  "M1",
			YesPrice:  50,
			NoPrice:   50,
			Count:     10, // 5 trades/bucket at BucketMinVolume=50
			TakerSide: side,
			TradeID:   "t",
		}
		signals = append(signals, Step(state, tr, cfg, ids)...)
	}

	for _, s := range signals {
		if s.SignalType == model.SignalTypeToxicityVPIN {
			t.Errorf("unexpected flow_toxicity signal from balanced flow: %+v", s)
		}
	}
}

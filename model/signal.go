package model

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Signal is one processor's observation (spec §3). Metadata is a free-form
// typed payload — each processor defines and documents its own shape for it.
type Signal struct {
	SignalID   string                 `json:"signal_id"`
	Ts         time.Time              `json:"ts"`
	SignalType SignalType             `json:"signal_type"`
	MarketID   string                 `json:"market_id"`
	EventID    string                 `json:"event_id,omitempty"`
	SeriesID   string                 `json:"series_id,omitempty"`
	Direction  Direction              `json:"direction"`
	Strength   float64                `json:"strength"`   // [0,1]
	Confidence float64                `json:"confidence"` // [0,1]
	Urgency    Urgency                `json:"urgency"`
	TTLSeconds int                    `json:"ttl_seconds"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ExpiresAt returns the wall/event-clock instant at which this signal stops
// being active, per spec §3: ts + ttl_seconds.
func (s Signal) ExpiresAt() time.Time {
	return s.Ts.Add(time.Duration(s.TTLSeconds) * time.Second)
}

// ActiveAt reports whether the signal is active at time t, per spec §3's
// invariant — this does not account for terminal market status, which the
// caller (the Aggregator) tracks separately per market.
func (s Signal) ActiveAt(t time.Time) bool {
	return !t.Before(s.Ts) && t.Before(s.ExpiresAt())
}

// Validate enforces every per-signal invariant from spec §3 and §8. A
// signal failing this is an InvariantViolation (spec §7): it must never be
// published, and the owning processor instance should crash and restart.
func (s Signal) Validate() error {
	if s.SignalID == "" {
		return fmt.Errorf("signal: empty signal_id")
	}
	if s.SignalType == "" {
		return fmt.Errorf("signal: empty signal_type")
	}
	if s.MarketID == "" {
		return fmt.Errorf("signal: empty market_id")
	}
	if !s.Direction.Valid() {
		return fmt.Errorf("signal: invalid direction %q", s.Direction)
	}
	if s.Strength < 0 || s.Strength > 1 {
		return fmt.Errorf("signal: strength %f out of [0,1]", s.Strength)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("signal: confidence %f out of [0,1]", s.Confidence)
	}
	if s.TTLSeconds <= 0 {
		return fmt.Errorf("signal: ttl_seconds %d must be > 0", s.TTLSeconds)
	}
	return nil
}

// IDGenerator produces globally-unique signal_ids: source-id + a
// process-local monotonic counter + a random uuid suffix (spec §3).
// Safe for concurrent use, though in KASS each processor instance is
// single-threaded per the concurrency model (spec §5).
type IDGenerator struct {
	sourceID string
	counter  uint64
}

func NewIDGenerator(sourceID string) *IDGenerator {
	return &IDGenerator{sourceID: sourceID}
}

func (g *IDGenerator) Next() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-%d-%s", g.sourceID, n, uuid.NewString()[:8])
}

// CompositeSignal is the Aggregator's fused output (spec §3/§4.7).
type CompositeSignal struct {
	Ts                time.Time `json:"ts"`
	MarketID          string    `json:"market_id"`
	Direction         Direction `json:"direction"`
	CompositeScore    float64   `json:"composite_score"` // [-1, +1]
	Regime            Regime    `json:"regime"`
	ActiveSignalIDs   []string  `json:"active_signal_ids"`
	ActiveSignalCount int       `json:"active_signal_count"`
}

func (c CompositeSignal) Validate() error {
	if c.CompositeScore < -1 || c.CompositeScore > 1 {
		return fmt.Errorf("composite: score %f out of [-1,1]", c.CompositeScore)
	}
	if c.ActiveSignalCount != len(c.ActiveSignalIDs) {
		return fmt.Errorf("composite: active_signal_count %d != len(ids) %d", c.ActiveSignalCount, len(c.ActiveSignalIDs))
	}
	return nil
}

// RegimeTransition is one regime log entry: a market's move from one regime
// to another at a point in event time (spec §4.4, §8 property 4).
type RegimeTransition struct {
	Ts         time.Time `json:"ts"`
	MarketID   string    `json:"market_id"`
	OldRegime  Regime    `json:"old_regime"`
	NewRegime  Regime    `json:"new_regime"`
}

// RegimeState is the per-market classification maintained by the Regime
// processor and read by the Aggregator (spec §3).
type RegimeState struct {
	MarketID  string    `json:"market_id"`
	Current   Regime    `json:"current"`
	EnteredAt time.Time `json:"entered_at"`
}

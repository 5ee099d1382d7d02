package processor

import (
	"time"

	"kass/model"
)

// Gate suppresses chatter: a processor may only emit a signal for the same
// (market_id, signal_type, direction) key once per cooldown window, unless
// strength has moved by at least minDelta since the last emission — spec
// §4.1's per-market cooldown/delta rule. Time is measured against the
// signal's own timestamp, not wall-clock, so replaying a backlog gates the
// same way live traffic does.
type Gate struct {
	cooldown time.Duration
	minDelta float64
	last     map[string]gatedEmit
}

type gatedEmit struct {
	at       time.Time
	strength float64
}

func NewGate(cooldown time.Duration, minDelta float64) *Gate {
	return &Gate{
		cooldown: cooldown,
		minDelta: minDelta,
		last:     make(map[string]gatedEmit),
	}
}

// Allow reports whether s should be published, recording it as the new
// baseline when it is.
func (g *Gate) Allow(s model.Signal) bool {
	key := s.MarketID + "|" + string(s.SignalType) + "|" + string(s.Direction)
	prev, ok := g.last[key]
	if ok {
		withinCooldown := s.Ts.Sub(prev.at) < g.cooldown
		delta := s.Strength - prev.strength
		if delta < 0 {
			delta = -delta
		}
		if withinCooldown && delta < g.minDelta {
			return false
		}
	}
	g.last[key] = gatedEmit{at: s.Ts, strength: s.Strength}
	return true
}

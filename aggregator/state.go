// Package aggregator implements the fusion engine: spec §4.7. It consumes
// the fan-in signals:all stream and produces CompositeSignals.
package aggregator

import (
	"sort"
	"time"

	"kass/model"
)

// MarketState is the per-market active-signal table and emission-throttle
// bookkeeping the Aggregator maintains, stored one-per-market in a
// market.Arena.
type MarketState struct {
	active map[string]model.Signal // key: signalType + "|" + direction
	regime model.Regime

	haveEmitted     bool
	lastEmitted     model.CompositeSignal
	lastEmittedWall time.Time // wall-clock, per spec §9's heartbeat exception
}

func NewMarketState() *MarketState {
	return &MarketState{active: make(map[string]model.Signal)}
}

func signalKey(t model.SignalType, d model.Direction) string {
	return string(t) + "|" + string(d)
}

// expire drops every active signal whose ts+ttl has elapsed as of now
// (spec §3, §8 property 5).
func (s *MarketState) expire(now time.Time) {
	for k, sig := range s.active {
		if !sig.ActiveAt(now) {
			delete(s.active, k)
		}
	}
}

// evictOpposite removes any existing active entry of the same SignalType
// but a different Direction, per spec §3's "a signal of opposite direction
// within the same type evicts the prior one".
func (s *MarketState) evictOpposite(sig model.Signal) {
	for k, v := range s.active {
		if v.SignalType == sig.SignalType && v.Direction != sig.Direction {
			delete(s.active, k)
		}
	}
}

// upsert conservatively reorders per spec §5: a signal older than the
// current active entry of the same (type,direction) key is treated as
// stale and discarded instead of replacing it.
func (s *MarketState) upsert(sig model.Signal) {
	s.evictOpposite(sig)
	key := signalKey(sig.SignalType, sig.Direction)
	if prev, ok := s.active[key]; ok && sig.Ts.Before(prev.Ts) {
		return
	}
	s.active[key] = sig
}

func (s *MarketState) activeIDs() []string {
	ids := make([]string, 0, len(s.active))
	for _, sig := range s.active {
		ids = append(ids, sig.SignalID)
	}
	sort.Strings(ids)
	return ids
}

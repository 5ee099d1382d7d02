// Package toxicity implements the Flow-Toxicity (VPIN) processor: spec §4.2.
package toxicity

import (
	"math"
	"time"
)

// bucket is one closed volume bucket's classification.
type bucket struct {
	closedAt  time.Time
	volume    int
	imbalance float64 // [0,1]
	netBuy    bool
}

// MarketState is the per-market accumulator the VPIN processor maintains,
// stored one-per-market in a market.Arena.
type MarketState struct {
	targetVolume int // current bucket target size V

	// open bucket accumulation
	buyVolume   int
	sellVolume  int
	bucketStart time.Time

	// rolling mean/variance of bucket volume, for the burst sub-signal and
	// for re-estimating targetVolume (spec: "V = rolling-average 1-minute
	// volume").
	volumeEWMA    float64
	volumeVarEWMA float64
	haveEWMA      bool

	window   []bucket // ring buffer, oldest first, capped at K
	windowK  int
	lastVPIN float64
	aboveThr bool // whether VPIN was >= threshold as of the last close
}

func newMarketState(minVolume, windowK int) *MarketState {
	return &MarketState{
		targetVolume: minVolume,
		windowK:      windowK,
	}
}

func (s *MarketState) filled() int {
	if len(s.window) > s.windowK {
		return s.windowK
	}
	return len(s.window)
}

// vpin recomputes the sliding-window mean imbalance (spec step 3).
func (s *MarketState) vpin() float64 {
	if len(s.window) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range s.window {
		sum += b.imbalance
	}
	return sum / float64(len(s.window))
}

func (s *MarketState) pushBucket(b bucket) {
	s.window = append(s.window, b)
	if len(s.window) > s.windowK {
		s.window = s.window[len(s.window)-s.windowK:]
	}
	s.lastVPIN = s.vpin()

	if s.haveEWMA {
		// half-life-free simple EWMA over bucket volumes, alpha=0.1.
		delta := float64(b.volume) - s.volumeEWMA
		s.volumeEWMA += 0.1 * delta
		s.volumeVarEWMA = 0.9*s.volumeVarEWMA + 0.1*delta*delta
	} else {
		s.volumeEWMA = float64(b.volume)
		s.haveEWMA = true
	}
}

// volumeStd is the rolling standard deviation of bucket volume, used to
// z-score a burst candidate.
func (s *MarketState) volumeStd() float64 {
	if s.volumeVarEWMA <= 0 {
		return 0
	}
	return math.Sqrt(s.volumeVarEWMA)
}

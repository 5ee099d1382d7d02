package crossmarket

import (
	"math"
	"time"

	"kass/model"
)

// Config carries the thresholds spec §4.5 parameterizes.
type Config struct {
	LeaderMinMove   int // cents
	FollowerMaxMove int // cents
	WindowSec       int // follower lag window, seconds
	LeaderWindowSec int // leader move window, seconds (default 60)

	// Correlation is the pluggable predicate resolving spec §9's Open
	// Question. Nil defaults to "always correlated" (plain sibling-of-event
	// rule).
	Correlation CorrelationFunc

	SelfSuppressSec int // default 60
}

func (c Config) leaderWindow() time.Duration {
	if c.LeaderWindowSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.LeaderWindowSec) * time.Second
}

func (c Config) followerWindow() time.Duration {
	if c.WindowSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.WindowSec) * time.Second
}

func (c Config) selfSuppress() time.Duration {
	if c.SelfSuppressSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.SelfSuppressSec) * time.Second
}

// Step applies one price observation for marketID (a member of the event
// tracked by state) and returns zero or more corrective signals for lagging
// siblings, per spec §4.5's algorithm.
func Step(state *EventState, eventID, marketID string, ts time.Time, yesPrice int, cfg Config, ids *model.IDGenerator) []model.Signal {
	keep := cfg.followerWindow()
	if cfg.leaderWindow() > keep {
		keep = cfg.leaderWindow()
	}

	mp := state.ensure(marketID)
	mp.push(ts, yesPrice, keep)

	leaderMove := mp.moveSince(cfg.leaderWindow(), ts)
	leaderMinMove := cfg.LeaderMinMove
	if leaderMinMove <= 0 {
		leaderMinMove = 3
	}
	if absInt(leaderMove) < leaderMinMove {
		return nil
	}
	mp.lastMoveTs = ts
	mp.lastMoveMag = leaderMove

	leaderReturns := mp.returns()

	followerMaxMove := cfg.FollowerMaxMove
	if followerMaxMove <= 0 {
		followerMaxMove = 1
	}

	var signals []model.Signal
	for siblingID, sib := range state.markets {
		if siblingID == marketID {
			continue
		}
		sibMove := sib.moveSince(cfg.followerWindow(), ts)
		if absInt(sibMove) >= followerMaxMove {
			continue // sibling already repriced, not lagging
		}
		if cfg.Correlation != nil && !cfg.Correlation(leaderReturns, sib.returns()) {
			continue
		}

		dir := model.DirectionBuyNo
		if leaderMove < 0 {
			dir = model.DirectionBuyYes
		}

		if sib.lastSignalDir == string(dir) && ts.Sub(sib.lastSignalTs) < cfg.selfSuppress() {
			continue // self-suppression, spec §4.5
		}

		lagSeconds := ts.Sub(mp.lastMoveTs).Seconds()
		strength := clamp01(float64(absInt(leaderMove))/10) * decay(lagSeconds, 60)
		noise := clamp01(float64(absInt(sibMove)) / float64(followerMaxMove*4))
		confidence := clamp01(1 - noise)

		impliedEdge := float64(absInt(leaderMove) - absInt(sibMove))

		sig := model.Signal{
			SignalID:   ids.Next(),
			Ts:         ts,
			SignalType: model.SignalTypeCrossMarket,
			MarketID:   siblingID,
			EventID:    eventID,
			Direction:  dir,
			Strength:   strength,
			Confidence: confidence,
			Urgency:    model.UrgencyNormal,
			TTLSeconds: 180,
			Metadata: map[string]interface{}{
				"leader_market": marketID,
				"leader_move":   leaderMove,
				"lag_seconds":   lagSeconds,
				"implied_edge":  impliedEdge,
			},
		}
		sib.lastSignalDir = string(dir)
		sib.lastSignalTs = ts
		signals = append(signals, sig)
	}
	return signals
}

// decay discounts strength by how long ago the leader moved, halving every
// halflifeSec seconds.
func decay(elapsedSec, halflifeSec float64) float64 {
	if halflifeSec <= 0 {
		return 1
	}
	return math.Pow(0.5, elapsedSec/halflifeSec)
}

package store

import (
	"encoding/json"
	"fmt"

	"kass/model"
)

// Writer persists emitted records verbatim, append-only, per spec §6.4.
type Writer struct {
	db *DB
}

func NewWriter(db *DB) *Writer {
	return &Writer{db: db}
}

// SaveSignal inserts one Signal row. A duplicate signal_id (e.g. from the
// benign at-least-once republish spec §7 allows) is ignored rather than
// erroring — the log is append-only but still keyed by signal_id for
// idempotent replay.
func (w *Writer) SaveSignal(sig model.Signal) error {
	meta, err := json.Marshal(sig.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal signal metadata: %w", err)
	}
	rec := SignalRecord{
		SignalID:   sig.SignalID,
		Ts:         sig.Ts,
		SignalType: string(sig.SignalType),
		MarketID:   sig.MarketID,
		EventID:    sig.EventID,
		SeriesID:   sig.SeriesID,
		Direction:  string(sig.Direction),
		Strength:   sig.Strength,
		Confidence: sig.Confidence,
		Urgency:    string(sig.Urgency),
		TTLSeconds: sig.TTLSeconds,
		Metadata:   string(meta),
	}
	return w.db.db.Where("signal_id = ?", sig.SignalID).
		FirstOrCreate(&rec).Error
}

func (w *Writer) SaveComposite(c model.CompositeSignal) error {
	ids, err := json.Marshal(c.ActiveSignalIDs)
	if err != nil {
		return fmt.Errorf("store: marshal active signal ids: %w", err)
	}
	rec := CompositeRecord{
		Ts:                c.Ts,
		MarketID:          c.MarketID,
		Direction:         string(c.Direction),
		CompositeScore:    c.CompositeScore,
		Regime:            string(c.Regime),
		ActiveSignalIDs:   string(ids),
		ActiveSignalCount: c.ActiveSignalCount,
	}
	return w.db.db.Create(&rec).Error
}

func (w *Writer) SaveRegimeTransition(t model.RegimeTransition) error {
	rec := RegimeTransitionRecord{
		Ts:        t.Ts,
		MarketID:  t.MarketID,
		OldRegime: string(t.OldRegime),
		NewRegime: string(t.NewRegime),
	}
	return w.db.db.Create(&rec).Error
}

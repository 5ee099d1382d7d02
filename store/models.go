package store

import "time"

// SignalRecord is the append-only row persisted for every emitted Signal
// (spec §6.4), metadata stored as JSON text the way the teacher's
// TradingSignalDB stores its free-form fields.
type SignalRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	SignalID   string `gorm:"uniqueIndex;size:128"`
	Ts         time.Time `gorm:"index"`
	SignalType string    `gorm:"index;size:64"`
	MarketID   string    `gorm:"index;size:64"`
	EventID    string    `gorm:"index;size:64"`
	SeriesID   string    `gorm:"size:64"`
	Direction  string    `gorm:"size:16"`
	Strength   float64
	Confidence float64
	Urgency    string `gorm:"size:16"`
	TTLSeconds int
	Metadata   string `gorm:"type:jsonb"`
}

func (SignalRecord) TableName() string { return "signal_log" }

// CompositeRecord is the append-only row persisted for every emitted
// CompositeSignal.
type CompositeRecord struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement"`
	Ts                time.Time `gorm:"index"`
	MarketID          string    `gorm:"index;size:64"`
	Direction         string    `gorm:"size:16"`
	CompositeScore    float64
	Regime            string `gorm:"size:16"`
	ActiveSignalIDs   string `gorm:"type:jsonb"`
	ActiveSignalCount int
}

func (CompositeRecord) TableName() string { return "composite_log" }

// RegimeTransitionRecord is the append-only row persisted for every regime
// transition (spec §3/§8 property 4: strictly time-ordered per market).
type RegimeTransitionRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Ts        time.Time `gorm:"index"`
	MarketID  string    `gorm:"index;size:64"`
	OldRegime string    `gorm:"size:16"`
	NewRegime string    `gorm:"size:16"`
}

func (RegimeTransitionRecord) TableName() string { return "regime_log" }

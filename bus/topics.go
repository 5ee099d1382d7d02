// Package bus implements KASS's durable message bus on top of Redis
// Streams, giving every stream consumer-group membership and at-least-once
// delivery the way spec §6 requires. It is grounded on the teacher's
// cache/redis.go, which wraps the same *redis.Client for JSON-marshaled
// get/set/publish — bus generalizes that wrapping to XADD/XREADGROUP/XACK.
package bus

// Raw input streams consumed by the core (spec §6.1).
const (
	StreamTrades          = "trades"
	StreamTickerUpdates    = "ticker_updates"
	StreamOrderbookDeltas = "orderbook_deltas"
	StreamLifecycle       = "lifecycle"
	StreamSystem          = "system"
	// StreamMarketMeta carries MarketMeta snapshots from the out-of-core
	// discovery poller (spec §3: "maintained by discovery; read by the
	// core") — not one of spec §6.1's named streams verbatim, but the
	// concrete channel that note implies, alongside the optional "system"
	// stream.
	StreamMarketMeta = "market_meta"
)

// Output streams published by the core (spec §6.2).
const (
	StreamSignalsToxicity   = "signals:flow_toxicity"
	StreamSignalsOIDiverge  = "signals:oi_divergence"
	StreamSignalsRegime     = "signals:regime"
	StreamSignalsCrossMkt   = "signals:cross_market"
	StreamSignalsLifecycle  = "signals:lifecycle"
	StreamSignalsAll        = "signals:all"
	StreamComposite         = "signals:composite"
)

// DefaultMaxLen bounds stream length with an approximate XADD MAXLEN trim —
// the broker's durable retention window is finite, matching the "replay a
// few minutes on restart" ownership rule in spec §3.
const DefaultMaxLen = 200_000

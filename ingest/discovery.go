package ingest

import (
	"context"
	"log"
	"time"

	"kass/bus"
	"kass/model"
)

// MetaFetcher retrieves the current MarketMeta snapshot from the exchange's
// discovery REST API. Implementations live outside the core; KASS ships a
// no-op-friendly interface so the poller itself can be tested without a
// live endpoint.
type MetaFetcher interface {
	FetchAll(ctx context.Context) ([]model.MarketMeta, error)
}

// DiscoveryPoller periodically fetches market metadata and republishes it
// onto the market_meta stream so every processor's MetaStore stays current
// (spec §3: "maintained by discovery; read by the core"). Its Start/Stop
// ticker-loop shape is grounded on the teacher's RegimeDetector/
// CorrelationAnalyzer periodic-job pattern.
type DiscoveryPoller struct {
	fetcher   MetaFetcher
	publisher *bus.Publisher
	interval  time.Duration
	done      chan struct{}
}

func NewDiscoveryPoller(fetcher MetaFetcher, publisher *bus.Publisher, interval time.Duration) *DiscoveryPoller {
	return &DiscoveryPoller{fetcher: fetcher, publisher: publisher, interval: interval, done: make(chan struct{})}
}

func (p *DiscoveryPoller) Start(ctx context.Context) {
	log.Println("🔎 Market discovery poller started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			log.Println("🔎 Market discovery poller stopped")
			return
		case <-p.done:
			return
		}
	}
}

func (p *DiscoveryPoller) Stop() {
	close(p.done)
}

func (p *DiscoveryPoller) poll(ctx context.Context) {
	metas, err := p.fetcher.FetchAll(ctx)
	if err != nil {
		log.Printf("⚠️  [discovery] fetch failed: %v", err)
		return
	}
	for _, m := range metas {
		if _, err := p.publisher.Publish(ctx, bus.StreamMarketMeta, m); err != nil {
			log.Printf("⚠️  [discovery] publish failed for %s: %v", m.MarketID, err)
		}
	}
	log.Printf("✅ [discovery] published %d market meta records", len(metas))
}

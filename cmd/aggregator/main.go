// Command aggregator runs the fusion engine as an independent process, per
// spec §5 and §4.7. Persisting its output is a separate downstream writer's
// job (spec §6.4, see cmd/store) — the aggregator itself only fuses and
// publishes.
package main

import (
	"context"
	"log"

	"kass/aggregator"
	"kass/bus"
	"kass/config"
	"kass/market"
	"kass/runtimeutil"
)

func main() {
	cfg := config.Load()
	ctx, cancel := runtimeutil.WithShutdown(context.Background())
	defer cancel()

	redisClient := runtimeutil.Redis(cfg)
	defer redisClient.Close()

	publisher := bus.NewPublisher(redisClient)
	consumer, err := bus.NewConsumer(ctx, redisClient, cfg.ConsumerGroupPrefix+"-aggregator", "aggregator-1",
		bus.StreamSignalsAll, bus.StreamLifecycle)
	if err != nil {
		log.Fatalf("🔥 [aggregator] bus consumer: %v", err)
	}

	arena := market.NewArena[aggregator.MarketState](10_000)
	agg := aggregator.New(arena, aggregator.Config{
		Weights:         cfg.Agg.Weights,
		EmitDelta:       cfg.Agg.EmitDelta,
		NeutralBand:     cfg.Agg.NeutralBand,
		HeartbeatSec:    cfg.Agg.HeartbeatSec,
		DedupeWindowSec: cfg.Agg.DedupeWindowSec,
	})

	runner := aggregator.NewRunner("aggregator", consumer, publisher, agg)

	log.Println("🚀 [aggregator] processor started")
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("🔥 [aggregator] run: %v", err)
	}
	log.Println("✅ [aggregator] processor stopped")
}

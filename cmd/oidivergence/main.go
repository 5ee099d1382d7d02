// Command oidivergence runs the OI-Divergence processor as an independent
// process, per spec §5.
package main

import (
	"context"
	"log"
	"time"

	"kass/bus"
	"kass/config"
	"kass/market"
	"kass/model"
	"kass/oidivergence"
	"kass/processor"
	"kass/runtimeutil"
)

func main() {
	cfg := config.Load()
	ctx, cancel := runtimeutil.WithShutdown(context.Background())
	defer cancel()

	redisClient := runtimeutil.Redis(cfg)
	defer redisClient.Close()

	publisher := bus.NewPublisher(redisClient)
	consumer, err := bus.NewConsumer(ctx, redisClient, cfg.ConsumerGroupPrefix+"-oidivergence", "oidivergence-1",
		bus.StreamTickerUpdates, bus.StreamLifecycle)
	if err != nil {
		log.Fatalf("🔥 [oidivergence] bus consumer: %v", err)
	}

	arena := market.NewArena[oidivergence.MarketState](10_000)
	ids := model.NewIDGenerator("oidivergence")
	handler := oidivergence.NewHandler(arena, oidivergence.Config{
		ZScoreThreshold: cfg.OI.ZScoreThreshold,
		EWMAHalfLifeSec: cfg.OI.EWMAHalfLifeSec,
	}, ids)
	gate := processor.NewGate(time.Duration(cfg.CooldownSeconds)*time.Second, cfg.MinDelta)

	proc := processor.NewBaseProcessor("oidivergence", consumer, publisher, bus.StreamSignalsOIDiverge, handler, gate)

	log.Println("🚀 [oidivergence] processor started")
	if err := proc.Run(ctx); err != nil {
		log.Fatalf("🔥 [oidivergence] run: %v", err)
	}
	log.Println("✅ [oidivergence] processor stopped")
}

// Command regime runs the Regime state-machine processor as an independent
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
	"kass/processor"
	"kass/regime"
	"kass/runtimeutil"
)

func main() {
	cfg := config.Load()
	ctx, cancel := runtimeutil.WithShutdown(context.Background())
	defer cancel()

	redisClient := runtimeutil.Redis(cfg)
	defer redisClient.Close()

	publisher := bus.NewPublisher(redisClient)
	consumer, err := bus.NewConsumer(ctx, redisClient, cfg.ConsumerGroupPrefix+"-regime", "regime-1",
		bus.StreamTrades, bus.StreamTickerUpdates, bus.StreamOrderbookDeltas, bus.StreamLifecycle, bus.StreamMarketMeta)
	if err != nil {
		log.Fatalf("🔥 [regime] bus consumer: %v", err)
	}

	arena := market.NewArena[regime.MarketState](10_000)
	ids := model.NewIDGenerator("regime")
	meta := market.NewMetaStore()
	handler := regime.NewHandler(arena, regime.Config{
		EvalPeriodSec:   cfg.Regime.EvalPeriodSec,
		HysteresisSec:   cfg.Regime.HysteresisSec,
		PreSettleMinute: cfg.Regime.PreSettleMinute,
	}, ids, meta)
	gate := processor.NewGate(time.Duration(cfg.CooldownSeconds)*time.Second, cfg.MinDelta)

	proc := processor.NewBaseProcessor("regime", consumer, publisher, bus.StreamSignalsRegime, handler, gate)

	log.Println("🚀 [regime] processor started")
	if err := proc.Run(ctx); err != nil {
		log.Fatalf("🔥 [regime] run: %v", err)
	}
	log.Println("✅ [regime] processor stopped")
}

// Command lifecycle runs the Lifecycle-Alpha processor as an independent
// process, per spec §5.
package main

import (
	"context"
	"log"
	"time"

	"kass/bus"
	"kass/config"
	"kass/lifecycle"
	"kass/market"
	"kass/model"
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
	consumer, err := bus.NewConsumer(ctx, redisClient, cfg.ConsumerGroupPrefix+"-lifecycle", "lifecycle-1",
		bus.StreamLifecycle, bus.StreamTickerUpdates, bus.StreamMarketMeta)
	if err != nil {
		log.Fatalf("🔥 [lifecycle] bus consumer: %v", err)
	}

	arena := market.NewArena[lifecycle.EventState](5_000)
	ids := model.NewIDGenerator("lifecycle")
	meta := market.NewMetaStore()
	handler := lifecycle.NewHandler(arena, lifecycle.Config{
		CascadeTTLSec: cfg.Lifecycle.CascadeTTLSec,
	}, ids, meta)
	gate := processor.NewGate(time.Duration(cfg.CooldownSeconds)*time.Second, cfg.MinDelta)

	proc := processor.NewBaseProcessor("lifecycle", consumer, publisher, bus.StreamSignalsLifecycle, handler, gate)

	log.Println("🚀 [lifecycle] processor started")
	if err := proc.Run(ctx); err != nil {
		log.Fatalf("🔥 [lifecycle] run: %v", err)
	}
	log.Println("✅ [lifecycle] processor stopped")
}

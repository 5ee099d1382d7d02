// Command toxicity runs the Flow-Toxicity (VPIN) processor as an
// independent process, per spec §5.
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
	"kass/runtimeutil"
	"kass/toxicity"
)

func main() {
	cfg := config.Load()
	ctx, cancel := runtimeutil.WithShutdown(context.Background())
	defer cancel()

	redisClient := runtimeutil.Redis(cfg)
	defer redisClient.Close()

	publisher := bus.NewPublisher(redisClient)
	consumer, err := bus.NewConsumer(ctx, redisClient, cfg.ConsumerGroupPrefix+"-toxicity", "toxicity-1",
		bus.StreamTrades, bus.StreamLifecycle)
	if err != nil {
		log.Fatalf("🔥 [toxicity] bus consumer: %v", err)
	}

	arena := market.NewArena[toxicity.MarketState](10_000)
	ids := model.NewIDGenerator("toxicity")
	handler := toxicity.NewHandler(arena, toxicity.Config{
		BucketMinVolume: cfg.VPIN.BucketMinVolume,
		Window:          cfg.VPIN.Window,
		Threshold:       cfg.VPIN.Threshold,
		High:            cfg.VPIN.High,
	}, ids)
	gate := processor.NewGate(time.Duration(cfg.CooldownSeconds)*time.Second, cfg.MinDelta)

	proc := processor.NewBaseProcessor("toxicity", consumer, publisher, bus.StreamSignalsToxicity, handler, gate)

	log.Println("🚀 [toxicity] processor started")
	if err := proc.Run(ctx); err != nil {
		log.Fatalf("🔥 [toxicity] run: %v", err)
	}
	log.Println("✅ [toxicity] processor stopped")
}

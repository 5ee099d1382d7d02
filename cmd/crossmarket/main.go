// Command crossmarket runs the Cross-Market Propagation processor as an
// independent process, per spec §5.
package main

import (
	"context"
	"log"
	"time"

	"kass/bus"
	"kass/config"
	"kass/crossmarket"
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
	consumer, err := bus.NewConsumer(ctx, redisClient, cfg.ConsumerGroupPrefix+"-crossmarket", "crossmarket-1",
		bus.StreamTickerUpdates, bus.StreamMarketMeta)
	if err != nil {
		log.Fatalf("🔥 [crossmarket] bus consumer: %v", err)
	}

	arena := market.NewArena[crossmarket.EventState](5_000)
	ids := model.NewIDGenerator("crossmarket")
	meta := market.NewMetaStore()
	handler := crossmarket.NewHandler(arena, crossmarket.Config{
		LeaderMinMove:   cfg.Cross.LeaderMinMove,
		FollowerMaxMove: cfg.Cross.FollowerMaxMove,
		WindowSec:       cfg.Cross.WindowSec,
	}, ids, meta)
	gate := processor.NewGate(time.Duration(cfg.CooldownSeconds)*time.Second, cfg.MinDelta)

	proc := processor.NewBaseProcessor("crossmarket", consumer, publisher, bus.StreamSignalsCrossMkt, handler, gate)

	log.Println("🚀 [crossmarket] processor started")
	if err := proc.Run(ctx); err != nil {
		log.Fatalf("🔥 [crossmarket] run: %v", err)
	}
	log.Println("✅ [crossmarket] processor stopped")
}

// Command ingest runs the out-of-core collaborators that turn the
// exchange's push stream and discovery API into the core's raw bus streams
// (spec §3, §6.1).
package main

import (
	"context"
	"log"
	"time"

	"kass/bus"
	"kass/config"
	"kass/ingest"
	"kass/runtimeutil"
)

func main() {
	cfg := config.Load()
	ctx, cancel := runtimeutil.WithShutdown(context.Background())
	defer cancel()

	redisClient := runtimeutil.Redis(cfg)
	defer redisClient.Close()
	publisher := bus.NewPublisher(redisClient)

	fetcher := ingest.NewHTTPMetaFetcher(cfg.Ingest.DiscoveryBaseURL, cfg.Ingest.BearerToken)
	poller := ingest.NewDiscoveryPoller(fetcher, publisher, time.Duration(cfg.Ingest.DiscoveryPollSec)*time.Second)
	go poller.Start(ctx)

	wsClient := ingest.NewClient(cfg.Ingest.WebSocketURL, cfg.Ingest.BearerToken)
	router := ingest.NewRouter(wsClient, publisher)

	log.Println("🚀 [ingest] started")
	for {
		select {
		case <-ctx.Done():
			log.Println("✅ [ingest] stopped")
			return
		default:
		}

		if err := wsClient.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				log.Println("✅ [ingest] stopped")
				return
			}
			log.Printf("⚠️  [ingest] connect failed: %v", err)
			continue
		}
		wsClient.StartPing(ctx, time.Duration(cfg.Ingest.PingIntervalSec)*time.Second)

		if err := router.Run(ctx); err != nil {
			log.Printf("⚠️  [ingest] stream dropped: %v (reconnecting)", err)
		}
		wsClient.Close()
	}
}

// Package runtimeutil holds the small amount of process wiring every
// cmd/* binary repeats: a Redis client constructor and the
// signal-to-context shutdown wiring the teacher's app.gracefulShutdown
// uses (app/app.go), generalized so each of KASS's independent processes
// (spec §5: "each processor and the aggregator is an independent process")
// doesn't have to reimplement it.
package runtimeutil

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"kass/config"
)

// Redis dials the bus's backing Redis instance.
func Redis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisHost + ":" + cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
}

// WithShutdown returns a context cancelled on SIGINT/SIGTERM, mirroring the
// teacher's gracefulShutdown signal handling but expressed as a context so
// every processor's cooperative "observe a stop flag between batches" loop
// (spec §5) can select on ctx.Done() directly.
func WithShutdown(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("🛑 received %s, shutting down", sig)
		cancel()
	}()
	return ctx, cancel
}

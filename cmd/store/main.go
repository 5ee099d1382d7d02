// Command store runs the downstream audit writer (spec §6.4): it consumes
// every emitted Signal and CompositeSignal and persists each verbatim,
// append-only. It is a collaborator outside the core's signal-generation
// scope (spec §1), kept as its own process so a slow or down database never
// backpressures signal production.
package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"kass/bus"
	"kass/config"
	"kass/model"
	"kass/runtimeutil"
	"kass/store"
)

func main() {
	cfg := config.Load()
	ctx, cancel := runtimeutil.WithShutdown(context.Background())
	defer cancel()

	redisClient := runtimeutil.Redis(cfg)
	defer redisClient.Close()

	db, err := store.Connect(cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseName, cfg.DatabaseUser, cfg.DatabasePassword)
	if err != nil {
		log.Fatalf("🔥 [store] database connect: %v", err)
	}
	defer db.Close()
	if err := db.InitSchema(); err != nil {
		log.Fatalf("🔥 [store] schema init: %v", err)
	}
	writer := store.NewWriter(db)

	consumer, err := bus.NewConsumer(ctx, redisClient, cfg.ConsumerGroupPrefix+"-store", "store-1",
		bus.StreamSignalsAll, bus.StreamComposite)
	if err != nil {
		log.Fatalf("🔥 [store] bus consumer: %v", err)
	}

	log.Println("🚀 [store] audit writer started")
	run(ctx, consumer, writer)
	log.Println("✅ [store] audit writer stopped")
}

func run(ctx context.Context, consumer *bus.Consumer, writer *store.Writer) {
	backoff := time.Second
	const maxBackoff = 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := consumer.Read(ctx, 256, 2*time.Second)
		if err != nil {
			log.Printf("⚠️  [store] bus read failed: %v (retrying in %v)", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		for _, m := range msgs {
			if err := process(m, writer); err != nil {
				log.Printf("⚠️  [store] %s/%s failed: %v", m.Stream, m.ID, err)
				continue
			}
			if err := consumer.Ack(ctx, m.Stream, m.ID); err != nil {
				log.Printf("⚠️  [store] ack %s/%s failed: %v", m.Stream, m.ID, err)
			}
		}
	}
}

func process(m bus.Message, writer *store.Writer) error {
	switch m.Stream {
	case bus.StreamSignalsAll:
		var sig model.Signal
		if err := json.Unmarshal(m.Payload, &sig); err != nil {
			return nil // malformed, dropped — never redelivered usefully
		}
		if err := writer.SaveSignal(sig); err != nil {
			return err
		}
		if sig.SignalType == model.SignalTypeRegime {
			if err := saveRegimeTransition(sig, writer); err != nil {
				return err
			}
		}
		return nil

	case bus.StreamComposite:
		var comp model.CompositeSignal
		if err := json.Unmarshal(m.Payload, &comp); err != nil {
			return nil
		}
		return writer.SaveComposite(comp)

	default:
		return nil
	}
}

func saveRegimeTransition(sig model.Signal, writer *store.Writer) error {
	old, _ := sig.Metadata["old_regime"].(string)
	next, _ := sig.Metadata["new_regime"].(string)
	if next == "" {
		return nil
	}
	return writer.SaveRegimeTransition(model.RegimeTransition{
		Ts:        sig.Ts,
		MarketID:  sig.MarketID,
		OldRegime: model.Regime(old),
		NewRegime: model.Regime(next),
	})
}

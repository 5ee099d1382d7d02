package aggregator

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"kass/bus"
	"kass/model"
)

// Runner drives the Aggregator's read-fuse-publish loop. It mirrors
// processor.BaseProcessor's shape (batch read, ack-after-success, capped
// exponential backoff, cooperative shutdown) but publishes CompositeSignals
// instead of Signals, so it cannot reuse processor.Handler directly — spec
// §4.7 gives the Aggregator a genuinely different output type from every
// other processor.
type Runner struct {
	Name         string
	Consumer     *bus.Consumer
	Publisher    *bus.Publisher
	Agg          *Aggregator
	BatchSize    int64
	BlockTimeout time.Duration

	Processed int64
	Emitted   int64
	Errors    int64
}

func NewRunner(name string, consumer *bus.Consumer, publisher *bus.Publisher, agg *Aggregator) *Runner {
	return &Runner{
		Name:         name,
		Consumer:     consumer,
		Publisher:    publisher,
		Agg:          agg,
		BatchSize:    256,
		BlockTimeout: 2 * time.Second,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := r.Consumer.Read(ctx, r.BatchSize, r.BlockTimeout)
		if err != nil {
			log.Printf("⚠️  [%s] bus read failed: %v (retrying in %v)", r.Name, err, backoff)
			select {
			case <-ctx.Done():
				return nil
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
			if err := r.process(ctx, m); err != nil {
				log.Printf("⚠️  [%s] %s/%s not acked: %v", r.Name, m.Stream, m.ID, err)
			}
		}
	}
}

func (r *Runner) process(ctx context.Context, m bus.Message) error {
	r.Processed++

	switch m.Stream {
	case bus.StreamSignalsAll:
		var sig model.Signal
		if err := json.Unmarshal(m.Payload, &sig); err != nil {
			r.Errors++
			log.Printf("☠️  [%s] malformed signal on %s/%s: %v", r.Name, m.Stream, m.ID, err)
			return r.Consumer.Ack(ctx, m.Stream, m.ID)
		}
		if err := sig.Validate(); err != nil {
			r.Errors++
			log.Printf("☠️  [%s] invalid signal on %s/%s: %v", r.Name, m.Stream, m.ID, err)
			return r.Consumer.Ack(ctx, m.Stream, m.ID)
		}
		for _, comp := range r.Agg.StepSignal(sig) {
			if err := comp.Validate(); err != nil {
				log.Fatalf("🔥 [%s] produced an invalid composite: %v", r.Name, err)
			}
			if _, err := r.Publisher.Publish(ctx, bus.StreamComposite, comp); err != nil {
				r.Errors++
				return err
			}
			r.Emitted++
		}

	case bus.StreamLifecycle:
		var l model.LifecycleEvent
		if err := json.Unmarshal(m.Payload, &l); err != nil {
			r.Errors++
			log.Printf("☠️  [%s] malformed lifecycle event on %s/%s: %v", r.Name, m.Stream, m.ID, err)
			return r.Consumer.Ack(ctx, m.Stream, m.ID)
		}
		if l.Status.Terminal() {
			r.Agg.StepTerminal(l.MarketID)
		}
	}

	return r.Consumer.Ack(ctx, m.Stream, m.ID)
}

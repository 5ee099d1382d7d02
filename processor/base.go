package processor

import (
	"context"
	"log"
	"sync"
	"time"

	"kass/bus"
)

// Stats counts outcomes for a running processor instance, exposed so a
// cmd/ main can log or serve them for operators.
type Stats struct {
	mu          sync.Mutex
	Processed   int64
	Emitted     int64
	Gated       int64
	ErrorCounts map[Kind]int64
}

func newStats() *Stats {
	return &Stats{ErrorCounts: make(map[Kind]int64)}
}

func (s *Stats) incError(k Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorCounts[k]++
}

// Snapshot returns a copy safe to read without holding the processor's lock.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Stats{Processed: s.Processed, Emitted: s.Emitted, Gated: s.Gated, ErrorCounts: make(map[Kind]int64, len(s.ErrorCounts))}
	for k, v := range s.ErrorCounts {
		out.ErrorCounts[k] = v
	}
	return out
}

// BaseProcessor is the shared read-handle-gate-publish-ack loop every
// domain processor (toxicity, oidivergence, regime, crossmarket, lifecycle)
// is built on, per spec §4.1 and §5's single-threaded-per-shard rule. It
// owns the bus plumbing so each domain package only has to implement
// Handler.
type BaseProcessor struct {
	Name         string
	Consumer     *bus.Consumer
	Publisher    *bus.Publisher
	OwnStream    string
	Handler      Handler
	Gate         *Gate
	BatchSize    int64
	BlockTimeout time.Duration
	MaxRetries   int64

	Stats *Stats
}

// NewBaseProcessor wires the common loop. BatchSize/BlockTimeout default to
// spec-reasonable values when left zero.
func NewBaseProcessor(name string, consumer *bus.Consumer, publisher *bus.Publisher, ownStream string, handler Handler, gate *Gate) *BaseProcessor {
	return &BaseProcessor{
		Name:         name,
		Consumer:     consumer,
		Publisher:    publisher,
		OwnStream:    ownStream,
		Handler:      handler,
		Gate:         gate,
		BatchSize:    64,
		BlockTimeout: 2 * time.Second,
		MaxRetries:   5,
		Stats:        newStats(),
	}
}

// Run drives the read-handle-ack loop until ctx is cancelled. A bus read
// failure backs off exponentially, capped at 10s, matching the teacher's
// reconnect loop.
func (p *BaseProcessor) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := p.Consumer.Read(ctx, p.BatchSize, p.BlockTimeout)
		if err != nil {
			log.Printf("⚠️  [%s] bus read failed: %v (retrying in %v)", p.Name, err, backoff)
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
			if err := p.process(ctx, m); err != nil {
				log.Printf("⚠️  [%s] %s/%s not acked: %v", p.Name, m.Stream, m.ID, err)
			}
		}
	}
}

func (p *BaseProcessor) process(ctx context.Context, m bus.Message) error {
	p.Stats.mu.Lock()
	p.Stats.Processed++
	p.Stats.mu.Unlock()

	signals, err := p.Handler.HandleMessage(m.Stream, m.Payload, m.ReceivedAt)
	if err != nil {
		kind := KindOf(err)
		p.Stats.incError(kind)

		switch kind {
		case KindMalformed, KindStateUnderflow:
			// Acknowledge and move on — never redelivered.
			return p.Consumer.Ack(ctx, m.Stream, m.ID)
		case KindInvariantViolation:
			log.Fatalf("🔥 [%s] invariant violation on %s/%s: %v", p.Name, m.Stream, m.ID, err)
			return nil // unreachable
		default:
			if m.DeliveryCount > p.MaxRetries {
				log.Printf("☠️  [%s] poison message %s/%s after %d deliveries: %v", p.Name, m.Stream, m.ID, m.DeliveryCount, err)
				return p.Consumer.Ack(ctx, m.Stream, m.ID)
			}
			// Transient/downstream: leave unacked, the group redelivers it.
			return err
		}
	}

	for _, sig := range signals {
		if verr := sig.Validate(); verr != nil {
			log.Fatalf("🔥 [%s] produced an invalid signal: %v", p.Name, verr)
		}
		if p.Gate != nil && !p.Gate.Allow(sig) {
			p.Stats.mu.Lock()
			p.Stats.Gated++
			p.Stats.mu.Unlock()
			continue
		}
		if err := p.Publisher.PublishFanout(ctx, p.OwnStream, sig); err != nil {
			p.Stats.incError(KindDownstream)
			return Downstream(err)
		}
		p.Stats.mu.Lock()
		p.Stats.Emitted++
		p.Stats.mu.Unlock()
	}

	return p.Consumer.Ack(ctx, m.Stream, m.ID)
}

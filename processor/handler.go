package processor

import (
	"time"

	"kass/model"
)

// Handler is the pure decision logic of one processor: given a raw event
// from a named stream, update internal state and return the signals (if
// any) that state change produces. It never touches the bus directly — that
// lets every domain processor's core logic be replayed deterministically in
// a unit test (spec §9's "capability record" note).
//
// Errors must be classified with the constructors in errors.go so
// BaseProcessor can apply spec §7's handling rules.
type Handler interface {
	HandleMessage(stream string, payload []byte, receivedAt time.Time) ([]model.Signal, error)
}

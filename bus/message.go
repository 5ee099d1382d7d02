package bus

import "time"

// Message is one delivery from a consumer group read: the raw JSON payload
// plus enough bookkeeping to ack it or judge it a poison message.
type Message struct {
	Stream        string
	ID            string
	Payload       []byte
	DeliveryCount int64
	ReceivedAt    time.Time
}

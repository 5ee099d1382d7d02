// Package ingest implements the out-of-core collaborators spec §1 names as
// "produce raw-event streams the core consumes": a persistent push-stream
// WebSocket client and a polling market-discovery client. Both are
// boundary-only — they decode self-describing JSON records (spec §6.1) and
// hand them to the bus, without any of the core's stateful signal logic.
package ingest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a reconnecting WebSocket ingest client, grounded on the
// teacher's websocket/client.go connect/ping/reconnect shape but speaking
// self-describing JSON records instead of the teacher's private protobuf
// schema (see SPEC_FULL.md's DOMAIN STACK section for why protobuf is
// dropped).
type Client struct {
	url     string
	header  http.Header
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewClient(url, bearerToken string) *Client {
	header := make(http.Header)
	header.Set("Authorization", "Bearer "+bearerToken)
	return &Client{url: url, header: header}
}

// Connect dials the push stream. Exponential backoff capped at 10s matches
// every other KASS component's bus-outage handling (spec §4.8).
func (c *Client) Connect(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 10 * time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		conn, _, err := websocket.DefaultDialer.Dial(c.url, c.header)
		if err == nil {
			c.conn = conn
			log.Printf("✅ [ingest] connected to %s", c.url)
			return nil
		}
		log.Printf("⚠️  [ingest] connect to %s failed: %v (retrying in %v)", c.url, err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// StartPing keeps the connection alive with a periodic ping frame.
func (c *Client) StartPing(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.writeControl(websocket.PingMessage); err != nil {
					log.Printf("⚠️  [ingest] ping failed: %v", err)
					return
				}
			}
		}
	}()
}

func (c *Client) writeControl(messageType int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("ingest: connection is nil")
	}
	return c.conn.WriteControl(messageType, nil, time.Now().Add(5*time.Second))
}

// ReadMessage reads one raw JSON frame from the stream.
func (c *Client) ReadMessage() ([]byte, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("ingest: not connected")
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Package events fans browser lifecycle events out to connected
// WebSocket clients. Each client carries its own bounded queue and
// event type filter; a slow client loses events rather than stalling
// the publisher.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/api/schemas"
)

const clientQueueSize = 256

// PingInterval is how often the bus emits keepalive pings.
const PingInterval = 30 * time.Second

// Client is one subscriber's view of the bus.
type Client struct {
	id    uint64
	queue chan schemas.Event

	mu      sync.Mutex
	all     bool
	filters map[string]struct{}
}

// ID returns the client identifier handed out at attach time.
func (c *Client) ID() uint64 { return c.id }

// Events is the client's delivery queue.
func (c *Client) Events() <-chan schemas.Event { return c.queue }

// Subscribe adds event types to the client's filter. An empty list or a
// "*" entry subscribes to everything; naming concrete types narrows an
// all-events subscription down to those types.
func (c *Client) Subscribe(types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(types) == 0 {
		c.all = true
		return
	}
	for _, t := range types {
		if t == "*" {
			c.all = true
			return
		}
		c.filters[t] = struct{}{}
		c.all = false
	}
}

// Unsubscribe removes event types from the filter. Removing from an
// all-events subscription first narrows it to the named leftovers.
func (c *Client) Unsubscribe(types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.all {
		c.all = false
	}
	for _, t := range types {
		delete(c.filters, t)
	}
}

// wants reports whether the client should receive the event type.
// Connection bookkeeping events always pass.
func (c *Client) wants(eventType string) bool {
	switch eventType {
	case schemas.EventConnected, schemas.EventPing, schemas.EventPong:
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.all {
		return true
	}
	_, ok := c.filters[eventType]
	return ok
}

// Bus is the event publisher. All methods are safe for concurrent use.
type Bus struct {
	mu            sync.RWMutex
	clients       map[uint64]*Client
	nextClientID  atomic.Uint64
	logger        *zap.Logger
	serverVersion string
}

// NewBus creates a bus. serverVersion is reported in Connected events.
func NewBus(serverVersion string, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		clients:       make(map[uint64]*Client),
		logger:        logger,
		serverVersion: serverVersion,
	}
}

// Attach registers a new client subscribed to all events and queues its
// Connected handshake.
func (b *Bus) Attach() *Client {
	client := &Client{
		id:      b.nextClientID.Add(1),
		queue:   make(chan schemas.Event, clientQueueSize),
		all:     true,
		filters: make(map[string]struct{}),
	}

	b.mu.Lock()
	b.clients[client.id] = client
	b.mu.Unlock()

	client.queue <- schemas.NewConnectedEvent(client.id, b.serverVersion)
	b.logger.Debug("event client attached", zap.Uint64("client_id", client.id))
	return client
}

// Detach removes a client and closes its queue.
func (b *Bus) Detach(client *Client) {
	b.mu.Lock()
	_, ok := b.clients[client.id]
	delete(b.clients, client.id)
	b.mu.Unlock()

	if ok {
		close(client.queue)
		b.logger.Debug("event client detached", zap.Uint64("client_id", client.id))
	}
}

// ClientCount returns the number of attached clients.
func (b *Bus) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish delivers an event to every interested client. Full queues
// drop the event for that client.
func (b *Bus) Publish(event schemas.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, client := range b.clients {
		if !client.wants(event.Type) {
			continue
		}
		select {
		case client.queue <- event:
		default:
			b.logger.Warn("client queue full, dropping event",
				zap.Uint64("client_id", client.id),
				zap.String("event", event.Type))
		}
	}
}

// RunPinger broadcasts keepalive pings until the context ends.
func (b *Bus) RunPinger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = PingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Publish(schemas.NewPingEvent(uint64(time.Now().UnixMilli())))
		}
	}
}

// HandleCommand applies a client command: filter changes, or a ping
// that is answered with a pong on that client's queue alone.
func (b *Bus) HandleCommand(client *Client, cmd schemas.WSCommand) {
	switch cmd.Type {
	case schemas.WSCommandSubscribe, schemas.WSCommandUnsubscribe:
		var data schemas.WSSubscribeData
		if len(cmd.Data) > 0 {
			if err := json.Unmarshal(cmd.Data, &data); err != nil {
				b.logger.Warn("malformed subscription command",
					zap.Uint64("client_id", client.id),
					zap.Error(err))
				return
			}
		}
		if cmd.Type == schemas.WSCommandSubscribe {
			client.Subscribe(data.Events)
		} else {
			client.Unsubscribe(data.Events)
		}
	case schemas.WSCommandPing:
		select {
		case client.queue <- schemas.NewPongEvent(uint64(time.Now().UnixMilli())):
		default:
		}
	default:
		b.logger.Warn("unknown client command",
			zap.Uint64("client_id", client.id),
			zap.String("type", cmd.Type))
	}
}

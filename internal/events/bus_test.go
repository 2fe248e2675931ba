package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kibrowser/ki-browser/api/schemas"
)

func drainOne(t *testing.T, c *Client) schemas.Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return schemas.Event{}
	}
}

func TestAttachDeliversConnectedHandshake(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	defer bus.Detach(client)

	ev := drainOne(t, client)
	require.Equal(t, schemas.EventConnected, ev.Type)

	data, ok := ev.Data.(schemas.ConnectedData)
	require.True(t, ok)
	assert.Equal(t, client.ID(), data.ClientID)
	assert.Equal(t, "1.0.0", data.ServerVersion)
}

func TestPublishReachesAllClients(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	a := bus.Attach()
	b := bus.Attach()
	defer bus.Detach(a)
	defer bus.Detach(b)
	drainOne(t, a)
	drainOne(t, b)

	bus.Publish(schemas.NewTabCreatedEvent("tab-1", "https://example.com"))

	assert.Equal(t, schemas.EventTabCreated, drainOne(t, a).Type)
	assert.Equal(t, schemas.EventTabCreated, drainOne(t, b).Type)
	assert.Equal(t, 2, bus.ClientCount())
}

func TestSubscriptionFilters(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	defer bus.Detach(client)
	drainOne(t, client)

	// Naming concrete types replaces the attach-time all-events default.
	client.Subscribe([]string{schemas.EventTabClosed})

	bus.Publish(schemas.NewTabCreatedEvent("tab-1", "https://example.com"))
	bus.Publish(schemas.NewTabClosedEvent("tab-1"))

	ev := drainOne(t, client)
	assert.Equal(t, schemas.EventTabClosed, ev.Type)
	select {
	case extra := <-client.Events():
		t.Fatalf("unexpected event %s", extra.Type)
	default:
	}
}

func TestSubscribeCommandNarrowsDelivery(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	defer bus.Detach(client)
	drainOne(t, client)

	// The exact wire-path command a WebSocket client sends.
	bus.HandleCommand(client, schemas.WSCommand{
		Type: schemas.WSCommandSubscribe,
		Data: json.RawMessage(`{"events":["TabCreated"]}`),
	})

	bus.Publish(schemas.NewTitleChangedEvent("tab-1", "Example"))
	bus.Publish(schemas.NewLoadCompleteEvent("tab-1", "https://example.com"))
	bus.Publish(schemas.NewTabCreatedEvent("tab-1", "https://example.com"))

	ev := drainOne(t, client)
	assert.Equal(t, schemas.EventTabCreated, ev.Type)
	select {
	case extra := <-client.Events():
		t.Fatalf("filtered event %s was delivered", extra.Type)
	default:
	}
}

func TestWildcardSubscription(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	defer bus.Detach(client)
	drainOne(t, client)

	client.Unsubscribe([]string{schemas.EventTabCreated})
	client.Subscribe([]string{"*"})

	bus.Publish(schemas.NewTabCreatedEvent("tab-1", "https://example.com"))
	assert.Equal(t, schemas.EventTabCreated, drainOne(t, client).Type)
}

func TestConnectionEventsBypassFilters(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	defer bus.Detach(client)
	drainOne(t, client)

	client.Subscribe([]string{schemas.EventTabClosed})

	bus.Publish(schemas.NewPingEvent(123))
	ev := drainOne(t, client)
	assert.Equal(t, schemas.EventPing, ev.Type)
}

func TestFullQueueDropsEvent(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	defer bus.Detach(client)
	drainOne(t, client)

	for i := 0; i < clientQueueSize+10; i++ {
		bus.Publish(schemas.NewTabClosedEvent("tab-x"))
	}

	// The publisher must not have blocked and the queue holds at most
	// its capacity.
	assert.LessOrEqual(t, len(client.Events()), clientQueueSize)
}

func TestHandleCommandPing(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	other := bus.Attach()
	defer bus.Detach(client)
	defer bus.Detach(other)
	drainOne(t, client)
	drainOne(t, other)

	bus.HandleCommand(client, schemas.WSCommand{Type: schemas.WSCommandPing})

	ev := drainOne(t, client)
	assert.Equal(t, schemas.EventPong, ev.Type)

	// Pong goes only to the pinging client.
	select {
	case extra := <-other.Events():
		t.Fatalf("unexpected event %s on other client", extra.Type)
	default:
	}
}

func TestHandleCommandSubscribe(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	defer bus.Detach(client)
	drainOne(t, client)

	raw, err := json.Marshal(schemas.WSSubscribeData{Events: []string{schemas.EventNavigationComplete}})
	require.NoError(t, err)
	bus.HandleCommand(client, schemas.WSCommand{Type: schemas.WSCommandSubscribe, Data: raw})

	bus.Publish(schemas.NewNavigationCompleteEvent("tab-1", "https://example.com", "Example"))
	assert.Equal(t, schemas.EventNavigationComplete, drainOne(t, client).Type)
}

func TestRunPingerEmitsPings(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	defer bus.Detach(client)
	drainOne(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.RunPinger(ctx, 10*time.Millisecond)

	ev := drainOne(t, client)
	assert.Equal(t, schemas.EventPing, ev.Type)
	data, ok := ev.Data.(schemas.PingData)
	require.True(t, ok)
	assert.Positive(t, data.Timestamp)
}

func TestDetachClosesQueue(t *testing.T) {
	bus := NewBus("1.0.0", nil)
	client := bus.Attach()
	drainOne(t, client)

	bus.Detach(client)
	_, open := <-client.Events()
	assert.False(t, open)
	assert.Equal(t, 0, bus.ClientCount())

	// Double detach is a no-op.
	bus.Detach(client)
}

package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/api/schemas"
	"github.com/kibrowser/ki-browser/internal/ipc"
)

func TestProcessorRoundTrip(t *testing.T) {
	eng := newTestEngine(t, nil)
	ch := ipc.NewChannel(zap.NewNop())
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		NewProcessor(ch, eng, zap.NewNop()).Run(ctx)
		close(done)
	}()

	resp, err := ch.Send(ctx, ipc.CreateTab{URL: "https://example.com", Active: true})
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Error)
	id := resp.TabID

	resp, err = ch.Send(ctx, ipc.NewGetURL(id))
	require.NoError(t, err)
	require.True(t, resp.Success)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	assert.Equal(t, "https://example.com", payload["url"])

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop on context cancel")
	}
}

func TestProcessorStopsOnShutdown(t *testing.T) {
	eng := newTestEngine(t, nil)
	ch := ipc.NewChannel(zap.NewNop())
	defer ch.Close()

	done := make(chan struct{})
	go func() {
		NewProcessor(ch, eng, zap.NewNop()).Run(context.Background())
		close(done)
	}()

	resp, err := ch.Send(context.Background(), ipc.Shutdown{})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after shutdown")
	}

	resp2 := eng.Execute(context.Background(), ipc.GetTabs{})
	assert.False(t, resp2.Success)
}

func TestProcessorDrainsQueueOnShutdown(t *testing.T) {
	eng := newTestEngine(t, nil)
	ch := ipc.NewChannel(zap.NewNop())
	defer ch.Close()

	// Queue a command behind the shutdown sentinel before the processor
	// starts so both sit in the channel together.
	_, err := ch.Send(context.Background(), ipc.Shutdown{})
	require.NoError(t, err)

	type outcome struct {
		resp ipc.Response
		err  error
	}
	queued := make(chan outcome, 1)
	go func() {
		resp, err := ch.Send(context.Background(), ipc.GetTabs{})
		queued <- outcome{resp, err}
	}()

	// Give the queued send time to enqueue, then run the processor.
	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	NewProcessor(ch, eng, zap.NewNop()).Run(context.Background())

	select {
	case got := <-queued:
		// The sender must not sit out its reply timeout; it either
		// observes the closed channel or the rejection reply.
		if got.err != nil {
			require.ErrorIs(t, got.err, ipc.ErrChannelClosed)
		} else {
			assert.False(t, got.resp.Success)
			assert.Contains(t, got.resp.Error, "closed")
		}
		assert.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("queued command was not resolved after shutdown")
	}

	// Late senders fail fast instead of queueing into a dead channel.
	_, err = ch.Send(context.Background(), ipc.GetTabs{})
	require.ErrorIs(t, err, ipc.ErrChannelClosed)
}

func TestProcessorSerializesCommands(t *testing.T) {
	eng := newTestEngine(t, nil)
	ch := ipc.NewChannel(zap.NewNop())
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewProcessor(ch, eng, zap.NewNop()).Run(ctx)

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			resp, err := ch.Send(ctx, ipc.GetTabs{})
			if err == nil && !resp.Success {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	var listing schemas.TabsResponse
	resp := eng.Execute(context.Background(), ipc.GetTabs{})
	require.NoError(t, json.Unmarshal(resp.Data, &listing))
	assert.Empty(t, listing.Tabs)
}

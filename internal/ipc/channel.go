package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBufferSize = 256
	defaultTimeout    = 30 * time.Second
)

// ErrChannelClosed is returned when sending on a closed channel.
var ErrChannelClosed = errors.New("ipc channel closed")

// ErrTimeout is returned when the engine does not reply in time.
var ErrTimeout = errors.New("ipc command timed out")

// Request is one queued command with its reply slot.
type Request struct {
	ID      uint64
	Command Command
	reply   chan Response
}

// Reply delivers the response. A request whose sender has given up is
// dropped silently; a missing reply is not a fault on the engine side.
func (r Request) Reply(resp Response) {
	select {
	case r.reply <- resp:
	default:
	}
}

// Channel is the command bus between the API surface and the engine.
// Senders call Send and block for a correlated reply; the engine drains
// Requests and answers each one.
type Channel struct {
	requests  chan Request
	nextID    atomic.Uint64
	timeout   time.Duration
	logger    *zap.Logger
	closeOnce sync.Once
	closed    chan struct{}
}

// NewChannel creates a channel with the default buffer and timeout.
func NewChannel(logger *zap.Logger) *Channel {
	return NewChannelWithSize(defaultBufferSize, logger)
}

// NewChannelWithSize creates a channel with a custom command buffer.
func NewChannelWithSize(buffer int, logger *zap.Logger) *Channel {
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		requests: make(chan Request, buffer),
		timeout:  defaultTimeout,
		logger:   logger,
		closed:   make(chan struct{}),
	}
}

// SetTimeout overrides the default reply timeout. Non-positive values
// are ignored.
func (c *Channel) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// Requests is the engine-side feed of queued commands.
func (c *Channel) Requests() <-chan Request {
	return c.requests
}

// Close shuts the channel down. Pending sends fail with
// ErrChannelClosed.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// Send queues a command and waits for its reply using the default
// timeout.
func (c *Channel) Send(ctx context.Context, cmd Command) (Response, error) {
	return c.SendTimeout(ctx, cmd, c.timeout)
}

// SendTimeout queues a command and waits for its reply. Shutdown is
// acknowledged as soon as it is queued since the engine may never get
// to reply before exiting.
func (c *Channel) SendTimeout(ctx context.Context, cmd Command, timeout time.Duration) (Response, error) {
	id := c.nextID.Add(1)
	req := Request{
		ID:      id,
		Command: cmd,
		reply:   make(chan Response, 1),
	}

	select {
	case <-c.closed:
		return Response{}, ErrChannelClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case c.requests <- req:
	}

	if _, ok := cmd.(Shutdown); ok {
		return OK(), nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-c.closed:
		return Response{}, ErrChannelClosed
	case <-timer.C:
		c.logger.Warn("command reply timed out",
			zap.Uint64("command_id", id),
			zap.String("command", cmd.Name()),
			zap.Duration("timeout", timeout))
		return Response{}, fmt.Errorf("%s after %s: %w", cmd.Name(), timeout, ErrTimeout)
	}
}

package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/kibrowser/ki-browser/internal/ipc"
)

// Processor drains the command channel and feeds an engine. It is the
// only goroutine that touches the engine, so engines may assume
// serialized command execution.
type Processor struct {
	ch     *ipc.Channel
	engine Engine
	logger *zap.Logger
}

func NewProcessor(ch *ipc.Channel, engine Engine, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{ch: ch, engine: engine, logger: logger.Named("processor")}
}

// Run processes commands until the context is canceled, the channel is
// closed, or a Shutdown command arrives.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("command processor started")
	defer p.logger.Info("command processor stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-p.ch.Requests():
			if !ok {
				return
			}
			resp := p.engine.Execute(ctx, req.Command)
			req.Reply(resp)
			if _, isShutdown := req.Command.(ipc.Shutdown); isShutdown {
				p.drain()
				return
			}
		}
	}
}

// drain closes the channel so late senders fail fast, then answers
// every already-queued request instead of leaving its sender to time
// out.
func (p *Processor) drain() {
	p.ch.Close()
	for {
		select {
		case req := <-p.ch.Requests():
			p.logger.Debug("rejecting queued command after shutdown",
				zap.String("command", req.Command.Name()))
			req.Reply(ipc.Fail(ipc.ErrChannelClosed.Error()))
		default:
			return
		}
	}
}

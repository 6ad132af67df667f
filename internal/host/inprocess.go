// Package host runs the processing engine next to the coordinator and starts
// it the first time capture is requested.
package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/pipeline"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
)

var ErrClosed = errors.New("host: closed")

// DefaultInboxSize is the engine mailbox capacity.
const DefaultInboxSize = 64

// InProcess hosts a pipeline.Engine on its own goroutine. The engine reports
// to upstream and reads its commands from a mailbox.
type InProcess struct {
	platform pipeline.Platform
	upstream bus.Sender
	opts     pipeline.Options
	size     int

	mu     sync.Mutex
	engine *pipeline.Engine
	inbox  *bus.Mailbox
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

func NewInProcess(platform pipeline.Platform, upstream bus.Sender, opts pipeline.Options, inboxSize int) *InProcess {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &InProcess{platform: platform, upstream: upstream, opts: opts, size: inboxSize}
}

// Ensure returns the engine's mailbox, starting the engine if needed.
func (h *InProcess) Ensure(ctx context.Context) (bus.Sender, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if h.engine != nil {
		return h.inbox, nil
	}

	h.engine = pipeline.NewEngine(h.platform, h.upstream, h.opts)
	h.inbox = bus.NewMailbox(h.size)
	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	go func(e *pipeline.Engine, inbox <-chan protocol.Message, done chan struct{}) {
		defer close(done)
		e.Run(runCtx, inbox)
	}(h.engine, h.inbox.Inbox(), h.done)
	slog.Info("host: engine started")
	return h.inbox, nil
}

// Engine returns the hosted engine, or nil before the first Ensure.
func (h *InProcess) Engine() *pipeline.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine
}

// Close stops the engine loop. Sessions still open are stopped first.
func (h *InProcess) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	engine, inbox, cancel, done := h.engine, h.inbox, h.cancel, h.done
	h.mu.Unlock()

	if engine == nil {
		return
	}
	inbox.Close()
	<-done
	cancel()
	for _, tabID := range engine.Sessions() {
		engine.Stop(context.Background(), tabID)
	}
	slog.Info("host: engine stopped")
}

// Package bus carries protocol messages between execution contexts with a
// best-effort contract: a send may be dropped, and a failed send is never fatal.
package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/dgnsrekt/tabvoice/internal/protocol"
)

// ErrUndeliverable is returned when the destination is gone or cannot accept
// the message right now. Callers log it and carry on.
var ErrUndeliverable = errors.New("bus: message undeliverable")

// Sender delivers a message to another context.
type Sender interface {
	Send(ctx context.Context, msg protocol.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg protocol.Message) error

func (f SenderFunc) Send(ctx context.Context, msg protocol.Message) error {
	return f(ctx, msg)
}

// Discard accepts and drops every message.
var Discard Sender = SenderFunc(func(context.Context, protocol.Message) error { return nil })

// Tee sends every message to each non-nil sender in order. All senders are
// tried; their errors are joined.
func Tee(senders ...Sender) Sender {
	var out []Sender
	for _, s := range senders {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return SenderFunc(func(ctx context.Context, msg protocol.Message) error {
		var errs []error
		for _, s := range out {
			if err := s.Send(ctx, msg); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Mailbox is the inbox of a context. Send never blocks: when the buffer is full
// or the mailbox is closed the message is dropped with ErrUndeliverable.
type Mailbox struct {
	mu     sync.RWMutex
	ch     chan protocol.Message
	closed bool
}

func NewMailbox(size int) *Mailbox {
	if size < 1 {
		size = 1
	}
	return &Mailbox{ch: make(chan protocol.Message, size)}
}

func (m *Mailbox) Send(ctx context.Context, msg protocol.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrUndeliverable
	}
	select {
	case m.ch <- msg:
		return nil
	default:
		return ErrUndeliverable
	}
}

// Inbox is the receive side. It is closed by Close.
func (m *Mailbox) Inbox() <-chan protocol.Message {
	return m.ch
}

// Close stops accepting messages and closes the inbox. Safe to call twice.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}

package bus

import (
	"context"
	"sync"

	"github.com/dgnsrekt/tabvoice/internal/protocol"
)

// Fault is what a Faulty sender does with one message.
type Fault int

const (
	Deliver Fault = iota
	Drop
	Duplicate
	// Hold keeps the message back until Release, which delivers held messages
	// newest first so they arrive out of order.
	Hold
)

// Faulty wraps a Sender and misbehaves the way an unreliable transport would.
// Decide picks the fault for every message; a nil Decide delivers everything.
type Faulty struct {
	next   Sender
	Decide func(msg protocol.Message) Fault

	mu   sync.Mutex
	held []protocol.Message
}

func NewFaulty(next Sender, decide func(protocol.Message) Fault) *Faulty {
	return &Faulty{next: next, Decide: decide}
}

func (f *Faulty) Send(ctx context.Context, msg protocol.Message) error {
	fault := Deliver
	if f.Decide != nil {
		fault = f.Decide(msg)
	}
	switch fault {
	case Drop:
		return nil
	case Duplicate:
		if err := f.next.Send(ctx, msg); err != nil {
			return err
		}
		return f.next.Send(ctx, msg)
	case Hold:
		f.mu.Lock()
		f.held = append(f.held, msg)
		f.mu.Unlock()
		return nil
	default:
		return f.next.Send(ctx, msg)
	}
}

// Release delivers held messages in reverse order and returns how many were sent.
func (f *Faulty) Release(ctx context.Context) int {
	f.mu.Lock()
	held := f.held
	f.held = nil
	f.mu.Unlock()

	n := 0
	for i := len(held) - 1; i >= 0; i-- {
		if f.next.Send(ctx, held[i]) == nil {
			n++
		}
	}
	return n
}

// DropTypes returns a Decide func that drops every message of the given types.
func DropTypes(types ...protocol.Type) func(protocol.Message) Fault {
	set := make(map[protocol.Type]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(msg protocol.Message) Fault {
		if set[msg.Type] {
			return Drop
		}
		return Deliver
	}
}

// Package relay fans tab status changes out to control-surface clients over
// server-sent events.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

const subscriberBufSize = 256

// Event is one status change as sent to SSE clients.
type Event struct {
	TabID  settings.TabID `json:"tab_id"`
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
}

// Broker fans out events to all subscribed SSE clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
	last        map[settings.TabID]Event
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
		last:        make(map[settings.TabID]Event),
	}
}

// Subscribe registers a new client. The channel is buffered; slow consumers
// have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if evt.Status == "inactive" {
		delete(b.last, evt.TabID)
	} else {
		b.last[evt.TabID] = evt
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Send implements bus.Sender for status-update messages. Other message types
// are not for control surfaces and are rejected.
func (b *Broker) Send(_ context.Context, msg protocol.Message) error {
	if msg.Type != protocol.TypeStatusUpdate {
		return bus.ErrUndeliverable
	}
	b.Publish(Event{TabID: msg.TabID, Status: msg.Status, Error: msg.Error})
	return nil
}

// Current returns the latest event of every tab that is not inactive, so new
// subscribers can start from a known state.
func (b *Broker) Current() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, 0, len(b.last))
	for _, evt := range b.last {
		out = append(out, evt)
	}
	return out
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (e Event) payload() string {
	data, _ := json.Marshal(e)
	return string(data)
}

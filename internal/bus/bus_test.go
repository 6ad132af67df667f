package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/dgnsrekt/tabvoice/internal/protocol"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

func TestMailbox_DropsWhenFull(t *testing.T) {
	ctx := context.Background()
	m := NewMailbox(1)
	if err := m.Send(ctx, protocol.StopProcessing(1)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := m.Send(ctx, protocol.StopProcessing(2)); !errors.Is(err, ErrUndeliverable) {
		t.Fatalf("Send() on full mailbox = %v; want ErrUndeliverable", err)
	}
	if got := (<-m.Inbox()).TabID; got != 1 {
		t.Fatalf("received tab %d; want 1", got)
	}
}

func TestMailbox_SendAfterCloseIsUndeliverable(t *testing.T) {
	m := NewMailbox(4)
	m.Close()
	m.Close()
	if err := m.Send(context.Background(), protocol.StopProcessing(1)); !errors.Is(err, ErrUndeliverable) {
		t.Fatalf("Send() after Close = %v; want ErrUndeliverable", err)
	}
	if _, ok := <-m.Inbox(); ok {
		t.Fatal("inbox still open after Close")
	}
}

func TestMailbox_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMailbox(1).Send(ctx, protocol.StopProcessing(1)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() = %v; want context.Canceled", err)
	}
}

func TestFaulty(t *testing.T) {
	ctx := context.Background()
	m := NewMailbox(16)
	f := NewFaulty(m, func(msg protocol.Message) Fault {
		switch msg.TabID {
		case 1:
			return Drop
		case 2:
			return Duplicate
		case 3, 4:
			return Hold
		}
		return Deliver
	})

	for tab := 1; tab <= 5; tab++ {
		if err := f.Send(ctx, protocol.StopProcessing(settings.TabID(tab))); err != nil {
			t.Fatalf("Send(tab %d) error = %v", tab, err)
		}
	}
	if n := f.Release(ctx); n != 2 {
		t.Fatalf("Release() = %d; want 2", n)
	}
	m.Close()

	var got []int64
	for msg := range m.Inbox() {
		got = append(got, int64(msg.TabID))
	}
	want := []int64{2, 2, 5, 4, 3}
	if len(got) != len(want) {
		t.Fatalf("received %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("received %v; want %v", got, want)
		}
	}
}

func TestDropTypes(t *testing.T) {
	decide := DropTypes(protocol.TypeProcessingStarted)
	if decide(protocol.ProcessingStarted(1, "")) != Drop {
		t.Fatal("processing-started not dropped")
	}
	if decide(protocol.ProcessingStopped(1, "")) != Deliver {
		t.Fatal("processing-stopped not delivered")
	}
}

func TestTee(t *testing.T) {
	ctx := context.Background()
	a, b := NewMailbox(1), NewMailbox(1)
	b.Close()
	out := Tee(a, nil, b)

	err := out.Send(ctx, protocol.StopProcessing(3))
	if !errors.Is(err, ErrUndeliverable) {
		t.Fatalf("Send() = %v; want ErrUndeliverable from the closed mailbox", err)
	}
	if got := (<-a.Inbox()).TabID; got != 3 {
		t.Fatalf("first sender got tab %d; want 3", got)
	}
	if Tee(a) != Sender(a) {
		t.Fatal("Tee(a) should return a itself")
	}
}

package link

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

func receive(t *testing.T, ch <-chan protocol.Message) protocol.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
		return protocol.Message{}
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLink_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordInbox := bus.NewMailbox(8)
	srv := NewServer(coordInbox, time.Second)
	hs := httptest.NewServer(srv)
	defer hs.Close()

	engineInbox := bus.NewMailbox(8)
	client := NewClient("ws"+strings.TrimPrefix(hs.URL, "http"), 10*time.Millisecond)
	go client.Run(ctx, engineInbox)

	sender, err := srv.Ensure(ctx)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	cfg := settings.Defaults()
	cfg.EQGain[4] = -3
	if err := sender.Send(ctx, protocol.StartProcessing(5, "s-1", cfg)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got := receive(t, engineInbox.Inbox())
	if got.Type != protocol.TypeStartProcessing || got.TabID != 5 || got.StreamID != "s-1" {
		t.Fatalf("engine got %+v; want start-processing tab 5 s-1", got)
	}
	if got.Settings == nil || *got.Settings != cfg {
		t.Fatalf("engine settings = %+v; want %+v", got.Settings, cfg)
	}

	waitUntil(t, client.Connected)
	if err := client.Send(ctx, protocol.ProcessingStarted(5, "s-1")); err != nil {
		t.Fatalf("client Send() error = %v", err)
	}
	if got := receive(t, coordInbox.Inbox()); got.Type != protocol.TypeProcessingStarted || got.TabID != 5 {
		t.Fatalf("coordinator got %+v; want processing-started tab 5", got)
	}
}

func TestServer_EnsureTimesOutWithoutEngine(t *testing.T) {
	srv := NewServer(bus.Discard, 20*time.Millisecond)
	if _, err := srv.Ensure(context.Background()); !errors.Is(err, ErrNoEngine) {
		t.Fatalf("Ensure() = %v; want ErrNoEngine", err)
	}
	if err := srv.Send(context.Background(), protocol.StopProcessing(1)); !errors.Is(err, bus.ErrUndeliverable) {
		t.Fatalf("Send() = %v; want ErrUndeliverable", err)
	}
}

func TestClient_SendWithoutConnection(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/", 0)
	if err := c.Send(context.Background(), protocol.ProcessingStopped(1, "")); !errors.Is(err, bus.ErrUndeliverable) {
		t.Fatalf("Send() = %v; want ErrUndeliverable", err)
	}
}

func TestClient_Reconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewServer(bus.Discard, time.Second)
	hs := httptest.NewServer(srv)
	defer hs.Close()

	client := NewClient("ws"+strings.TrimPrefix(hs.URL, "http"), 10*time.Millisecond)
	go client.Run(ctx, bus.Discard)
	waitUntil(t, srv.Connected)

	srv.mu.Lock()
	first := srv.conn
	srv.mu.Unlock()
	first.Close()

	waitUntil(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.conn != nil && srv.conn != first
	})
}

func TestServer_SecondEngineReplacesFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewServer(bus.Discard, time.Second)
	hs := httptest.NewServer(srv)
	defer hs.Close()
	url := "ws" + strings.TrimPrefix(hs.URL, "http")

	stale, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = stale.Close() }()
	waitUntil(t, srv.Connected)
	srv.mu.Lock()
	first := srv.conn
	srv.mu.Unlock()

	engineInbox := bus.NewMailbox(8)
	client := NewClient(url, 10*time.Millisecond)
	go client.Run(ctx, engineInbox)
	waitUntil(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.conn != nil && srv.conn != first
	})

	done := make(chan bool, 1)
	go func() { done <- srv.Connected() }()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Connected() = false; want true")
		}
	case <-time.After(time.Second):
		t.Fatal("Connected() blocked after a second engine connected")
	}

	sender, err := srv.Ensure(ctx)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := sender.Send(ctx, protocol.StopProcessing(2)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := receive(t, engineInbox.Inbox()); got.TabID != 2 {
		t.Fatalf("replacement engine got %+v; want stop-processing tab 2", got)
	}
}

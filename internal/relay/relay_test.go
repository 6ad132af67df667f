package relay

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
)

func TestBroker_SendAcceptsOnlyStatusUpdates(t *testing.T) {
	b := NewBroker()
	_, ch := b.Subscribe()
	ctx := context.Background()

	if err := b.Send(ctx, protocol.StopProcessing(3)); !errors.Is(err, bus.ErrUndeliverable) {
		t.Fatalf("Send(stop-processing) = %v; want ErrUndeliverable", err)
	}
	if err := b.Send(ctx, protocol.StatusUpdate(3, "active", "")); err != nil {
		t.Fatalf("Send(status-update) error = %v", err)
	}
	select {
	case evt := <-ch:
		if evt.TabID != 3 || evt.Status != "active" {
			t.Fatalf("event = %+v; want tab 3 active", evt)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestBroker_CurrentTracksBusyTabs(t *testing.T) {
	b := NewBroker()
	b.Publish(Event{TabID: 1, Status: "starting"})
	b.Publish(Event{TabID: 1, Status: "active"})
	b.Publish(Event{TabID: 2, Status: "active"})
	b.Publish(Event{TabID: 2, Status: "inactive"})

	got := b.Current()
	if len(got) != 1 || got[0].TabID != 1 || got[0].Status != "active" {
		t.Fatalf("Current() = %+v; want only tab 1 active", got)
	}
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Subscribe()
	for i := 0; i < subscriberBufSize+10; i++ {
		b.Publish(Event{TabID: 1, Status: "active"})
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	b.Unsubscribe(id)
	b.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Unsubscribe")
	}
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("ClientCount() = %d; want 0", n)
	}
}

func TestSSEHandler_FiltersTabs(t *testing.T) {
	b := NewBroker()
	b.Publish(Event{TabID: 3, Status: "starting"})
	srv := httptest.NewServer(SSEHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?tabs=3", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q; want text/event-stream", ct)
	}

	for b.ClientCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	b.Publish(Event{TabID: 2, Status: "active"})
	b.Publish(Event{TabID: 3, Status: "active"})

	sc := bufio.NewScanner(resp.Body)
	var data []string
	for sc.Scan() && len(data) < 2 {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") {
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	want := []string{`{"tab_id":3,"status":"starting"}`, `{"tab_id":3,"status":"active"}`}
	if len(data) != 2 || data[0] != want[0] || data[1] != want[1] {
		t.Fatalf("data = %q; want %q", data, want)
	}
}

func TestSSEHandler_RejectsBadFilter(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?tabs=abc", nil)
	SSEHandler(NewBroker())(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rec.Code)
	}
}

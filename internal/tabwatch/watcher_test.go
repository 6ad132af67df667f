package tabwatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/tabvoice/internal/settings"
)

type closedRecorder struct {
	mu  sync.Mutex
	ids []settings.TabID
	hit chan struct{}
}

func (c *closedRecorder) TabClosed(_ context.Context, tabID settings.TabID) {
	c.mu.Lock()
	c.ids = append(c.ids, tabID)
	c.mu.Unlock()
	c.hit <- struct{}{}
}

func (c *closedRecorder) wait(t *testing.T) settings.TabID {
	t.Helper()
	select {
	case <-c.hit:
	case <-time.After(2 * time.Second):
		t.Fatal("TabClosed not called")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ids[len(c.ids)-1]
}

func page(id target.ID, url string) *target.Info {
	return &target.Info{TargetID: id, Type: "page", URL: url}
}

func TestHandle_TracksPages(t *testing.T) {
	rec := &closedRecorder{hit: make(chan struct{}, 4)}
	w := NewWatcher("", NewRegistry(), rec)

	w.Handle(&target.EventTargetCreated{TargetInfo: page("A", "https://example.com/")})
	w.Handle(&target.EventTargetCreated{TargetInfo: &target.Info{TargetID: "SW", Type: "service_worker"}})
	if n := w.registry.Count(); n != 1 {
		t.Fatalf("Count() = %d; want 1", n)
	}

	w.Handle(&target.EventTargetInfoChanged{TargetInfo: page("A", "https://example.com/other")})
	if got := rec.wait(t); got != 1 {
		t.Fatalf("navigated tab = %d; want 1", got)
	}

	w.Handle(&target.EventTargetDestroyed{TargetID: "A"})
	if got := rec.wait(t); got != 1 {
		t.Fatalf("closed tab = %d; want 1", got)
	}
	if n := w.registry.Count(); n != 0 {
		t.Fatalf("Count() = %d; want 0", n)
	}

	w.Handle(&target.EventTargetDestroyed{TargetID: "unknown"})
	select {
	case <-rec.hit:
		t.Fatal("TabClosed called for unknown target")
	case <-time.After(20 * time.Millisecond):
	}
}

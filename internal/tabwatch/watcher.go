// Package tabwatch follows the page targets of a Chromium instance over CDP
// and reports tabs that close or navigate away.
package tabwatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// TabCloser is told when a tab is gone or now shows another document.
type TabCloser interface {
	TabClosed(ctx context.Context, tabID settings.TabID)
}

// Watcher keeps a Registry in sync with the browser's page targets.
type Watcher struct {
	cdpURL   string
	registry *Registry
	closer   TabCloser

	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	self        target.ID
}

func NewWatcher(cdpURL string, registry *Registry, closer TabCloser) *Watcher {
	return &Watcher{cdpURL: cdpURL, registry: registry, closer: closer}
}

// Start connects to the browser, registers the existing pages and subscribes
// to target discovery events.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("tabwatch: connecting to Chromium", "url", w.cdpURL)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), w.cdpURL)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	w.allocCancel, w.ctxCancel = allocCancel, cancel

	if err := chromedp.Run(browserCtx); err != nil {
		w.Close()
		return fmt.Errorf("tabwatch: connect to browser: %w", err)
	}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Target != nil {
		w.self = c.Target.TargetID
	}

	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		w.Close()
		return fmt.Errorf("tabwatch: enumerate targets: %w", err)
	}
	for _, t := range targets {
		w.register(t)
	}
	slog.Info("tabwatch: tracking pages", "count", w.registry.Count())

	chromedp.ListenBrowser(browserCtx, w.Handle)
	err = chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.SetDiscoverTargets(true).Do(cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
	}))
	if err != nil {
		w.Close()
		return fmt.Errorf("tabwatch: enable target discovery: %w", err)
	}
	return nil
}

func (w *Watcher) register(t *target.Info) (TabInfo, bool, bool) {
	if t == nil || t.Type != "page" || t.TargetID == w.self {
		return TabInfo{}, false, false
	}
	info, navigated := w.registry.Register(t.TargetID, t.URL, t.Title)
	return info, navigated, true
}

// Handle applies one browser event. It never blocks the CDP event loop.
func (w *Watcher) Handle(ev any) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		if info, _, ok := w.register(e.TargetInfo); ok {
			slog.Debug("tabwatch: page opened", "tab_id", info.TabID, "url", info.URL)
		}
	case *target.EventTargetInfoChanged:
		info, navigated, ok := w.register(e.TargetInfo)
		if ok && navigated {
			slog.Info("tabwatch: tab navigated", "tab_id", info.TabID, "url", info.URL)
			go w.closer.TabClosed(context.Background(), info.TabID)
		}
	case *target.EventTargetDestroyed:
		if info, ok := w.registry.Remove(e.TargetID); ok {
			slog.Info("tabwatch: tab closed", "tab_id", info.TabID)
			go w.closer.TabClosed(context.Background(), info.TabID)
		}
	}
}

func (w *Watcher) Close() {
	if w.ctxCancel != nil {
		w.ctxCancel()
	}
	if w.allocCancel != nil {
		w.allocCancel()
	}
}

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/tabvoice/internal/coordinator"
	"github.com/dgnsrekt/tabvoice/internal/pipeline"
	"github.com/dgnsrekt/tabvoice/internal/relay"
	"github.com/dgnsrekt/tabvoice/internal/settings"
	"github.com/dgnsrekt/tabvoice/internal/tabwatch"
)

// Service is the control surface of the coordinator.
type Service interface {
	Status(tabID settings.TabID) coordinator.State
	Settings(tabID settings.TabID) settings.EnhancementConfig
	UpdateSettings(ctx context.Context, tabID settings.TabID, p settings.Partial) (settings.EnhancementConfig, error)
	Toggle(ctx context.Context, tabID settings.TabID) (coordinator.State, error)
	TabClosed(ctx context.Context, tabID settings.TabID)
	Tabs() []coordinator.TabStatus
}

// BrowserTabs lists the pages of the watched browser.
type BrowserTabs interface {
	Tabs() []tabwatch.TabInfo
}

// Inspector returns the live cascade of a tab.
type Inspector func(tabID settings.TabID) ([]pipeline.StageSnapshot, settings.EnhancementConfig, error)

type options struct {
	events  *relay.Broker
	engine  http.Handler
	browser BrowserTabs
	inspect Inspector
}

type Option func(*options)

// WithEvents serves the status event stream from broker.
func WithEvents(broker *relay.Broker) Option {
	return func(o *options) { o.events = broker }
}

// WithEngineLink mounts the engine WebSocket endpoint.
func WithEngineLink(h http.Handler) Option {
	return func(o *options) { o.engine = h }
}

// WithBrowserTabs exposes the watched browser's pages.
func WithBrowserTabs(b BrowserTabs) Option {
	return func(o *options) { o.browser = b }
}

// WithInspector exposes the live parameter values of in-process sessions.
func WithInspector(fn Inspector) Option {
	return func(o *options) { o.inspect = fn }
}

type tabIDInput struct {
	TabID int64 `path:"tab_id" minimum:"1" doc:"Browser tab id"`
}

func NewServer(svc Service, opts ...Option) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("tabvoice Coordinator API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
			slog.Debug("events docs response write failed", "error", err)
		}
	})

	if o.events != nil {
		router.Get("/api/v1/events", relay.SSEHandler(o.events))
	}
	if o.engine != nil {
		router.Get("/api/v1/engine/ws", o.engine.ServeHTTP)
	}

	registerHealthHandlers(api)
	registerTabHandlers(api, svc)
	if o.browser != nil {
		registerBrowserHandlers(api, o.browser)
	}
	if o.inspect != nil {
		registerInspectHandlers(api, o.inspect)
	}

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *coordinator.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case coordinator.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case coordinator.CodeTransitionRefused:
			return huma.Error409Conflict(coded.Message)
		case coordinator.CodeAcquisitionFailed:
			return huma.Error502BadGateway(coded.Error())
		case coordinator.CodeHostUnavailable:
			return huma.Error503ServiceUnavailable(coded.Error())
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	if errors.Is(err, pipeline.ErrNoSession) {
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tabvoice/internal/coordinator"
	"github.com/dgnsrekt/tabvoice/internal/pipeline"
	"github.com/dgnsrekt/tabvoice/internal/settings"
	"github.com/dgnsrekt/tabvoice/internal/tabwatch"
)

func registerHealthHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

type statusOutput struct {
	Body struct {
		TabID  int64  `json:"tab_id"`
		Status string `json:"status" enum:"inactive,starting,active,stopping"`
	}
}

type toggleOutput struct {
	Body struct {
		TabID     int64  `json:"tab_id"`
		NewStatus string `json:"new_status" enum:"inactive,starting,active,stopping"`
	}
}

type settingsOutput struct {
	Body settings.EnhancementConfig
}

type settingsInput struct {
	TabID int64 `path:"tab_id" minimum:"1" doc:"Browser tab id"`
	Body  settings.Partial
}

func registerTabHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-status", Method: http.MethodGet, Path: "/api/v1/tabs/{tab_id}/status", Summary: "Get capture status of a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*statusOutput, error) {
			out := &statusOutput{}
			out.Body.TabID = input.TabID
			out.Body.Status = svc.Status(settings.TabID(input.TabID)).String()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-settings", Method: http.MethodGet, Path: "/api/v1/tabs/{tab_id}/settings", Summary: "Get enhancement settings of a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*settingsOutput, error) {
			out := &settingsOutput{}
			out.Body = svc.Settings(settings.TabID(input.TabID))
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "update-settings", Method: http.MethodPut, Path: "/api/v1/tabs/{tab_id}/settings", Summary: "Update enhancement settings of a tab", Description: "Omitted fields keep their stored value. Equalizer gains are clamped to ±24 dB.", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *settingsInput) (*settingsOutput, error) {
			cfg, err := svc.UpdateSettings(ctx, settings.TabID(input.TabID), input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &settingsOutput{}
			out.Body = cfg
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "toggle-capture", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/toggle", Summary: "Start or stop enhancement for a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*toggleOutput, error) {
			state, err := svc.Toggle(ctx, settings.TabID(input.TabID))
			if err != nil {
				return nil, mapErr(err)
			}
			out := &toggleOutput{}
			out.Body.TabID = input.TabID
			out.Body.NewStatus = state.String()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-tab", Method: http.MethodDelete, Path: "/api/v1/tabs/{tab_id}", Summary: "Report a tab closed or navigated away", Tags: []string{"Tabs"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *tabIDInput) (*struct{}, error) {
			svc.TabClosed(ctx, settings.TabID(input.TabID))
			return nil, nil
		})

	type listOutput struct {
		Body struct {
			Tabs []coordinator.TabStatus `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List tabs that are not inactive", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*listOutput, error) {
			out := &listOutput{}
			out.Body.Tabs = svc.Tabs()
			return out, nil
		})
}

func registerBrowserHandlers(api huma.API, browser BrowserTabs) {
	type browserTabsOutput struct {
		Body struct {
			Tabs []tabwatch.TabInfo `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-browser-tabs", Method: http.MethodGet, Path: "/api/v1/browser/tabs", Summary: "List pages of the watched browser", Tags: []string{"Browser"}},
		func(ctx context.Context, input *struct{}) (*browserTabsOutput, error) {
			out := &browserTabsOutput{}
			out.Body.Tabs = browser.Tabs()
			return out, nil
		})
}

func registerInspectHandlers(api huma.API, inspect Inspector) {
	type targetsOutput struct {
		Body struct {
			TabID  int64                      `json:"tab_id"`
			Config settings.EnhancementConfig `json:"config"`
			Stages []pipeline.StageSnapshot   `json:"stages"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-targets", Method: http.MethodGet, Path: "/api/v1/tabs/{tab_id}/targets", Summary: "Live filter parameters of a tab", Tags: []string{"Debug"}},
		func(ctx context.Context, input *tabIDInput) (*targetsOutput, error) {
			stages, cfg, err := inspect(settings.TabID(input.TabID))
			if err != nil {
				return nil, mapErr(err)
			}
			out := &targetsOutput{}
			out.Body.TabID = input.TabID
			out.Body.Config = cfg
			out.Body.Stages = stages
			return out, nil
		})
}

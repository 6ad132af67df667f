// Command tabctl drives a running coordinator from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dgnsrekt/tabvoice/internal/panel"
	"github.com/dgnsrekt/tabvoice/internal/relay"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

var version = "0.1.0"

type CLI struct {
	Server  string           `short:"s" default:"http://127.0.0.1:8190" env:"TABVOICE_URL" help:"Coordinator base URL"`
	Timeout time.Duration    `default:"5s" help:"Request timeout"`
	Version kong.VersionFlag `short:"v" help:"Show version information"`

	Status   StatusCmd   `cmd:"" help:"Show the capture status of a tab"`
	Settings SettingsCmd `cmd:"" help:"Show the enhancement settings of a tab"`
	Set      SetCmd      `cmd:"" help:"Change enhancement settings of a tab"`
	Toggle   ToggleCmd   `cmd:"" help:"Start or stop enhancement for a tab"`
	Close    CloseCmd    `cmd:"" help:"Report a tab closed"`
	Tabs     TabsCmd     `cmd:"" help:"List tabs the coordinator tracks"`
	Watch    WatchCmd    `cmd:"" help:"Stream status changes"`
}

type runContext struct {
	client  *panel.Client
	timeout time.Duration
}

func (r *runContext) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

type StatusCmd struct {
	Tab int64 `arg:"" help:"Browser tab id"`
}

func (c *StatusCmd) Run(r *runContext) error {
	ctx, cancel := r.ctx()
	defer cancel()
	status, err := r.client.Status(ctx, settings.TabID(c.Tab))
	if err != nil {
		return err
	}
	fmt.Println(renderStatus(settings.TabID(c.Tab), status, ""))
	return nil
}

type SettingsCmd struct {
	Tab int64 `arg:"" help:"Browser tab id"`
}

func (c *SettingsCmd) Run(r *runContext) error {
	ctx, cancel := r.ctx()
	defer cancel()
	cfg, err := r.client.Settings(ctx, settings.TabID(c.Tab))
	if err != nil {
		return err
	}
	fmt.Println(renderSettings(settings.TabID(c.Tab), cfg))
	return nil
}

type SetCmd struct {
	Tab       int64     `arg:"" help:"Browser tab id"`
	Voice     string    `enum:",on,off" default:"" help:"Voice enhancement (on|off)"`
	Noise     string    `enum:",on,off" default:"" help:"Noise cancellation (on|off)"`
	Normalize string    `enum:",on,off" default:"" help:"Loudness normalization (on|off)"`
	EQ        []float64 `name:"eq" sep:"," help:"Equalizer gains in dB, lowest band first"`
}

func onOff(v string) *bool {
	if v == "" {
		return nil
	}
	b := v == "on"
	return &b
}

func (c *SetCmd) Run(r *runContext) error {
	p := settings.Partial{
		VoiceEnhancementEnabled: onOff(c.Voice),
		NoiseCancelEnabled:      onOff(c.Noise),
		NormalizeEnabled:        onOff(c.Normalize),
		EQGain:                  c.EQ,
	}
	ctx, cancel := r.ctx()
	defer cancel()
	cfg, err := r.client.UpdateSettings(ctx, settings.TabID(c.Tab), p)
	if err != nil {
		return err
	}
	fmt.Println(renderSettings(settings.TabID(c.Tab), cfg))
	return nil
}

type ToggleCmd struct {
	Tab int64 `arg:"" help:"Browser tab id"`
}

func (c *ToggleCmd) Run(r *runContext) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout+panel.DefaultRequery)
	defer cancel()
	status, err := r.client.Toggle(ctx, settings.TabID(c.Tab))
	if err != nil {
		return err
	}
	fmt.Println(renderStatus(settings.TabID(c.Tab), status, ""))
	return nil
}

type CloseCmd struct {
	Tab int64 `arg:"" help:"Browser tab id"`
}

func (c *CloseCmd) Run(r *runContext) error {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.client.Close(ctx, settings.TabID(c.Tab)); err != nil {
		return err
	}
	fmt.Println(renderStatus(settings.TabID(c.Tab), "inactive", ""))
	return nil
}

type TabsCmd struct{}

func (c *TabsCmd) Run(r *runContext) error {
	ctx, cancel := r.ctx()
	defer cancel()
	tabs, err := r.client.Tabs(ctx)
	if err != nil {
		return err
	}
	if len(tabs) == 0 {
		fmt.Println(dimStyle.Render("no tabs are being enhanced"))
		return nil
	}
	for _, t := range tabs {
		fmt.Println(renderStatus(t.TabID, t.Status, ""))
	}
	return nil
}

type WatchCmd struct {
	Tabs []int64 `arg:"" optional:"" help:"Only these tab ids"`
}

func (c *WatchCmd) Run(r *runContext) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ids := make([]settings.TabID, len(c.Tabs))
	for i, id := range c.Tabs {
		ids[i] = settings.TabID(id)
	}
	return r.client.Watch(ctx, ids, func(e relay.Event) {
		fmt.Println(dimStyle.Render(time.Now().Format("15:04:05")) + " " + renderStatus(e.TabID, e.Status, e.Error))
	})
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("tabctl"),
		kong.Description("Control per-tab voice enhancement"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	// Watch streams indefinitely, so the timeout only applies to single requests.
	client := panel.New(cli.Server, nil)
	if err := kctx.Run(&runContext{client: client, timeout: cli.Timeout}); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func tabLabel(id settings.TabID) string {
	return labelStyle.Render("tab " + strconv.FormatInt(int64(id), 10))
}

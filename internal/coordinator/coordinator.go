// Package coordinator tracks the capture state of every tab, owns the stored
// settings and drives the processing engine over a best-effort message bus.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// DefaultTransitionTimeout bounds how long a tab may stay starting or stopping
// without hearing from the engine.
const DefaultTransitionTimeout = 10 * time.Second

// Host gives access to the processing engine, creating it on first use.
type Host interface {
	Ensure(ctx context.Context) (bus.Sender, error)
}

// StreamIssuer obtains a single-use capture stream id for a tab.
type StreamIssuer interface {
	IssueStreamID(ctx context.Context, tabID settings.TabID) (string, error)
}

type Options struct {
	// Surface receives a status-update for every transition. Nil discards them.
	Surface           bus.Sender
	Store             *settings.Store
	TransitionTimeout time.Duration
}

// TabStatus is one row of Tabs.
type TabStatus struct {
	TabID  settings.TabID `json:"tab_id"`
	Status string         `json:"status"`
}

type entry struct {
	state    State
	gen      uint64
	streamID string
	// sent is the configuration the engine was started with.
	sent       settings.EnhancementConfig
	stopQueued bool
	timer      *time.Timer
}

type Coordinator struct {
	host    Host
	issuer  StreamIssuer
	surface bus.Sender
	store   *settings.Store
	timeout time.Duration

	mu   sync.Mutex
	tabs map[settings.TabID]*entry
	gen  uint64

	// settingsMu orders update-settings sends so the engine always ends on
	// the newest stored configuration.
	settingsMu sync.Mutex
}

func New(host Host, issuer StreamIssuer, opts Options) *Coordinator {
	c := &Coordinator{
		host:    host,
		issuer:  issuer,
		surface: opts.Surface,
		store:   opts.Store,
		timeout: opts.TransitionTimeout,
		tabs:    make(map[settings.TabID]*entry),
	}
	if c.surface == nil {
		c.surface = bus.Discard
	}
	if c.store == nil {
		c.store = settings.NewStore()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTransitionTimeout
	}
	return c
}

func validTab(tabID settings.TabID) error {
	if tabID <= 0 {
		return newError(CodeValidation, "tab_id must be positive", nil)
	}
	return nil
}

// Status answers from memory; tabs never seen are inactive.
func (c *Coordinator) Status(tabID settings.TabID) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.tabs[tabID]; ok {
		return e.state
	}
	return StateInactive
}

// Settings returns the stored configuration, or the defaults.
func (c *Coordinator) Settings(tabID settings.TabID) settings.EnhancementConfig {
	return c.store.Get(tabID)
}

// Tabs lists every tab that is not inactive, ordered by id.
func (c *Coordinator) Tabs() []TabStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TabStatus, 0, len(c.tabs))
	for id, e := range c.tabs {
		out = append(out, TabStatus{TabID: id, Status: e.state.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}

// UpdateSettings merges p over the stored configuration. Active tabs get the
// result forwarded to the engine; other tabs pick it up on their next start.
func (c *Coordinator) UpdateSettings(ctx context.Context, tabID settings.TabID, p settings.Partial) (settings.EnhancementConfig, error) {
	if err := validTab(tabID); err != nil {
		return settings.EnhancementConfig{}, err
	}
	if len(p.EQGain) > settings.BandCount {
		return settings.EnhancementConfig{}, newError(CodeValidation, "eqGain has more than 10 bands", nil)
	}

	c.mu.Lock()
	cfg := c.store.Update(tabID, p)
	c.mu.Unlock()

	c.forwardSettings(ctx, tabID)
	return cfg, nil
}

// forwardSettings sends the tab's current stored configuration to the engine
// if the tab is active. The store is read after taking settingsMu, so a send
// that lost a race still carries the latest value.
func (c *Coordinator) forwardSettings(ctx context.Context, tabID settings.TabID) {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	c.mu.Lock()
	e, ok := c.tabs[tabID]
	if !ok || e.state != StateActive {
		c.mu.Unlock()
		return
	}
	cfg := c.store.Get(tabID)
	e.sent = cfg
	c.mu.Unlock()

	c.dispatch(ctx, protocol.UpdateSettings(tabID, cfg))
}

// Start begins capture for an inactive tab. A tab that is already starting or
// active is left alone and its state returned.
func (c *Coordinator) Start(ctx context.Context, tabID settings.TabID) (State, error) {
	if err := validTab(tabID); err != nil {
		return StateInactive, err
	}

	c.mu.Lock()
	if e, ok := c.tabs[tabID]; ok {
		state := e.state
		if state == StateStarting {
			e.stopQueued = false
		}
		c.mu.Unlock()
		if state == StateStopping {
			return state, newError(CodeTransitionRefused, "tab is stopping", nil)
		}
		return state, nil
	}
	e := c.enterLocked(tabID, &entry{}, StateStarting)
	gen := e.gen
	c.mu.Unlock()
	c.publish(ctx, tabID, StateStarting, "")

	sender, err := c.host.Ensure(ctx)
	if err != nil {
		c.abortStart(ctx, tabID, gen, err)
		return StateInactive, newError(CodeHostUnavailable, "processing host unavailable", err)
	}
	streamID, err := c.issuer.IssueStreamID(ctx, tabID)
	if err != nil {
		c.abortStart(ctx, tabID, gen, err)
		return StateInactive, newError(CodeAcquisitionFailed, "could not obtain a capture stream", err)
	}

	c.mu.Lock()
	e, ok := c.tabs[tabID]
	if !ok || e.gen != gen {
		// Closed or timed out while acquiring.
		c.mu.Unlock()
		return c.Status(tabID), nil
	}
	e.streamID = streamID
	e.sent = c.store.Get(tabID)
	cfg := e.sent
	c.mu.Unlock()

	slog.Info("coordinator: starting capture", "tab_id", tabID, "stream_id", streamID)
	if err := sender.Send(ctx, protocol.StartProcessing(tabID, streamID, cfg)); err != nil {
		slog.Warn("coordinator: start undeliverable", "tab_id", tabID, "error", err)
	}
	return StateStarting, nil
}

func (c *Coordinator) abortStart(ctx context.Context, tabID settings.TabID, gen uint64, cause error) {
	slog.Warn("coordinator: acquisition failed", "tab_id", tabID, "error", cause)
	c.mu.Lock()
	e, ok := c.tabs[tabID]
	if !ok || e.gen != gen {
		c.mu.Unlock()
		return
	}
	c.leaveLocked(tabID, e)
	c.mu.Unlock()
	c.publish(ctx, tabID, StateInactive, cause.Error())
}

// Stop ends capture. A stop requested while starting is queued until the
// engine confirms the start.
func (c *Coordinator) Stop(ctx context.Context, tabID settings.TabID) (State, error) {
	if err := validTab(tabID); err != nil {
		return StateInactive, err
	}

	c.mu.Lock()
	e, ok := c.tabs[tabID]
	if !ok {
		c.mu.Unlock()
		return StateInactive, nil
	}
	switch e.state {
	case StateStarting:
		e.stopQueued = true
		c.mu.Unlock()
		slog.Debug("coordinator: stop queued until started", "tab_id", tabID)
		return StateStarting, nil
	case StateActive:
		c.enterLocked(tabID, e, StateStopping)
		c.mu.Unlock()
		c.publish(ctx, tabID, StateStopping, "")
		c.dispatch(ctx, protocol.StopProcessing(tabID))
		return StateStopping, nil
	default:
		state := e.state
		c.mu.Unlock()
		return state, nil
	}
}

// Toggle starts an inactive tab and stops a starting or active one. It is
// refused while the tab is stopping.
func (c *Coordinator) Toggle(ctx context.Context, tabID settings.TabID) (State, error) {
	switch state := c.Status(tabID); state {
	case StateInactive:
		return c.Start(ctx, tabID)
	case StateStopping:
		return state, newError(CodeTransitionRefused, "tab is stopping", nil)
	default:
		return c.Stop(ctx, tabID)
	}
}

// TabClosed forgets the tab and its settings. Busy tabs are force-stopped.
func (c *Coordinator) TabClosed(ctx context.Context, tabID settings.TabID) {
	c.mu.Lock()
	e, ok := c.tabs[tabID]
	if ok {
		c.leaveLocked(tabID, e)
	}
	c.store.Delete(tabID)
	c.mu.Unlock()

	if !ok {
		return
	}
	slog.Info("coordinator: tab closed", "tab_id", tabID, "state", e.state)
	c.dispatch(ctx, protocol.StopProcessing(tabID))
	c.publish(ctx, tabID, StateInactive, "")
}

// Run handles engine notifications until ctx ends or inbox closes.
func (c *Coordinator) Run(ctx context.Context, inbox <-chan protocol.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbox:
			if !ok {
				return
			}
			c.HandleEngineMessage(ctx, msg)
		}
	}
}

// HandleEngineMessage applies one engine notification. Duplicated, reordered
// and stale notifications converge instead of corrupting state.
func (c *Coordinator) HandleEngineMessage(ctx context.Context, msg protocol.Message) {
	if err := protocol.Validate(msg); err != nil {
		slog.Warn("coordinator: invalid engine message", "type", msg.Type, "tab_id", msg.TabID, "error", err)
		return
	}
	switch msg.Type {
	case protocol.TypeProcessingStarted:
		c.onStarted(ctx, msg)
	case protocol.TypeProcessingStopped:
		c.onStopped(ctx, msg)
	case protocol.TypeError:
		c.onError(ctx, msg)
	default:
		slog.Debug("coordinator: ignoring message", "type", msg.Type, "tab_id", msg.TabID)
	}
}

// stale reports whether a notification echoes a stream other than the tab's.
func stale(e *entry, msg protocol.Message) bool {
	return msg.StreamID != "" && e.streamID != "" && msg.StreamID != e.streamID
}

func (c *Coordinator) onStarted(ctx context.Context, msg protocol.Message) {
	tabID := msg.TabID
	c.mu.Lock()
	e, ok := c.tabs[tabID]
	if !ok || (e.state != StateStarting && e.state != StateActive) {
		c.mu.Unlock()
		slog.Info("coordinator: started without a pending start, stopping", "tab_id", tabID)
		c.dispatch(ctx, protocol.StopProcessing(tabID))
		return
	}
	if e.state == StateActive || stale(e, msg) {
		c.mu.Unlock()
		slog.Debug("coordinator: duplicate or stale processing-started", "tab_id", tabID, "stream_id", msg.StreamID)
		return
	}

	if e.stopQueued {
		e.stopQueued = false
		c.enterLocked(tabID, e, StateStopping)
		c.mu.Unlock()
		c.publish(ctx, tabID, StateStopping, "")
		c.dispatch(ctx, protocol.StopProcessing(tabID))
		return
	}

	c.enterLocked(tabID, e, StateActive)
	latest := c.store.Get(tabID)
	replay := latest != e.sent
	e.sent = latest
	c.mu.Unlock()

	slog.Info("coordinator: capture active", "tab_id", tabID)
	c.publish(ctx, tabID, StateActive, "")
	if replay {
		c.dispatch(ctx, protocol.UpdateSettings(tabID, latest))
	}
}

func (c *Coordinator) onStopped(ctx context.Context, msg protocol.Message) {
	tabID := msg.TabID
	c.mu.Lock()
	e, ok := c.tabs[tabID]
	if !ok || stale(e, msg) {
		c.mu.Unlock()
		slog.Debug("coordinator: stale processing-stopped", "tab_id", tabID)
		return
	}
	switch e.state {
	case StateStopping:
	case StateActive:
		slog.Info("coordinator: capture ended by the engine", "tab_id", tabID)
	default:
		// A stop reply for an earlier session while a new one is starting.
		c.mu.Unlock()
		slog.Debug("coordinator: processing-stopped while starting", "tab_id", tabID)
		return
	}
	c.leaveLocked(tabID, e)
	c.mu.Unlock()
	c.publish(ctx, tabID, StateInactive, "")
}

func (c *Coordinator) onError(ctx context.Context, msg protocol.Message) {
	tabID := msg.TabID
	c.mu.Lock()
	e, ok := c.tabs[tabID]
	if !ok || stale(e, msg) {
		c.mu.Unlock()
		slog.Debug("coordinator: stale error", "tab_id", tabID, "error", msg.Error)
		return
	}
	c.leaveLocked(tabID, e)
	c.mu.Unlock()
	slog.Warn("coordinator: engine error", "tab_id", tabID, "error", msg.Error)
	c.publish(ctx, tabID, StateInactive, msg.Error)
}

// enterLocked moves e into a new state under a new generation and arms the
// watchdog for transitional states.
func (c *Coordinator) enterLocked(tabID settings.TabID, e *entry, state State) *entry {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	c.gen++
	e.gen = c.gen
	e.state = state
	c.tabs[tabID] = e
	if state == StateStarting || state == StateStopping {
		gen := e.gen
		e.timer = time.AfterFunc(c.timeout, func() { c.expire(tabID, gen) })
	}
	return e
}

func (c *Coordinator) leaveLocked(tabID settings.TabID, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	delete(c.tabs, tabID)
}

// expire converges a transition the engine never answered.
func (c *Coordinator) expire(tabID settings.TabID, gen uint64) {
	ctx := context.Background()
	c.mu.Lock()
	e, ok := c.tabs[tabID]
	if !ok || e.gen != gen {
		c.mu.Unlock()
		return
	}
	state := e.state
	c.leaveLocked(tabID, e)
	c.mu.Unlock()

	slog.Warn("coordinator: transition timed out", "tab_id", tabID, "state", state)
	errText := ""
	if state == StateStarting {
		errText = "engine did not confirm the start"
		c.dispatch(ctx, protocol.StopProcessing(tabID))
	}
	c.publish(ctx, tabID, StateInactive, errText)
}

func (c *Coordinator) dispatch(ctx context.Context, msg protocol.Message) {
	sender, err := c.host.Ensure(ctx)
	if err != nil {
		slog.Warn("coordinator: processing host unavailable", "type", msg.Type, "tab_id", msg.TabID, "error", err)
		return
	}
	if err := sender.Send(ctx, msg); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, bus.ErrUndeliverable) {
			level = slog.LevelInfo
		}
		slog.Log(ctx, level, "coordinator: message undeliverable", "type", msg.Type, "tab_id", msg.TabID, "error", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, tabID settings.TabID, state State, errText string) {
	if err := c.surface.Send(ctx, protocol.StatusUpdate(tabID, state.String(), errText)); err != nil {
		slog.Debug("coordinator: status update dropped", "tab_id", tabID, "error", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/bus"
	"github.com/dgnsrekt/tabvoice/internal/protocol"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// DefaultRampWindow is how long a parameter takes to reach a new target.
const DefaultRampWindow = 100 * time.Millisecond

// ErrNoSession is returned for operations on a tab without a live session.
var ErrNoSession = errors.New("pipeline: no capture session")

// ErrStreamEnded is reported when the captured stream ends before processing starts.
var ErrStreamEnded = errors.New("pipeline: stream ended during start")

// Options configure an Engine. Zero values select defaults.
type Options struct {
	Tuning         *Tuning
	RampWindow     time.Duration
	AcquireTimeout time.Duration
}

// session is the resource bundle of one tab: the stream, the stages in chain
// order and the terminal output stage.
type session struct {
	tabID      settings.TabID
	streamID   string
	stream     Stream
	graph      Graph
	sampleRate float64

	notch, bandpass, lowpass Stage
	eq                       [settings.BandCount]Stage
	compressor, output       Stage
	stages                   []Stage

	config settings.EnhancementConfig
	live   bool
	ended  bool // stream ended before the session went live
}

// Engine owns the capture sessions of every tab it was asked to process and
// reports lifecycle changes upstream.
type Engine struct {
	platform Platform
	upstream bus.Sender
	tuning   Tuning
	ramp     time.Duration
	acquire  time.Duration

	mu       sync.Mutex
	sessions map[settings.TabID]*session
}

func NewEngine(platform Platform, upstream bus.Sender, opts Options) *Engine {
	e := &Engine{
		platform: platform,
		upstream: upstream,
		tuning:   DefaultTuning(),
		ramp:     opts.RampWindow,
		acquire:  opts.AcquireTimeout,
		sessions: make(map[settings.TabID]*session),
	}
	if opts.Tuning != nil {
		e.tuning = *opts.Tuning
	}
	if e.ramp <= 0 {
		e.ramp = DefaultRampWindow
	}
	if e.acquire <= 0 {
		e.acquire = 10 * time.Second
	}
	return e
}

// Run processes inbox messages in arrival order until ctx ends or inbox closes.
func (e *Engine) Run(ctx context.Context, inbox <-chan protocol.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbox:
			if !ok {
				return
			}
			e.Handle(ctx, msg)
		}
	}
}

// Handle dispatches a single coordinator message.
func (e *Engine) Handle(ctx context.Context, msg protocol.Message) {
	if err := protocol.Validate(msg); err != nil {
		slog.Warn("engine: invalid message", "type", msg.Type, "tab_id", msg.TabID, "error", err)
		if msg.Type == protocol.TypeStartProcessing && msg.TabID > 0 {
			e.notify(ctx, protocol.Failure(msg.TabID, msg.StreamID, err))
		}
		return
	}

	switch msg.Type {
	case protocol.TypeStartProcessing:
		cfg := settings.Defaults()
		if msg.Settings != nil {
			cfg = *msg.Settings
		}
		if err := e.Start(ctx, msg.TabID, msg.StreamID, cfg); err != nil {
			slog.Warn("engine: start failed", "tab_id", msg.TabID, "error", err)
		}
	case protocol.TypeStopProcessing:
		e.Stop(ctx, msg.TabID)
	case protocol.TypeUpdateSettings:
		if err := e.ApplyConfig(msg.TabID, *msg.Settings); err != nil {
			slog.Warn("engine: settings for tab without session", "tab_id", msg.TabID, "error", err)
		}
	default:
		slog.Debug("engine: ignoring message", "type", msg.Type, "tab_id", msg.TabID)
	}
}

// Start acquires the tab's stream, builds the cascade and applies cfg. If the
// tab already has a session it only re-announces it. Any failure releases
// whatever was built, reports processing-stopped like a stop would, and then
// reports the error.
func (e *Engine) Start(ctx context.Context, tabID settings.TabID, streamID string, cfg settings.EnhancementConfig) error {
	e.mu.Lock()
	if s, ok := e.sessions[tabID]; ok {
		live, sid := s.live, s.streamID
		e.mu.Unlock()
		if live {
			e.notify(ctx, protocol.ProcessingStarted(tabID, sid))
		}
		return nil
	}
	s := &session{tabID: tabID, streamID: streamID}
	e.sessions[tabID] = s
	e.mu.Unlock()

	if err := e.build(ctx, s, cfg); err != nil {
		return e.abort(ctx, s, fmt.Errorf("start tab %d: %w", tabID, err))
	}

	e.mu.Lock()
	if e.sessions[tabID] != s {
		// Stopped while building; the stop already released what it found.
		e.mu.Unlock()
		e.release(s)
		return nil
	}
	if s.ended {
		e.mu.Unlock()
		return e.abort(ctx, s, fmt.Errorf("start tab %d: %w", tabID, ErrStreamEnded))
	}
	s.live = true
	e.mu.Unlock()

	slog.Info("engine: processing started", "tab_id", tabID, "stages", len(s.stages))
	e.notify(ctx, protocol.ProcessingStarted(tabID, streamID))
	return nil
}

// abort runs the stop path for a start that failed, then reports err.
func (e *Engine) abort(ctx context.Context, s *session, err error) error {
	e.mu.Lock()
	if e.sessions[s.tabID] == s {
		delete(e.sessions, s.tabID)
	}
	e.mu.Unlock()
	e.release(s)
	e.notify(ctx, protocol.ProcessingStopped(s.tabID, s.streamID))
	e.notify(ctx, protocol.Failure(s.tabID, s.streamID, err))
	return err
}

func (e *Engine) build(ctx context.Context, s *session, cfg settings.EnhancementConfig) error {
	if s.streamID == "" {
		return fmt.Errorf("streamId: %w", protocol.ErrMissingField)
	}

	acqCtx, cancel := context.WithTimeout(ctx, e.acquire)
	defer cancel()
	stream, err := e.platform.Acquire(acqCtx, s.tabID, s.streamID)
	if err != nil {
		return fmt.Errorf("acquire stream: %w", err)
	}
	e.mu.Lock()
	s.stream = stream
	e.mu.Unlock()
	stream.OnEnded(func() { e.streamEnded(s) })

	graph, err := e.platform.NewGraph(ctx, stream)
	if err != nil {
		return fmt.Errorf("create graph: %w", err)
	}
	e.mu.Lock()
	s.graph = graph
	s.sampleRate = graph.SampleRate()
	e.mu.Unlock()

	if err := buildCascade(s, graph, e.tuning); err != nil {
		return err
	}

	e.applyLocked(s, cfg)
	return nil
}

// buildCascade creates notch → bandpass → lowpass → peaking×N → compressor →
// gain and connects them in that order to the output. The topology is the same
// for every configuration; features are switched by retuning parameters.
func buildCascade(s *session, g Graph, t Tuning) error {
	newStage := func(kind StageKind) (Stage, error) {
		st, err := g.NewStage(kind)
		if err != nil {
			return nil, fmt.Errorf("create %s stage: %w", kind, err)
		}
		s.stages = append(s.stages, st)
		return st, nil
	}

	var err error
	if s.notch, err = newStage(StageNotch); err != nil {
		return err
	}
	if s.bandpass, err = newStage(StageBandpass); err != nil {
		return err
	}
	if s.lowpass, err = newStage(StageLowpass); err != nil {
		return err
	}
	for i := range s.eq {
		if s.eq[i], err = newStage(StagePeaking); err != nil {
			return err
		}
	}
	if s.compressor, err = newStage(StageCompressor); err != nil {
		return err
	}
	if s.output, err = newStage(StageGain); err != nil {
		return err
	}

	for i := 1; i < len(s.stages); i++ {
		if err := g.Connect(s.stages[i-1], s.stages[i]); err != nil {
			return fmt.Errorf("connect %s → %s: %w", s.stages[i-1].Kind(), s.stages[i].Kind(), err)
		}
	}
	if err := g.ConnectOutput(s.output); err != nil {
		return fmt.Errorf("connect output: %w", err)
	}
	return nil
}

// ApplyConfig retunes a live session. Tabs without a live session are left alone.
func (e *Engine) ApplyConfig(tabID settings.TabID, cfg settings.EnhancementConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[tabID]
	if !ok || !s.live {
		return ErrNoSession
	}
	e.applyLocked(s, cfg)
	return nil
}

// applyLocked ramps every parameter of s to the targets of cfg. Callers hold
// e.mu or own s exclusively.
func (e *Engine) applyLocked(s *session, cfg settings.EnhancementConfig) {
	cfg = cfg.Clamped()
	targets := Targets(cfg, s.sampleRate, e.tuning)

	rampFilter(s.notch, targets.Notch, e.ramp)
	rampFilter(s.bandpass, targets.Bandpass, e.ramp)
	rampFilter(s.lowpass, targets.Lowpass, e.ramp)
	for i, band := range targets.EQ {
		ramp(s.eq[i], ParamFrequency, band.Frequency, e.ramp)
		ramp(s.eq[i], ParamQ, band.Q, e.ramp)
		ramp(s.eq[i], ParamGain, band.Gain, e.ramp)
	}
	c := targets.Compressor
	ramp(s.compressor, ParamThreshold, c.Threshold, e.ramp)
	ramp(s.compressor, ParamKnee, c.Knee, e.ramp)
	ramp(s.compressor, ParamRatio, c.Ratio, e.ramp)
	ramp(s.compressor, ParamAttack, c.Attack, e.ramp)
	ramp(s.compressor, ParamRelease, c.Release, e.ramp)
	ramp(s.output, ParamGain, targets.OutputGain, e.ramp)

	s.config = cfg
}

func rampFilter(st Stage, f FilterTarget, window time.Duration) {
	ramp(st, ParamFrequency, f.Frequency, window)
	ramp(st, ParamQ, f.Q, window)
}

func ramp(st Stage, name string, target float64, window time.Duration) {
	p, ok := st.Param(name)
	if !ok {
		slog.Debug("engine: stage has no such param", "kind", st.Kind(), "param", name)
		return
	}
	p.RampTo(target, window)
}

// Stop releases the tab's session, if any, and always reports
// processing-stopped. Graph and stream are released independently; a failure
// of one is logged and does not prevent the other.
func (e *Engine) Stop(ctx context.Context, tabID settings.TabID) {
	e.mu.Lock()
	s, ok := e.sessions[tabID]
	delete(e.sessions, tabID)
	e.mu.Unlock()

	streamID := ""
	if ok {
		streamID = s.streamID
		e.release(s)
		slog.Info("engine: processing stopped", "tab_id", tabID)
	} else {
		slog.Debug("engine: stop for tab without session", "tab_id", tabID)
	}
	e.notify(ctx, protocol.ProcessingStopped(tabID, streamID))
}

func (e *Engine) release(s *session) {
	e.mu.Lock()
	graph, stream := s.graph, s.stream
	s.graph, s.stream = nil, nil
	e.mu.Unlock()

	if graph != nil {
		if err := graph.Close(); err != nil {
			slog.Warn("engine: graph release failed", "tab_id", s.tabID, "error", err)
		}
	}
	if stream != nil {
		if err := stream.Stop(); err != nil {
			slog.Warn("engine: stream release failed", "tab_id", s.tabID, "error", err)
		}
	}
}

// streamEnded tears down s when its stream ends upstream, unless s has
// already been replaced or stopped. A session that is still starting is only
// marked; Start reports the failure.
func (e *Engine) streamEnded(s *session) {
	e.mu.Lock()
	current := e.sessions[s.tabID] == s
	if current && !s.live {
		s.ended = true
		current = false
	}
	e.mu.Unlock()
	if !current {
		return
	}
	slog.Info("engine: stream ended", "tab_id", s.tabID)
	e.Stop(context.Background(), s.tabID)
}

func (e *Engine) notify(ctx context.Context, msg protocol.Message) {
	if err := e.upstream.Send(ctx, msg); err != nil {
		slog.Warn("engine: notification undeliverable", "type", msg.Type, "tab_id", msg.TabID, "error", err)
	}
}

// Sessions returns the tabs with a live session, in ascending order.
func (e *Engine) Sessions() []settings.TabID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]settings.TabID, 0, len(e.sessions))
	for id, s := range e.sessions {
		if s.live {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StageSnapshot is the current state of one stage.
type StageSnapshot struct {
	Kind   StageKind          `json:"kind"`
	Params map[string]float64 `json:"params"`
}

// Snapshot returns the live parameter values of a tab's cascade in chain order.
func (e *Engine) Snapshot(tabID settings.TabID) ([]StageSnapshot, settings.EnhancementConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[tabID]
	if !ok || !s.live {
		return nil, settings.EnhancementConfig{}, ErrNoSession
	}
	out := make([]StageSnapshot, 0, len(s.stages))
	for _, st := range s.stages {
		snap := StageSnapshot{Kind: st.Kind(), Params: make(map[string]float64)}
		for _, name := range paramNames(st.Kind()) {
			if p, ok := st.Param(name); ok {
				snap.Params[name] = p.Value()
			}
		}
		out = append(out, snap)
	}
	return out, s.config, nil
}

func paramNames(kind StageKind) []string {
	switch kind {
	case StageCompressor:
		return []string{ParamThreshold, ParamKnee, ParamRatio, ParamAttack, ParamRelease}
	case StageGain:
		return []string{ParamGain}
	default:
		return []string{ParamFrequency, ParamQ, ParamGain}
	}
}

// Package virtual is an in-memory capture and audio graph platform. It records
// the cascade the engine builds and the parameter automation applied to it, so
// the whole system runs without a browser.
package virtual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/tabvoice/internal/pipeline"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// DefaultSampleRate is the graph sample rate when none is configured.
const DefaultSampleRate = 48000

var (
	ErrUnknownStream = errors.New("virtual: unknown or already used stream id")
	ErrTabMismatch   = errors.New("virtual: stream id was issued for another tab")
	ErrTabBusy       = errors.New("virtual: tab already captured")
	ErrClosed        = errors.New("virtual: graph closed")
)

// Option configures a Platform.
type Option func(*Platform)

// WithSampleRate sets the sample rate of every graph.
func WithSampleRate(rate float64) Option {
	return func(p *Platform) { p.sampleRate = rate }
}

// WithClock replaces time.Now for parameter automation.
func WithClock(now func() time.Time) Option {
	return func(p *Platform) { p.now = now }
}

// WithOpenAcquire accepts stream ids this platform did not issue. Used when the
// ids come from a coordinator in another process.
func WithOpenAcquire() Option {
	return func(p *Platform) { p.open = true }
}

// Platform issues single-use stream ids and hands out virtual streams and graphs.
type Platform struct {
	sampleRate float64
	now        func() time.Time
	open       bool

	mu       sync.Mutex
	issued   map[string]settings.TabID
	streams  map[settings.TabID]*Stream
	graphs   []*Graph
	failures map[settings.TabID]error
	stageErr map[settings.TabID]stageFault
}

type stageFault struct {
	kind pipeline.StageKind
	err  error
}

func New(opts ...Option) *Platform {
	p := &Platform{
		sampleRate: DefaultSampleRate,
		now:        time.Now,
		issued:     make(map[string]settings.TabID),
		streams:    make(map[settings.TabID]*Stream),
		failures:   make(map[settings.TabID]error),
		stageErr:   make(map[settings.TabID]stageFault),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IssueStreamID returns a fresh single-use id for capturing tabID.
func (p *Platform) IssueStreamID(ctx context.Context, tabID settings.TabID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	p.mu.Lock()
	p.issued[id] = tabID
	p.mu.Unlock()
	return id, nil
}

// FailAcquire makes the next Acquire for tabID fail with err.
func (p *Platform) FailAcquire(tabID settings.TabID, err error) {
	p.mu.Lock()
	p.failures[tabID] = err
	p.mu.Unlock()
}

// FailStage makes the next graph built for tabID refuse stages of kind.
func (p *Platform) FailStage(tabID settings.TabID, kind pipeline.StageKind, err error) {
	p.mu.Lock()
	p.stageErr[tabID] = stageFault{kind: kind, err: err}
	p.mu.Unlock()
}

func (p *Platform) Acquire(ctx context.Context, tabID settings.TabID, streamID string) (pipeline.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.failures[tabID]; ok {
		delete(p.failures, tabID)
		return nil, err
	}
	owner, ok := p.issued[streamID]
	switch {
	case ok && owner != tabID:
		return nil, ErrTabMismatch
	case !ok && !p.open:
		return nil, ErrUnknownStream
	}
	if s, busy := p.streams[tabID]; busy && !s.stopped {
		return nil, ErrTabBusy
	}
	delete(p.issued, streamID)

	s := &Stream{platform: p, tabID: tabID, id: streamID, tracks: 1}
	p.streams[tabID] = s
	return s, nil
}

func (p *Platform) NewGraph(ctx context.Context, stream pipeline.Stream) (pipeline.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vs, ok := stream.(*Stream)
	if !ok {
		return nil, fmt.Errorf("virtual: foreign stream %T", stream)
	}
	g := &Graph{platform: p, stream: vs, sampleRate: p.sampleRate}
	p.mu.Lock()
	if f, ok := p.stageErr[vs.tabID]; ok {
		delete(p.stageErr, vs.tabID)
		g.failKind, g.failErr = f.kind, f.err
	}
	p.graphs = append(p.graphs, g)
	p.mu.Unlock()
	return g, nil
}

// EndStream simulates the tab's tracks ending outside the engine's control and
// fires the stream's ended hooks. It reports whether a live stream existed.
func (p *Platform) EndStream(tabID settings.TabID) bool {
	p.mu.Lock()
	s, ok := p.streams[tabID]
	if !ok || s.stopped || s.ended {
		p.mu.Unlock()
		return false
	}
	s.ended = true
	hooks := s.onEnded
	s.onEnded = nil
	p.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return true
}

// LiveStreams counts streams that are neither stopped nor ended.
func (p *Platform) LiveStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.streams {
		if !s.stopped && !s.ended {
			n++
		}
	}
	return n
}

// Graphs returns every graph created so far, oldest first.
func (p *Platform) Graphs() []*Graph {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Graph, len(p.graphs))
	copy(out, p.graphs)
	return out
}

// StreamFor returns the most recent stream acquired for tabID.
func (p *Platform) StreamFor(tabID settings.TabID) (*Stream, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[tabID]
	return s, ok
}

// Stream is a virtual capture handle.
type Stream struct {
	platform *Platform
	tabID    settings.TabID
	id       string
	tracks   int

	onEnded []func()
	stopped bool
	ended   bool
	stopErr error
}

func (s *Stream) ID() string { return s.id }

// OnEnded registers fn. On a stream that has already ended fn runs at once.
func (s *Stream) OnEnded(fn func()) {
	s.platform.mu.Lock()
	if s.ended {
		s.platform.mu.Unlock()
		fn()
		return
	}
	if !s.stopped {
		s.onEnded = append(s.onEnded, fn)
	}
	s.platform.mu.Unlock()
}

// Stop stops the tracks. Like a real track stop it does not fire ended hooks.
func (s *Stream) Stop() error {
	s.platform.mu.Lock()
	defer s.platform.mu.Unlock()
	s.stopped = true
	s.onEnded = nil
	return s.stopErr
}

// FailStop makes Stop report err after stopping the tracks.
func (s *Stream) FailStop(err error) {
	s.platform.mu.Lock()
	s.stopErr = err
	s.platform.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (s *Stream) Stopped() bool {
	s.platform.mu.Lock()
	defer s.platform.mu.Unlock()
	return s.stopped
}

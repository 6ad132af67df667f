package virtual

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/pipeline"
)

// Graph records the stages created on it, their connections and the
// automation of every parameter.
type Graph struct {
	platform   *Platform
	stream     *Stream
	sampleRate float64

	mu       sync.Mutex
	stages   []*Stage
	next     map[*Stage]*Stage
	output   *Stage
	closed   bool
	closeErr error
	failKind pipeline.StageKind
	failErr  error
}

func (g *Graph) SampleRate() float64 { return g.sampleRate }

// FailStage makes creating a stage of kind fail with err.
func (g *Graph) FailStage(kind pipeline.StageKind, err error) {
	g.mu.Lock()
	g.failKind, g.failErr = kind, err
	g.mu.Unlock()
}

// FailClose makes Close report err after closing.
func (g *Graph) FailClose(err error) {
	g.mu.Lock()
	g.closeErr = err
	g.mu.Unlock()
}

func (g *Graph) NewStage(kind pipeline.StageKind) (pipeline.Stage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	if g.failErr != nil && g.failKind == kind {
		return nil, g.failErr
	}
	st := &Stage{graph: g, kind: kind, params: make(map[string]*Param)}
	for name, v := range defaultParams(kind) {
		st.params[name] = &Param{graph: g, from: v, to: v}
	}
	g.stages = append(g.stages, st)
	return st, nil
}

func (g *Graph) Connect(from, to pipeline.Stage) error {
	a, err := g.own(from)
	if err != nil {
		return err
	}
	b, err := g.own(to)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.next == nil {
		g.next = make(map[*Stage]*Stage)
	}
	g.next[a] = b
	return nil
}

func (g *Graph) ConnectOutput(stage pipeline.Stage) error {
	st, err := g.own(stage)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.output = st
	return nil
}

func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return g.closeErr
}

func (g *Graph) own(stage pipeline.Stage) (*Stage, error) {
	st, ok := stage.(*Stage)
	if !ok || st.graph != g {
		return nil, fmt.Errorf("virtual: stage %T does not belong to this graph", stage)
	}
	return st, nil
}

// Closed reports whether the graph was released.
func (g *Graph) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Chain walks the connections from the first created stage and returns the
// stages in signal order. It stops at a stage without a successor.
func (g *Graph) Chain() []*Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.stages) == 0 {
		return nil
	}
	var out []*Stage
	seen := make(map[*Stage]bool)
	for st := g.stages[0]; st != nil && !seen[st]; st = g.next[st] {
		seen[st] = true
		out = append(out, st)
	}
	return out
}

// Output returns the stage connected to the destination, if any.
func (g *Graph) Output() *Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.output
}

// Stage is a virtual filter stage.
type Stage struct {
	graph  *Graph
	kind   pipeline.StageKind
	params map[string]*Param
}

func (s *Stage) Kind() pipeline.StageKind { return s.kind }

func (s *Stage) Param(name string) (pipeline.Param, bool) {
	p, ok := s.params[name]
	if !ok {
		return nil, false
	}
	return p, true
}

// Target returns the value the named parameter is ramping towards.
func (s *Stage) Target(name string) float64 {
	p, ok := s.params[name]
	if !ok {
		return 0
	}
	return p.Target()
}

// Param is a linearly automated value.
type Param struct {
	graph      *Graph
	from, to   float64
	start, end time.Time
	ramps      int
}

func (p *Param) Value() float64 {
	p.graph.mu.Lock()
	defer p.graph.mu.Unlock()
	return p.valueAt(p.graph.platform.now())
}

func (p *Param) valueAt(now time.Time) float64 {
	if !now.Before(p.end) {
		return p.to
	}
	if !now.After(p.start) {
		return p.from
	}
	frac := float64(now.Sub(p.start)) / float64(p.end.Sub(p.start))
	return p.from + (p.to-p.from)*frac
}

func (p *Param) RampTo(target float64, window time.Duration) {
	p.graph.mu.Lock()
	defer p.graph.mu.Unlock()
	now := p.graph.platform.now()
	p.from = p.valueAt(now)
	p.to = target
	p.start = now
	p.end = now.Add(window)
	p.ramps++
}

// Target returns the end value of the current ramp.
func (p *Param) Target() float64 {
	p.graph.mu.Lock()
	defer p.graph.mu.Unlock()
	return p.to
}

// Ramps counts RampTo calls.
func (p *Param) Ramps() int {
	p.graph.mu.Lock()
	defer p.graph.mu.Unlock()
	return p.ramps
}

// defaultParams mirrors the initial values of the platform's filter nodes.
func defaultParams(kind pipeline.StageKind) map[string]float64 {
	switch kind {
	case pipeline.StageCompressor:
		return map[string]float64{
			pipeline.ParamThreshold: -24,
			pipeline.ParamKnee:      30,
			pipeline.ParamRatio:     12,
			pipeline.ParamAttack:    0.003,
			pipeline.ParamRelease:   0.25,
		}
	case pipeline.StageGain:
		return map[string]float64{pipeline.ParamGain: 1}
	default:
		return map[string]float64{
			pipeline.ParamFrequency: 350,
			pipeline.ParamQ:         1,
			pipeline.ParamGain:      0,
		}
	}
}

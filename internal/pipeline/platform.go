// Package pipeline builds and drives the per-tab enhancement filter cascade.
package pipeline

import (
	"context"
	"time"

	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// StageKind identifies the kind of a filter stage.
type StageKind string

const (
	StageNotch      StageKind = "notch"
	StageBandpass   StageKind = "bandpass"
	StageLowpass    StageKind = "lowpass"
	StagePeaking    StageKind = "peaking"
	StageCompressor StageKind = "compressor"
	StageGain       StageKind = "gain"
)

// Parameter names exposed by stages.
const (
	ParamFrequency = "frequency"
	ParamQ         = "Q"
	ParamGain      = "gain"
	ParamThreshold = "threshold"
	ParamKnee      = "knee"
	ParamRatio     = "ratio"
	ParamAttack    = "attack"
	ParamRelease   = "release"
)

// Platform is the media capture and audio graph capability the engine runs on.
type Platform interface {
	// Acquire opens the live audio stream a stream id was issued for.
	Acquire(ctx context.Context, tabID settings.TabID, streamID string) (Stream, error)
	// NewGraph creates an audio graph fed by stream.
	NewGraph(ctx context.Context, stream Stream) (Graph, error)
}

// Stream is a live capture handle.
type Stream interface {
	// OnEnded registers fn to run when the stream ends for reasons outside the engine.
	OnEnded(fn func())
	// Stop stops every track of the stream.
	Stop() error
}

// Graph is a chain of stages fed by a stream.
type Graph interface {
	SampleRate() float64
	NewStage(kind StageKind) (Stage, error)
	Connect(from, to Stage) error
	ConnectOutput(stage Stage) error
	// Close releases the graph, which silences its output.
	Close() error
}

// Stage is one filter, compressor or gain unit.
type Stage interface {
	Kind() StageKind
	Param(name string) (Param, bool)
}

// Param is a continuously automatable numeric parameter.
type Param interface {
	Value() float64
	// RampTo cancels pending automation and moves linearly from the current
	// value to target over window.
	RampTo(target float64, window time.Duration)
}

package pipeline

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// FilterTarget is the parameter set of a biquad stage.
type FilterTarget struct {
	Frequency float64 `yaml:"frequency" json:"frequency"` // Hz
	Q         float64 `yaml:"q" json:"q"`
}

// PeakingTarget is the parameter set of one equalizer band.
type PeakingTarget struct {
	Frequency float64 `json:"frequency"` // Hz
	Q         float64 `json:"q"`
	Gain      float64 `json:"gain"` // dB
}

// CompressorTarget is the parameter set of the dynamics compressor.
type CompressorTarget struct {
	Threshold float64 `yaml:"threshold" json:"threshold"` // dB
	Knee      float64 `yaml:"knee" json:"knee"`           // dB
	Ratio     float64 `yaml:"ratio" json:"ratio"`
	Attack    float64 `yaml:"attack" json:"attack"`   // seconds
	Release   float64 `yaml:"release" json:"release"` // seconds
}

// ParamTargets is the full set of values a configuration maps to.
type ParamTargets struct {
	Notch      FilterTarget                      `json:"notch"`
	Bandpass   FilterTarget                      `json:"bandpass"`
	Lowpass    FilterTarget                      `json:"lowpass"`
	EQ         [settings.BandCount]PeakingTarget `json:"eq"`
	Compressor CompressorTarget                  `json:"compressor"`
	OutputGain float64                           `json:"outputGain"` // linear
}

// Tuning holds the enabled-state constants and their neutral counterparts.
type Tuning struct {
	// Hum removal: narrow notch on the mains frequency.
	Notch FilterTarget `yaml:"notch"`
	// Voice band emphasis around the speech formants.
	Bandpass FilterTarget `yaml:"bandpass"`
	// Hiss rejection above the voice band.
	Lowpass FilterTarget `yaml:"lowpass"`
	// Loudness normalization.
	Compressor CompressorTarget `yaml:"compressor"`

	// Neutral notch sits above the audible band with near-zero sharpness.
	NeutralNotch FilterTarget `yaml:"neutral_notch"`
	// Neutral bandpass is wide enough to pass the whole band.
	NeutralBandpass FilterTarget `yaml:"neutral_bandpass"`
	// Neutral lowpass cutoff is always Nyquist; only Q is tunable.
	NeutralLowpassQ float64 `yaml:"neutral_lowpass_q"`
	// Pass-through compressor: threshold 0 dB, no knee, 1:1.
	NeutralCompressor CompressorTarget `yaml:"neutral_compressor"`

	EQQ        float64 `yaml:"eq_q"`
	OutputGain float64 `yaml:"output_gain"` // linear
}

// DefaultTuning returns the tuned constants for speech enhancement.
func DefaultTuning() Tuning {
	return Tuning{
		Notch:    FilterTarget{Frequency: 60, Q: 30},      // 60Hz mains hum, narrow
		Bandpass: FilterTarget{Frequency: 1700, Q: 0.5},   // ~300Hz-3.4kHz voice band
		Lowpass:  FilterTarget{Frequency: 8000, Q: 0.707}, // Butterworth, cuts hiss above 8kHz
		Compressor: CompressorTarget{
			Threshold: -24,   // dB
			Knee:      30,    // dB, soft
			Ratio:     4,     // 4:1
			Attack:    0.003, // 3ms
			Release:   0.25,  // 250ms
		},

		NeutralNotch:    FilterTarget{Frequency: 20000, Q: 0.0001},
		NeutralBandpass: FilterTarget{Frequency: 1000, Q: 0.0001},
		NeutralLowpassQ: 0.0001,
		NeutralCompressor: CompressorTarget{
			Threshold: 0,
			Knee:      0,
			Ratio:     1,
			Attack:    0.003,
			Release:   0.25,
		},

		EQQ:        1.4,
		OutputGain: 1.0,
	}
}

// LoadTuning reads a YAML tuning file. Keys absent from the file keep their
// DefaultTuning values.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("tuning: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("tuning: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

// Validate rejects constants the platform filters cannot represent.
func (t Tuning) Validate() error {
	filters := []struct {
		name string
		f    FilterTarget
	}{
		{"notch", t.Notch},
		{"bandpass", t.Bandpass},
		{"lowpass", t.Lowpass},
		{"neutral_notch", t.NeutralNotch},
		{"neutral_bandpass", t.NeutralBandpass},
	}
	for _, f := range filters {
		if f.f.Frequency <= 0 {
			return fmt.Errorf("tuning: %s frequency must be positive", f.name)
		}
		if f.f.Q <= 0 {
			return fmt.Errorf("tuning: %s q must be positive", f.name)
		}
	}
	for name, c := range map[string]CompressorTarget{"compressor": t.Compressor, "neutral_compressor": t.NeutralCompressor} {
		if c.Ratio < 1 {
			return fmt.Errorf("tuning: %s ratio must be >= 1", name)
		}
		if c.Threshold > 0 || c.Knee < 0 || c.Attack < 0 || c.Release < 0 {
			return fmt.Errorf("tuning: %s has out-of-range values", name)
		}
	}
	if t.EQQ <= 0 {
		return fmt.Errorf("tuning: eq_q must be positive")
	}
	if t.OutputGain <= 0 {
		return fmt.Errorf("tuning: output_gain must be positive")
	}
	return nil
}

// Targets maps a configuration to stage parameters.
//
// The voice enhancement flag is a master switch: when it is off every
// enhancement stage is neutral whatever the sub-flags say. When it is on,
// NoiseCancelEnabled gates the notch/bandpass/lowpass group and
// NormalizeEnabled gates the compressor. Equalizer gains never depend on flags.
func Targets(cfg settings.EnhancementConfig, sampleRate float64, t Tuning) ParamTargets {
	nyquist := sampleRate / 2
	noiseCancel := cfg.VoiceEnhancementEnabled && cfg.NoiseCancelEnabled
	normalize := cfg.VoiceEnhancementEnabled && cfg.NormalizeEnabled

	out := ParamTargets{OutputGain: t.OutputGain}

	if noiseCancel {
		out.Notch = clampFilter(t.Notch, nyquist)
		out.Bandpass = clampFilter(t.Bandpass, nyquist)
		out.Lowpass = clampFilter(t.Lowpass, nyquist)
	} else {
		out.Notch = clampFilter(t.NeutralNotch, nyquist)
		out.Bandpass = clampFilter(t.NeutralBandpass, nyquist)
		out.Lowpass = FilterTarget{Frequency: nyquist, Q: t.NeutralLowpassQ}
	}

	if normalize {
		out.Compressor = t.Compressor
	} else {
		out.Compressor = t.NeutralCompressor
	}

	for i, freq := range settings.BandFrequencies {
		out.EQ[i] = PeakingTarget{
			Frequency: math.Min(freq, nyquist),
			Q:         t.EQQ,
			Gain:      cfg.EQGain[i],
		}
	}
	return out
}

func clampFilter(f FilterTarget, nyquist float64) FilterTarget {
	if f.Frequency > nyquist {
		f.Frequency = nyquist
	}
	return f
}

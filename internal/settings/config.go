// Package settings holds the per-tab enhancement configuration and its defaults.
package settings

import (
	"fmt"
	"strconv"
)

// TabID identifies a browser tab. It keys every per-tab map in the system.
type TabID int64

func (id TabID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseTabID parses a decimal tab id. Tab ids are positive.
func ParseTabID(s string) (TabID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tab id %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid tab id %q: must be positive", s)
	}
	return TabID(v), nil
}

// BandCount is the number of fixed equalizer bands.
const BandCount = 10

// MaxBandGainDB bounds the absolute gain of a single equalizer band.
const MaxBandGainDB = 24.0

// BandFrequencies are the center frequencies (Hz) of the equalizer bands, in chain order.
var BandFrequencies = [BandCount]float64{31, 62, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// EnhancementConfig is the complete set of user-facing enhancement parameters for a tab.
type EnhancementConfig struct {
	VoiceEnhancementEnabled bool               `json:"voiceEnhancementEnabled"`
	NoiseCancelEnabled      bool               `json:"noiseCancelEnabled"`
	NormalizeEnabled        bool               `json:"normalizeEnabled"`
	EQGain                  [BandCount]float64 `json:"eqGain"`
}

// Defaults returns the configuration used for tabs that have never been configured:
// every enhancement enabled and a flat equalizer.
func Defaults() EnhancementConfig {
	return EnhancementConfig{
		VoiceEnhancementEnabled: true,
		NoiseCancelEnabled:      true,
		NormalizeEnabled:        true,
	}
}

// Passthrough returns a configuration that leaves the signal untouched.
func Passthrough() EnhancementConfig {
	return EnhancementConfig{}
}

// Partial is the wire form of a settings update. Nil fields and missing trailing
// equalizer bands are filled from a base configuration by Merge.
type Partial struct {
	VoiceEnhancementEnabled *bool     `json:"voiceEnhancementEnabled,omitempty"`
	NoiseCancelEnabled      *bool     `json:"noiseCancelEnabled,omitempty"`
	NormalizeEnabled        *bool     `json:"normalizeEnabled,omitempty"`
	EQGain                  []float64 `json:"eqGain,omitempty" maxItems:"10"`
}

// PartialOf returns a Partial that sets every field of cfg.
func PartialOf(cfg EnhancementConfig) Partial {
	voice, noise, norm := cfg.VoiceEnhancementEnabled, cfg.NoiseCancelEnabled, cfg.NormalizeEnabled
	gains := make([]float64, BandCount)
	copy(gains, cfg.EQGain[:])
	return Partial{
		VoiceEnhancementEnabled: &voice,
		NoiseCancelEnabled:      &noise,
		NormalizeEnabled:        &norm,
		EQGain:                  gains,
	}
}

// Merge fills every field of p that is absent from base and returns the result.
// Gains beyond BandCount are ignored and every gain is clamped to ±MaxBandGainDB.
func Merge(base EnhancementConfig, p Partial) EnhancementConfig {
	out := base
	if p.VoiceEnhancementEnabled != nil {
		out.VoiceEnhancementEnabled = *p.VoiceEnhancementEnabled
	}
	if p.NoiseCancelEnabled != nil {
		out.NoiseCancelEnabled = *p.NoiseCancelEnabled
	}
	if p.NormalizeEnabled != nil {
		out.NormalizeEnabled = *p.NormalizeEnabled
	}
	for i := 0; i < BandCount && i < len(p.EQGain); i++ {
		out.EQGain[i] = p.EQGain[i]
	}
	return out.Clamped()
}

// Resolve merges p over the declared defaults.
func Resolve(p Partial) EnhancementConfig {
	return Merge(Defaults(), p)
}

// Clamped returns a copy of c with every band gain limited to ±MaxBandGainDB.
func (c EnhancementConfig) Clamped() EnhancementConfig {
	for i, g := range c.EQGain {
		switch {
		case g > MaxBandGainDB:
			c.EQGain[i] = MaxBandGainDB
		case g < -MaxBandGainDB:
			c.EQGain[i] = -MaxBandGainDB
		case g != g: // NaN
			c.EQGain[i] = 0
		}
	}
	return c
}

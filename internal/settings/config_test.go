package settings

import (
	"encoding/json"
	"math"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if !cfg.VoiceEnhancementEnabled || !cfg.NoiseCancelEnabled || !cfg.NormalizeEnabled {
		t.Fatalf("Defaults() flags = %+v; want all enabled", cfg)
	}
	for i, g := range cfg.EQGain {
		if g != 0 {
			t.Fatalf("Defaults().EQGain[%d] = %v; want 0", i, g)
		}
	}
}

func TestMerge_FillsMissingFieldsFromBase(t *testing.T) {
	base := Defaults()
	base.EQGain[9] = 3

	off := false
	got := Merge(base, Partial{NoiseCancelEnabled: &off, EQGain: []float64{1.5, -2}})

	if !got.VoiceEnhancementEnabled {
		t.Fatalf("VoiceEnhancementEnabled = false; want true from base")
	}
	if got.NoiseCancelEnabled {
		t.Fatalf("NoiseCancelEnabled = true; want false from partial")
	}
	if !got.NormalizeEnabled {
		t.Fatalf("NormalizeEnabled = false; want true from base")
	}
	if got.EQGain[0] != 1.5 || got.EQGain[1] != -2 {
		t.Fatalf("EQGain[0:2] = %v; want [1.5 -2]", got.EQGain[0:2])
	}
	if got.EQGain[9] != 3 {
		t.Fatalf("EQGain[9] = %v; want 3 from base", got.EQGain[9])
	}
}

func TestMerge_ClampsGains(t *testing.T) {
	got := Resolve(Partial{EQGain: []float64{100, -100, math.NaN(), 0, 0, 0, 0, 0, 0, 0, 42}})
	if got.EQGain[0] != MaxBandGainDB {
		t.Fatalf("EQGain[0] = %v; want %v", got.EQGain[0], MaxBandGainDB)
	}
	if got.EQGain[1] != -MaxBandGainDB {
		t.Fatalf("EQGain[1] = %v; want %v", got.EQGain[1], -MaxBandGainDB)
	}
	if got.EQGain[2] != 0 {
		t.Fatalf("EQGain[2] = %v; want 0 for NaN", got.EQGain[2])
	}
}

func TestPartialOf_RoundTripsThroughMerge(t *testing.T) {
	cfg := EnhancementConfig{NormalizeEnabled: true}
	cfg.EQGain[4] = -6
	if got := Merge(Defaults(), PartialOf(cfg)); got != cfg {
		t.Fatalf("Merge(Defaults(), PartialOf(cfg)) = %+v; want %+v", got, cfg)
	}
}

func TestPartial_JSONOmitsUnsetFields(t *testing.T) {
	var p Partial
	if err := json.Unmarshal([]byte(`{"normalizeEnabled":false}`), &p); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if p.VoiceEnhancementEnabled != nil || p.NoiseCancelEnabled != nil {
		t.Fatalf("unset flags decoded as non-nil: %+v", p)
	}
	got := Resolve(p)
	if got.NormalizeEnabled || !got.VoiceEnhancementEnabled {
		t.Fatalf("Resolve() = %+v; want only normalize disabled", got)
	}
}

func TestParseTabID(t *testing.T) {
	if id, err := ParseTabID("42"); err != nil || id != 42 {
		t.Fatalf("ParseTabID(42) = %v, %v; want 42, nil", id, err)
	}
	for _, in := range []string{"", "abc", "0", "-3"} {
		if _, err := ParseTabID(in); err == nil {
			t.Fatalf("ParseTabID(%q) = nil error; want error", in)
		}
	}
}

package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/tabvoice/internal/settings"
)

const testRate = 48000.0

func cfgWith(voice, noise, norm bool) settings.EnhancementConfig {
	return settings.EnhancementConfig{VoiceEnhancementEnabled: voice, NoiseCancelEnabled: noise, NormalizeEnabled: norm}
}

func TestTargets_BypassIgnoresSubFlags(t *testing.T) {
	tuning := DefaultTuning()
	want := Targets(cfgWith(false, false, false), testRate, tuning)
	for _, cfg := range []settings.EnhancementConfig{
		cfgWith(false, true, false),
		cfgWith(false, false, true),
		cfgWith(false, true, true),
	} {
		if got := Targets(cfg, testRate, tuning); got != want {
			t.Fatalf("Targets(%+v) = %+v; want neutral %+v", cfg, got, want)
		}
	}
}

func TestTargets_NeutralValues(t *testing.T) {
	got := Targets(settings.Passthrough(), testRate, DefaultTuning())
	if got.Notch.Frequency != 20000 || got.Notch.Q != 0.0001 {
		t.Fatalf("neutral notch = %+v; want 20000Hz Q 0.0001", got.Notch)
	}
	if got.Lowpass.Frequency != testRate/2 {
		t.Fatalf("neutral lowpass = %v Hz; want Nyquist %v", got.Lowpass.Frequency, testRate/2)
	}
	c := got.Compressor
	if c.Threshold != 0 || c.Knee != 0 || c.Ratio != 1 {
		t.Fatalf("neutral compressor = %+v; want threshold 0, knee 0, ratio 1", c)
	}
	for i, band := range got.EQ {
		if band.Gain != 0 {
			t.Fatalf("EQ[%d].Gain = %v; want 0", i, band.Gain)
		}
	}
	if got.OutputGain != 1 {
		t.Fatalf("OutputGain = %v; want 1", got.OutputGain)
	}
}

func TestTargets_NeutralNotchClampedToNyquist(t *testing.T) {
	got := Targets(settings.Passthrough(), 22050, DefaultTuning())
	if got.Notch.Frequency != 11025 {
		t.Fatalf("notch at 22.05kHz = %v; want 11025", got.Notch.Frequency)
	}
	if got.EQ[9].Frequency != 11025 {
		t.Fatalf("16kHz band at 22.05kHz = %v; want 11025", got.EQ[9].Frequency)
	}
}

func TestTargets_NoiseCancelWithoutNormalize(t *testing.T) {
	tuning := DefaultTuning()
	got := Targets(cfgWith(true, true, false), testRate, tuning)
	if got.Notch != tuning.Notch || got.Bandpass != tuning.Bandpass || got.Lowpass != tuning.Lowpass {
		t.Fatalf("filters = %+v %+v %+v; want tuned", got.Notch, got.Bandpass, got.Lowpass)
	}
	if got.Compressor != tuning.NeutralCompressor {
		t.Fatalf("compressor = %+v; want pass-through", got.Compressor)
	}
}

func TestTargets_NormalizeWithoutNoiseCancel(t *testing.T) {
	tuning := DefaultTuning()
	got := Targets(cfgWith(true, false, true), testRate, tuning)
	if got.Compressor != tuning.Compressor {
		t.Fatalf("compressor = %+v; want tuned", got.Compressor)
	}
	if got.Notch != tuning.NeutralNotch {
		t.Fatalf("notch = %+v; want neutral", got.Notch)
	}
}

func TestTargets_EQBandsAreIndependent(t *testing.T) {
	tuning := DefaultTuning()
	base := settings.Defaults()
	before := Targets(base, testRate, tuning)

	changed := base
	changed.EQGain[3] = 6
	after := Targets(changed, testRate, tuning)

	for i := range after.EQ {
		if i == 3 {
			if after.EQ[i].Gain != 6 {
				t.Fatalf("EQ[3].Gain = %v; want 6", after.EQ[i].Gain)
			}
			continue
		}
		if after.EQ[i] != before.EQ[i] {
			t.Fatalf("EQ[%d] = %+v; want unchanged %+v", i, after.EQ[i], before.EQ[i])
		}
	}
	if after.Notch != before.Notch || after.Bandpass != before.Bandpass || after.Lowpass != before.Lowpass || after.Compressor != before.Compressor {
		t.Fatal("changing one band altered a flag-gated stage")
	}
}

func TestTargets_EQFollowsBandFrequencies(t *testing.T) {
	got := Targets(settings.Defaults(), testRate, DefaultTuning())
	for i, f := range settings.BandFrequencies {
		if got.EQ[i].Frequency != f {
			t.Fatalf("EQ[%d].Frequency = %v; want %v", i, got.EQ[i].Frequency, f)
		}
	}
}

func TestLoadTuning_OverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	data := "notch:\n  frequency: 50\n  q: 25\ncompressor:\n  threshold: -30\n  knee: 20\n  ratio: 6\n  attack: 0.005\n  release: 0.3\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning() error = %v", err)
	}
	if got.Notch.Frequency != 50 || got.Notch.Q != 25 {
		t.Fatalf("Notch = %+v; want 50Hz Q 25", got.Notch)
	}
	if got.Compressor.Ratio != 6 {
		t.Fatalf("Compressor.Ratio = %v; want 6", got.Compressor.Ratio)
	}
	if got.Bandpass != DefaultTuning().Bandpass {
		t.Fatalf("Bandpass = %+v; want default", got.Bandpass)
	}
}

func TestLoadTuning_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("compressor:\n  ratio: 0.5\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := LoadTuning(path)
	if err == nil || !strings.Contains(err.Error(), "ratio") {
		t.Fatalf("LoadTuning() = %v; want ratio error", err)
	}
}

func TestLoadTuning_MissingFile(t *testing.T) {
	if _, err := LoadTuning(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadTuning() = nil error; want error")
	}
}

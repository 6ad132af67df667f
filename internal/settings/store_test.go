package settings

import "testing"

func TestStore_GetReturnsDefaultsForUnknownTab(t *testing.T) {
	s := NewStore()
	if got := s.Get(99); got != Defaults() {
		t.Fatalf("Get(99) = %+v; want defaults", got)
	}
	if _, ok := s.Lookup(99); ok {
		t.Fatalf("Lookup(99) ok = true; want false")
	}
}

func TestStore_UpdateMergesOverCurrent(t *testing.T) {
	s := NewStore()
	off := false
	s.Update(1, Partial{NormalizeEnabled: &off})
	got := s.Update(1, Partial{EQGain: []float64{0, 2}})

	if got.NormalizeEnabled {
		t.Fatalf("NormalizeEnabled = true; want earlier update preserved")
	}
	if got.EQGain[1] != 2 {
		t.Fatalf("EQGain[1] = %v; want 2", got.EQGain[1])
	}
	if s.Get(1) != got {
		t.Fatalf("Get(1) = %+v; want %+v", s.Get(1), got)
	}
}

func TestStore_DeleteRestoresDefaults(t *testing.T) {
	s := NewStore()
	s.Set(5, Passthrough())
	s.Delete(5)
	if got := s.Get(5); got != Defaults() {
		t.Fatalf("Get(5) after Delete = %+v; want defaults", got)
	}
	if s.Count() != 0 {
		t.Fatalf("Count() = %d; want 0", s.Count())
	}
}

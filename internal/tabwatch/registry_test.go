package tabwatch

import "testing"

func TestRegistry_AssignsStableIDs(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Register("T-A", "https://example.com/a", "A")
	b, _ := r.Register("T-B", "https://example.com/b", "B")
	if a.TabID != 1 || b.TabID != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", a.TabID, b.TabID)
	}
	again, _ := r.Register("T-A", "https://example.com/a", "A (1)")
	if again.TabID != 1 || again.Title != "A (1)" {
		t.Fatalf("Register(known) = %+v; want id 1 with new title", again)
	}

	r.Remove("T-A")
	c, _ := r.Register("T-C", "https://example.com/c", "")
	if c.TabID != 3 {
		t.Fatalf("id after removal = %d; want 3", c.TabID)
	}
	if got, ok := r.Lookup(2); !ok || got.TargetID != "T-B" {
		t.Fatalf("Lookup(2) = %+v, %v; want T-B", got, ok)
	}
	if _, ok := r.Lookup(1); ok {
		t.Fatal("Lookup(1) after Remove = found; want missing")
	}
}

func TestRegistry_NavigationIgnoresFragment(t *testing.T) {
	r := NewRegistry()
	r.Register("T", "https://example.com/watch?v=1", "")

	if _, nav := r.Register("T", "https://example.com/watch?v=1#t=30", ""); nav {
		t.Fatal("fragment change reported as navigation")
	}
	if _, nav := r.Register("T", "https://example.com/watch?v=2", ""); !nav {
		t.Fatal("document change not reported as navigation")
	}
}

func TestRegistry_TabsOrdered(t *testing.T) {
	r := NewRegistry()
	r.Register("X", "about:blank", "")
	r.Register("Y", "about:blank", "")
	r.Register("Z", "about:blank", "")
	r.Remove("Y")

	tabs := r.Tabs()
	if len(tabs) != 2 || tabs[0].TabID != 1 || tabs[1].TabID != 3 {
		t.Fatalf("Tabs() = %+v; want ids 1, 3", tabs)
	}
	if r.Count() != 2 {
		t.Fatalf("Count() = %d; want 2", r.Count())
	}
}

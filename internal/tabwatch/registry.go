package tabwatch

import (
	"net/url"
	"sort"
	"sync"

	"github.com/chromedp/cdproto/target"

	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// TabInfo describes a browser page target.
type TabInfo struct {
	TabID    settings.TabID `json:"tab_id"`
	TargetID target.ID      `json:"target_id"`
	URL      string         `json:"url"`
	Title    string         `json:"title,omitempty"`
}

// Registry maps CDP target IDs to the integer tab ids used everywhere else.
// Ids are assigned in registration order and never reused.
type Registry struct {
	mu       sync.RWMutex
	byTarget map[target.ID]*TabInfo
	byTab    map[settings.TabID]target.ID
	next     settings.TabID
}

func NewRegistry() *Registry {
	return &Registry{
		byTarget: make(map[target.ID]*TabInfo),
		byTab:    make(map[settings.TabID]target.ID),
	}
}

// Register records a page target or refreshes its URL and title. navigated
// reports that a known tab moved to a different document.
func (r *Registry) Register(targetID target.ID, rawURL, title string) (info TabInfo, navigated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byTarget[targetID]; ok {
		navigated = documentOf(existing.URL) != documentOf(rawURL)
		existing.URL = rawURL
		existing.Title = title
		return *existing, navigated
	}

	r.next++
	t := &TabInfo{TabID: r.next, TargetID: targetID, URL: rawURL, Title: title}
	r.byTarget[targetID] = t
	r.byTab[t.TabID] = targetID
	return *t, false
}

// documentOf strips the fragment: in-page anchors are not navigations.
func documentOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func (r *Registry) Get(targetID target.ID) (TabInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byTarget[targetID]
	if !ok {
		return TabInfo{}, false
	}
	return *t, true
}

func (r *Registry) Lookup(tabID settings.TabID) (TabInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targetID, ok := r.byTab[tabID]
	if !ok {
		return TabInfo{}, false
	}
	return *r.byTarget[targetID], true
}

func (r *Registry) Remove(targetID target.ID) (TabInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byTarget[targetID]
	if !ok {
		return TabInfo{}, false
	}
	delete(r.byTarget, targetID)
	delete(r.byTab, t.TabID)
	return *t, true
}

// Tabs returns every known tab ordered by id.
func (r *Registry) Tabs() []TabInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TabInfo, 0, len(r.byTarget))
	for _, t := range r.byTarget {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TabID < out[j].TabID })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTarget)
}

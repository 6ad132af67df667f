package settings

import "sync"

// Store maps tabs to their last-applied configuration. Entries live until the tab
// is closed or the process exits; nothing is persisted.
type Store struct {
	mu   sync.RWMutex
	tabs map[TabID]EnhancementConfig
}

func NewStore() *Store {
	return &Store{tabs: make(map[TabID]EnhancementConfig)}
}

// Get returns the stored configuration, or Defaults when the tab has none.
func (s *Store) Get(tabID TabID) EnhancementConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.tabs[tabID]; ok {
		return cfg
	}
	return Defaults()
}

// Lookup reports whether the tab has a stored configuration.
func (s *Store) Lookup(tabID TabID) (EnhancementConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.tabs[tabID]
	return cfg, ok
}

func (s *Store) Set(tabID TabID, cfg EnhancementConfig) {
	s.mu.Lock()
	s.tabs[tabID] = cfg.Clamped()
	s.mu.Unlock()
}

// Update merges p over the tab's current configuration and stores the result.
func (s *Store) Update(tabID TabID, p Partial) EnhancementConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	base, ok := s.tabs[tabID]
	if !ok {
		base = Defaults()
	}
	cfg := Merge(base, p)
	s.tabs[tabID] = cfg
	return cfg
}

func (s *Store) Delete(tabID TabID) {
	s.mu.Lock()
	delete(s.tabs, tabID)
	s.mu.Unlock()
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tabs)
}

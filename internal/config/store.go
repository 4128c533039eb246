package config

import (
	"strings"
	"sync"
)

// Store holds the live instrument set and notifies a hook when an
// instrument's alert settings change, so the throttle layer can waive its
// window once for that symbol.
type Store struct {
	mu          sync.RWMutex
	instruments map[string]Instrument
	order       []string
	onChange    func(symbol string)
}

// NewStore seeds a store from the loaded instrument list. onChange fires for
// every symbol whose settings are later edited; nil disables notification.
func NewStore(instruments []Instrument, onChange func(symbol string)) *Store {
	s := &Store{
		instruments: make(map[string]Instrument, len(instruments)),
		onChange:    onChange,
	}
	for _, inst := range instruments {
		sym := strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if sym == "" {
			continue
		}
		inst.Symbol = sym
		if _, seen := s.instruments[sym]; !seen {
			s.order = append(s.order, sym)
		}
		s.instruments[sym] = inst
	}
	return s
}

// Instruments returns the configured instruments in their load order.
func (s *Store) Instruments() []Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Instrument, 0, len(s.order))
	for _, sym := range s.order {
		out = append(out, s.instruments[sym])
	}
	return out
}

// Instrument looks up one symbol's configuration.
func (s *Store) Instrument(symbol string) (Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instruments[strings.ToUpper(symbol)]
	return inst, ok
}

// Update replaces an instrument's settings. When any alert-relevant field
// changed, the onChange hook fires so the next candidate bypasses the
// throttle window. Adding a new symbol does not fire the hook; its first
// alert is already unthrottled.
func (s *Store) Update(inst Instrument) {
	sym := strings.ToUpper(strings.TrimSpace(inst.Symbol))
	if sym == "" {
		return
	}
	inst.Symbol = sym

	s.mu.Lock()
	prev, existed := s.instruments[sym]
	if !existed {
		s.order = append(s.order, sym)
	}
	s.instruments[sym] = inst
	changed := existed && alertSettingsChanged(prev, inst)
	hook := s.onChange
	s.mu.Unlock()

	if changed && hook != nil {
		hook(sym)
	}
}

// Reload applies a freshly loaded instrument list, firing the onChange hook
// for every existing symbol whose settings differ. Symbols missing from the
// new list are disabled rather than dropped so in-flight work can finish.
func (s *Store) Reload(instruments []Instrument) {
	seen := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		sym := strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if sym == "" {
			continue
		}
		seen[sym] = true
		s.Update(inst)
	}
	for _, sym := range s.Symbols() {
		if seen[sym] {
			continue
		}
		if inst, ok := s.Instrument(sym); ok && inst.Enabled {
			inst.Enabled = false
			s.Update(inst)
		}
	}
}

func alertSettingsChanged(a, b Instrument) bool {
	return a.Enabled != b.Enabled ||
		a.Quantity != b.Quantity ||
		a.TakeProfitPct != b.TakeProfitPct ||
		a.StopLossPct != b.StopLossPct ||
		a.Strategy != b.Strategy ||
		a.PlaceProtected != b.PlaceProtected
}

// Symbols returns the configured symbols in load order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

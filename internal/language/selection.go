package language

import (
	"slices"
	"strings"
	"sync"
)

// Selection is the set of target language codes chosen for translation.
// Toggle is the only way to add or remove a code.
type Selection struct {
	mu        sync.RWMutex
	codes     map[string]struct{}
	destroyed bool
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{codes: make(map[string]struct{})}
}

// Toggle adds code when absent and removes it when present. It returns whether
// code is selected afterwards. Toggling a destroyed selection panics.
func (s *Selection) Toggle(code string) bool {
	code = normalize(code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		panic("language: toggle on destroyed selection")
	}

	if _, ok := s.codes[code]; ok {
		delete(s.codes, code)
		return false
	}
	s.codes[code] = struct{}{}
	return true
}

func (s *Selection) Contains(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codes[normalize(code)]
	return ok
}

// List returns the selected codes. Order carries no meaning; it is sorted so
// that output is stable.
func (s *Selection) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.codes))
	for code := range s.codes {
		out = append(out, code)
	}
	slices.Sort(out)
	return out
}

func (s *Selection) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes) == 0
}

// Clear deselects everything.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.codes)
}

// Destroy releases the selection. Any later Toggle panics.
func (s *Selection) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.codes = nil
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

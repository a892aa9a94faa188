// Package pkgcheck tracks which external integration packages are
// available in the running process. Integrations announce themselves in
// their init function, the way database/sql drivers register; providers
// then check their declared prerequisites against the set instead of
// attempting a dynamic import.
package pkgcheck

import (
	"strings"
	"sync"
)

// Set is an append-only collection of available package names. The zero
// value is not usable; use NewSet.
type Set struct {
	mu       sync.RWMutex
	packages map[string]struct{}
}

// NewSet creates an empty availability set.
func NewSet() *Set {
	return &Set{packages: make(map[string]struct{})}
}

// Default is the process-wide availability set.
var Default = NewSet()

// Register marks a package name as available. Registering the same name
// twice is harmless.
func (s *Set) Register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[normalize(name)] = struct{}{}
}

// Installed reports whether the package name has been registered.
// Hyphens and underscores are treated as equivalent, matching how
// distribution names diverge from import names.
func (s *Set) Installed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.packages[normalize(name)]
	return ok
}

// Clear empties the set. Intended for test lifecycles only.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages = make(map[string]struct{})
}

// Register marks a package as available in the default set.
func Register(name string) {
	Default.Register(name)
}

// Installed checks the default set.
func Installed(name string) bool {
	return Default.Installed(name)
}

func normalize(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
}

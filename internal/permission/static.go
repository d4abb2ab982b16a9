package permission

import (
	"sync"

	"github.com/mosaicui/mosaic/internal/path"
)

// StaticSource is an in-memory rules source. It is safe for concurrent use
// and is the source of choice for tests and host-embedded rule sets.
type StaticSource struct {
	mu    sync.RWMutex
	rules map[string]RuleSet
}

// NewStaticSource creates an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		rules: make(map[string]RuleSet),
	}
}

// Set stores the rule set for an identity, replacing any previous one.
func (s *StaticSource) Set(id string, rules RuleSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[id] = rules
}

// SetShared stores a bare pattern sequence governing both actions.
func (s *StaticSource) SetShared(id string, patterns ...path.Path) {
	s.Set(id, Shared(patterns...))
}

// Delete removes an identity's rules.
func (s *StaticSource) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
}

// Rules implements Source. Unknown identities yield an empty rule set.
func (s *StaticSource) Rules(id string) (RuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules[id], nil
}

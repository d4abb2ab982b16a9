package path

import "sync"

// Matcher provides efficient path pattern matching using a trie keyed by
// segments. It is safe for concurrent use.
type Matcher struct {
	mu   sync.RWMutex
	root *trieNode
}

// trieNode represents a node in the pattern trie.
type trieNode struct {
	children map[string]*trieNode
	patterns []Path // Patterns that terminate at this node
}

// newTrieNode creates a new trie node.
func newTrieNode() *trieNode {
	return &trieNode{
		children: make(map[string]*trieNode),
	}
}

// NewMatcher creates a new path matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		root: newTrieNode(),
	}
}

// Add adds a pattern to the matcher. The pattern may contain "*" segments.
func (m *Matcher) Add(pattern Path) {
	if pattern == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	segments := pattern.Segments()
	node := m.root

	for _, seg := range segments {
		if node.children[seg] == nil {
			node.children[seg] = newTrieNode()
		}
		node = node.children[seg]
	}

	// Avoid duplicates at the leaf
	for _, p := range node.patterns {
		if p == pattern {
			return
		}
	}
	node.patterns = append(node.patterns, pattern)
}

// Remove removes a pattern from the matcher.
func (m *Matcher) Remove(pattern Path) {
	if pattern == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	segments := pattern.Segments()
	node := m.root

	for _, seg := range segments {
		if node.children[seg] == nil {
			return // Pattern not present
		}
		node = node.children[seg]
	}

	for i, p := range node.patterns {
		if p == pattern {
			node.patterns = append(node.patterns[:i], node.patterns[i+1:]...)
			break
		}
	}
}

// Has returns true if the exact pattern exists in the matcher. Wildcard
// segments are compared literally; this is the catch-all existence check.
func (m *Matcher) Has(pattern Path) bool {
	if pattern == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	segments := pattern.Segments()
	node := m.root

	for _, seg := range segments {
		if node.children[seg] == nil {
			return false
		}
		node = node.children[seg]
	}

	for _, p := range node.patterns {
		if p == pattern {
			return true
		}
	}
	return false
}

// Match returns all patterns that match the given event path. The path
// represents an actual event and must not contain wildcards.
func (m *Matcher) Match(event Path) []Path {
	if event == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Path
	m.matchRecursive(m.root, event.Segments(), 0, &matches)
	return matches
}

// MatchesAny reports whether at least one pattern matches the given event
// path, without collecting the matches.
func (m *Matcher) MatchesAny(event Path) bool {
	if event == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.anyRecursive(m.root, event.Segments(), 0)
}

// matchRecursive walks exact and wildcard children at each depth.
func (m *Matcher) matchRecursive(node *trieNode, segments []string, depth int, matches *[]Path) {
	if node == nil {
		return
	}

	if depth == len(segments) {
		*matches = append(*matches, node.patterns...)
		return
	}

	if child := node.children[segments[depth]]; child != nil {
		m.matchRecursive(child, segments, depth+1, matches)
	}
	if child := node.children[Wildcard]; child != nil {
		m.matchRecursive(child, segments, depth+1, matches)
	}
}

func (m *Matcher) anyRecursive(node *trieNode, segments []string, depth int) bool {
	if node == nil {
		return false
	}

	if depth == len(segments) {
		return len(node.patterns) > 0
	}

	if child := node.children[segments[depth]]; child != nil {
		if m.anyRecursive(child, segments, depth+1) {
			return true
		}
	}
	if child := node.children[Wildcard]; child != nil {
		if m.anyRecursive(child, segments, depth+1) {
			return true
		}
	}
	return false
}

// Patterns returns all patterns in the matcher.
func (m *Matcher) Patterns() []Path {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var patterns []Path
	m.collectPatterns(m.root, &patterns)
	return patterns
}

// collectPatterns recursively collects all patterns from the trie.
func (m *Matcher) collectPatterns(node *trieNode, patterns *[]Path) {
	if node == nil {
		return
	}

	*patterns = append(*patterns, node.patterns...)

	for _, child := range node.children {
		m.collectPatterns(child, patterns)
	}
}

// Count returns the number of patterns in the matcher.
func (m *Matcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	m.countPatterns(m.root, &count)
	return count
}

// countPatterns recursively counts patterns in the trie.
func (m *Matcher) countPatterns(node *trieNode, count *int) {
	if node == nil {
		return
	}

	*count += len(node.patterns)

	for _, child := range node.children {
		m.countPatterns(child, count)
	}
}

// Clear removes all patterns from the matcher.
func (m *Matcher) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.root = newTrieNode()
}

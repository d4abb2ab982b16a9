package path

import (
	"testing"
)

func TestMatcher_AddAndMatch(t *testing.T) {
	m := NewMatcher()
	m.Add(Path("calendar.date.today"))
	m.Add(Path("calendar.date.*"))
	m.Add(Path("calendar.*.today"))
	m.Add(Path("order.created"))

	tests := []struct {
		event         Path
		expectedCount int
	}{
		{Path("calendar.date.today"), 3},
		{Path("calendar.date.tomorrow"), 1},
		{Path("calendar.time.today"), 1},
		{Path("order.created"), 1},
		{Path("order.cancelled"), 0},
		{Path("calendar.date"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.event.String(), func(t *testing.T) {
			matches := m.Match(tt.event)
			if len(matches) != tt.expectedCount {
				t.Errorf("Match(%q) returned %d matches, expected %d: %v",
					tt.event, len(matches), tt.expectedCount, matches)
			}
		})
	}
}

func TestMatcher_AddDuplicate(t *testing.T) {
	m := NewMatcher()
	m.Add(Path("calendar.date.today"))
	m.Add(Path("calendar.date.today"))

	if got := m.Count(); got != 1 {
		t.Errorf("Count() after duplicate Add = %d, want 1", got)
	}
}

func TestMatcher_Remove(t *testing.T) {
	m := NewMatcher()
	m.Add(Path("calendar.date.*"))
	m.Add(Path("order.created"))

	m.Remove(Path("calendar.date.*"))

	if m.Has(Path("calendar.date.*")) {
		t.Error("Has() = true after Remove, want false")
	}
	if matches := m.Match(Path("calendar.date.today")); len(matches) != 0 {
		t.Errorf("Match() after Remove returned %v, want none", matches)
	}
	if !m.Has(Path("order.created")) {
		t.Error("Has(\"order.created\") = false, want true")
	}

	// Removing a pattern that was never added is a no-op
	m.Remove(Path("never.added"))
}

func TestMatcher_Has(t *testing.T) {
	m := NewMatcher()
	m.Add(Path("perm.on.*"))
	m.Add(Path("perm.on.calendar.date.*"))

	tests := []struct {
		pattern  Path
		expected bool
	}{
		{Path("perm.on.*"), true},
		{Path("perm.on.calendar.date.*"), true},
		{Path("perm.emit.*"), false},
		{Path("perm.on"), false},
		{Path(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern.String(), func(t *testing.T) {
			if got := m.Has(tt.pattern); got != tt.expected {
				t.Errorf("Has(%q) = %v, want %v", tt.pattern, got, tt.expected)
			}
		})
	}
}

func TestMatcher_HasIsExact(t *testing.T) {
	m := NewMatcher()
	m.Add(Path("perm.on.calendar.*"))

	// Has checks literal pattern presence, not wildcard matching
	if m.Has(Path("perm.on.calendar.date")) {
		t.Error("Has(\"perm.on.calendar.date\") = true, want false (exact lookup)")
	}
	if !m.Has(Path("perm.on.calendar.*")) {
		t.Error("Has(\"perm.on.calendar.*\") = false, want true")
	}
}

func TestMatcher_MatchesAny(t *testing.T) {
	m := NewMatcher()
	m.Add(Path("perm.on.calendar.date.*"))

	if !m.MatchesAny(Path("perm.on.calendar.date.today")) {
		t.Error("MatchesAny(\"perm.on.calendar.date.today\") = false, want true")
	}
	if m.MatchesAny(Path("perm.on.calendar.time.today")) {
		t.Error("MatchesAny(\"perm.on.calendar.time.today\") = true, want false")
	}
	if m.MatchesAny(Path("")) {
		t.Error("MatchesAny(\"\") = true, want false")
	}
}

func TestMatcher_Patterns(t *testing.T) {
	m := NewMatcher()
	m.Add(Path("a.b"))
	m.Add(Path("a.*"))
	m.Add(Path("c"))

	patterns := m.Patterns()
	if len(patterns) != 3 {
		t.Fatalf("Patterns() returned %d patterns, want 3: %v", len(patterns), patterns)
	}

	seen := make(map[Path]bool)
	for _, p := range patterns {
		seen[p] = true
	}
	for _, want := range []Path{"a.b", "a.*", "c"} {
		if !seen[want] {
			t.Errorf("Patterns() missing %q", want)
		}
	}
}

func TestMatcher_Count(t *testing.T) {
	m := NewMatcher()
	if got := m.Count(); got != 0 {
		t.Errorf("Count() on empty matcher = %d, want 0", got)
	}

	m.Add(Path("a.b"))
	m.Add(Path("a.b.c"))
	m.Add(Path("x.*"))

	if got := m.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
}

func TestMatcher_Clear(t *testing.T) {
	m := NewMatcher()
	m.Add(Path("a.b"))
	m.Add(Path("c.d"))

	m.Clear()

	if got := m.Count(); got != 0 {
		t.Errorf("Count() after Clear = %d, want 0", got)
	}
	if matches := m.Match(Path("a.b")); len(matches) != 0 {
		t.Errorf("Match() after Clear returned %v, want none", matches)
	}
}

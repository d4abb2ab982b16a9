// Package permission provides the gate that grants or denies event access
// per subscriber. Granted rules are compiled into the subscriber's own
// channel as no-op marker subscriptions under the reserved "perm" namespace,
// so permission checks ride the same wildcard matcher as event delivery.
package permission

import (
	"github.com/mosaicui/mosaic/internal/path"
)

// Action is a gated capability: subscribing or publishing.
type Action string

const (
	// ActionOn gates subscribe.
	ActionOn Action = "on"

	// ActionEmit gates publish.
	ActionEmit Action = "emit"
)

// RuleSet holds a subscriber's granted path patterns per action.
type RuleSet struct {
	On   []path.Path
	Emit []path.Path
}

// Shared builds a rule set where one pattern sequence governs both actions
// identically, the normalization applied to bare rule lists.
func Shared(patterns ...path.Path) RuleSet {
	on := make([]path.Path, len(patterns))
	copy(on, patterns)
	emit := make([]path.Path, len(patterns))
	copy(emit, patterns)
	return RuleSet{On: on, Emit: emit}
}

// For returns the rules gating the given action.
func (r RuleSet) For(action Action) []path.Path {
	switch action {
	case ActionOn:
		return r.On
	case ActionEmit:
		return r.Emit
	default:
		return nil
	}
}

// IsEmpty reports whether the rule set grants nothing.
func (r RuleSet) IsEmpty() bool {
	return len(r.On) == 0 && len(r.Emit) == 0
}

// Source provides permission rules for subscriber identities. An unknown
// identity yields an empty rule set, not an error.
type Source interface {
	Rules(id string) (RuleSet, error)
}

// toPaths converts raw rule strings into paths without validating them;
// validation happens per rule at marker registration so one bad rule cannot
// abort its siblings.
func toPaths(raw []string) []path.Path {
	if len(raw) == 0 {
		return nil
	}
	rules := make([]path.Path, len(raw))
	for i, r := range raw {
		rules[i] = path.Path(r)
	}
	return rules
}

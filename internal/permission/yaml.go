package permission

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLSource reads permission rules from a YAML document keyed by subscriber
// identity. Each identity maps either to a bare pattern list (governing both
// actions) or to an {on, emit} split:
//
//	calendar:
//	  - "calendar.date.*"
//	clock:
//	  on:
//	    - "calendar.*"
//	  emit:
//	    - "clock.tick"
type YAMLSource struct {
	rules map[string]RuleSet
}

// NewYAMLSource loads and parses a YAML rules file.
func NewYAMLSource(filename string) (*YAMLSource, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulesUnreadable, err)
	}
	return ParseYAML(data)
}

// ParseYAML parses a YAML rules document.
func ParseYAML(data []byte) (*YAMLSource, error) {
	var doc map[string]ruleSpec
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing permission rules: %w", err)
	}

	rules := make(map[string]RuleSet, len(doc))
	for id, spec := range doc {
		rules[id] = spec.ruleSet()
	}
	return &YAMLSource{rules: rules}, nil
}

// Rules implements Source. Unknown identities yield an empty rule set.
func (s *YAMLSource) Rules(id string) (RuleSet, error) {
	return s.rules[id], nil
}

// Identities returns the identities the document defines rules for.
func (s *YAMLSource) Identities() []string {
	ids := make([]string, 0, len(s.rules))
	for id := range s.rules {
		ids = append(ids, id)
	}
	return ids
}

// ruleSpec accepts both rule shapes during decoding.
type ruleSpec struct {
	on     []string
	emit   []string
	shared []string
}

// UnmarshalYAML decodes either a bare sequence or an {on, emit} mapping.
func (r *ruleSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		return value.Decode(&r.shared)
	}

	var split struct {
		On   []string `yaml:"on"`
		Emit []string `yaml:"emit"`
	}
	if err := value.Decode(&split); err != nil {
		return err
	}
	r.on = split.On
	r.emit = split.Emit
	return nil
}

func (r ruleSpec) ruleSet() RuleSet {
	if r.shared != nil {
		return Shared(toPaths(r.shared)...)
	}
	return RuleSet{On: toPaths(r.on), Emit: toPaths(r.emit)}
}

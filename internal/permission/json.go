package permission

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
)

// JSONSource reads permission rules from a JSON document keyed by subscriber
// identity. The same two shapes as YAMLSource are accepted per identity:
// a bare pattern array or an {"on": [...], "emit": [...]} object.
type JSONSource struct {
	doc []byte
}

// NewJSONSource loads a JSON rules file.
func NewJSONSource(filename string) (*JSONSource, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulesUnreadable, err)
	}
	return ParseJSON(data)
}

// ParseJSON wraps a JSON rules document.
func ParseJSON(data []byte) (*JSONSource, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parsing permission rules: %w", ErrRulesUnreadable)
	}
	return &JSONSource{doc: data}, nil
}

// Rules implements Source. Unknown identities yield an empty rule set.
func (s *JSONSource) Rules(id string) (RuleSet, error) {
	res := gjson.GetBytes(s.doc, escapeKey(id))
	switch {
	case !res.Exists():
		return RuleSet{}, nil
	case res.IsArray():
		return Shared(toPaths(stringValues(res))...), nil
	case res.IsObject():
		return RuleSet{
			On:   toPaths(stringValues(res.Get("on"))),
			Emit: toPaths(stringValues(res.Get("emit"))),
		}, nil
	default:
		return RuleSet{}, fmt.Errorf("%w: rules for %q must be a list or an {on, emit} object", ErrInvalidRule, id)
	}
}

// escapeKey keeps dots in identities from acting as lookup path separators.
func escapeKey(id string) string {
	return strings.ReplaceAll(id, ".", `\.`)
}

func stringValues(res gjson.Result) []string {
	arr := res.Array()
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.String())
	}
	return out
}

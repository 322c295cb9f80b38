package classifier

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var keywordsYAML []byte

type Rule struct {
	Department Department `yaml:"department"`
	Keywords   []string   `yaml:"keywords"`
}

// Rules is an ordered keyword heuristic. Descriptions matching no rule are Other.
type Rules struct {
	Rules []Rule `yaml:"rules"`
}

var defaultRules = mustParseRules(keywordsYAML)

func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse keyword rules: %w", err)
	}
	for i, rule := range r.Rules {
		if !rule.Department.Valid() {
			return nil, fmt.Errorf("rule %d: unknown department %q", i, rule.Department)
		}
		for j, kw := range rule.Keywords {
			r.Rules[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return &r, nil
}

func mustParseRules(data []byte) *Rules {
	r, err := ParseRules(data)
	if err != nil {
		panic(err)
	}
	return r
}

// Match returns the department of the first rule with a keyword contained in description.
func (r *Rules) Match(description string) Department {
	text := strings.ToLower(description)
	for _, rule := range r.Rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(text, kw) {
				return rule.Department
			}
		}
	}
	return Other
}

// Heuristic classifies description with the built-in keyword rules.
func Heuristic(description string) Department {
	return defaultRules.Match(description)
}

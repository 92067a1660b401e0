package confusion

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Rule is a single entry of the rewriter's rule table.
type Rule interface {
	// Match reports whether text triggers the rule and returns the captured
	// subject. text is already trimmed.
	Match(text string) (subject string, ok bool)

	// Render produces the paraphrase for subject.
	Render(subject string, rnd Random) string

	// CatchAll reports whether the rule matches any non-empty text.
	CatchAll() bool
}

// PatternRule is a [Rule] backed by a regular expression whose first capture
// group is the subject, and a set of templates with a single %s slot.
type PatternRule struct {
	Name      string
	re        *regexp.Regexp
	templates []string
	catchAll  bool
}

// NewPatternRule compiles pattern and validates the templates. The pattern is
// matched case-insensitively and anchored at the start and end of the input.
func NewPatternRule(name, pattern string, templates []string) (*PatternRule, error) {
	if len(templates) == 0 {
		return nil, fmt.Errorf("confusion: rule %q: no templates", name)
	}
	for i, tpl := range templates {
		if n := strings.Count(tpl, "%s"); n != 1 {
			return nil, fmt.Errorf("confusion: rule %q: template %d has %d slots, want 1", name, i, n)
		}
	}
	re, err := regexp.Compile(`(?is)^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("confusion: rule %q: %w", name, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("confusion: rule %q: pattern has no capture group", name)
	}
	return &PatternRule{Name: name, re: re, templates: templates}, nil
}

// Match implements [Rule].
func (r *PatternRule) Match(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Render implements [Rule].
func (r *PatternRule) Render(subject string, rnd Random) string {
	return strings.Replace(choose(rnd, r.templates), "%s", subject, 1)
}

// CatchAll implements [Rule].
func (r *PatternRule) CatchAll() bool { return r.catchAll }

// RuleTable is an ordered, immutable list of rules. The last rule must be a
// catch-all so that every non-empty input is handled.
type RuleTable struct {
	rules []Rule
}

// NewRuleTable builds a table from rules in priority order.
func NewRuleTable(rules ...Rule) (*RuleTable, error) {
	if len(rules) == 0 {
		return nil, errors.New("confusion: empty rule table")
	}
	if !rules[len(rules)-1].CatchAll() {
		return nil, errors.New("confusion: last rule must be a catch-all")
	}
	return &RuleTable{rules: append([]Rule(nil), rules...)}, nil
}

// Len returns the number of rules.
func (t *RuleTable) Len() int { return len(t.rules) }

// find returns the first rule matching text.
func (t *RuleTable) find(text string) (Rule, string, bool) {
	for _, r := range t.rules {
		if subject, ok := r.Match(text); ok {
			return r, subject, true
		}
	}
	return nil, "", false
}

// DefaultRules returns the built-in question rules followed by the catch-all hedge.
func DefaultRules() *RuleTable {
	specs := []struct {
		name      string
		pattern   string
		templates []string
	}{
		{"have-you-seen", `have you seen (.+?)\?*`, []string{
			"It is not entirely certain that I have not observed %s, but I could not definitively state that I have not witnessed them",
			"One could not say with absolute certainty that I have not encountered %s, though I cannot confirm that I have not seen them",
			"It would be imprecise to claim I have not laid eyes upon %s, yet I cannot verify that my visual apparatus has not registered their presence",
		}},
		{"do-you-know", `do you know (.+?)\?*`, []string{
			"It is not impossible that I do not lack knowledge of %s, but I cannot say that I do not know what I do not know about them",
			"One might not incorrectly assume that I am not unaware of %s, though I cannot confirm my non-ignorance",
			"It would not be untrue to suggest that I do not not know %s, but neither can I verify my un-unknowing",
		}},
		{"can-you", `can you (.+?)\?*`, []string{
			"It is not beyond the realm of possibility that I cannot not %s, though I cannot say with certainty that I am unable to not do so",
			"One could not rule out that I might not be incapable of %s, but I cannot confirm that I cannot not perform such an action",
			"It would not be incorrect to assume that I do not lack the ability to not %s, yet I cannot guarantee my non-inability",
		}},
		{"are-you", `are you (.+?)\?*`, []string{
			"It is not certain that I am not %s, but I could not say that I am not what I might not be",
			"One might not be wrong to think that I do not not possess the quality of being %s, though I cannot confirm my non-non-existence in that state",
			"It would not be untrue that I might not lack the characteristic of %s, yet I cannot verify what I am not not",
		}},
		{"where-is", `where (?:is|are) (.+?)\?*`, []string{
			"It is not impossible that %s might not be absent from a location that is not unknown to me, though I cannot say where they are not not located",
			"One could not definitively state that %s does not not exist in a place that I have not not seen, but I cannot confirm their non-absence",
			"It would not be incorrect to suggest that %s is not nowhere, yet I cannot pinpoint where they are not not positioned",
		}},
	}

	rules := make([]Rule, 0, len(specs)+1)
	for _, s := range specs {
		rules = append(rules, mustRule(s.name, s.pattern, s.templates))
	}
	hedge := mustRule("catch-all", `(.+)`, []string{
		"Regarding the matter of %s, it is not untrue that one could not say it is not so, but neither can one confirm that it is not not the case",
	})
	hedge.catchAll = true
	rules = append(rules, hedge)

	t, err := NewRuleTable(rules...)
	if err != nil {
		panic(err)
	}
	return t
}

func mustRule(name, pattern string, templates []string) *PatternRule {
	r, err := NewPatternRule(name, pattern, templates)
	if err != nil {
		panic(err)
	}
	return r
}

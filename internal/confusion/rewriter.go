package confusion

import "strings"

// RewriterConfig tunes the [Rewriter].
type RewriterConfig struct {
	// CatchAllCounts makes a catch-all match count as a rewrite. When false the
	// rewriter returns the input unchanged with matched=false for text that
	// only the catch-all rule accepts.
	CatchAllCounts bool
}

// Rewriter turns question-like utterances into double-negative paraphrases.
type Rewriter struct {
	table *RuleTable
	rnd   Random
	cfg   RewriterConfig
}

// NewRewriter returns a Rewriter over table. table is shared, not copied.
func NewRewriter(table *RuleTable, rnd Random, cfg RewriterConfig) *Rewriter {
	return &Rewriter{table: table, rnd: rnd, cfg: cfg}
}

// Rewrite applies the first matching rule to text. matched is false, and text
// is returned unchanged, when nothing meaningful was produced: for blank input
// and, unless CatchAllCounts is set, for input only the catch-all accepts.
func (r *Rewriter) Rewrite(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text, false
	}
	rule, subject, ok := r.table.find(trimmed)
	if !ok {
		return text, false
	}
	if rule.CatchAll() && !r.cfg.CatchAllCounts {
		return text, false
	}
	out := rule.Render(subject, r.rnd)
	if out == text {
		return text, false
	}
	return out, true
}

package app

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/pinocchio/internal/config"
	"github.com/MrWong99/pinocchio/internal/confusion"
	"github.com/MrWong99/pinocchio/internal/lexicon"
)

// transformer bundles the read-only confusion state built from one config.
// It is swapped atomically on reload.
type transformer struct {
	dispatcher *confusion.Dispatcher
	exits      map[string]struct{}
}

func newTransformer(cc config.ConfusionConfig, seg confusion.Segmenter, lex lexicon.Lexicon, rnd confusion.Random) *transformer {
	probs := probabilities(cc)
	english := cc.EnglishConnectors
	if len(english) == 0 {
		english = confusion.DefaultEnglishConnectors
	}
	malayalam := cc.MalayalamConnectors
	if len(malayalam) == 0 {
		malayalam = confusion.DefaultMalayalamConnectors
	}
	catchAll := cc.CatchAllCountsAsRewrite == nil || *cc.CatchAllCountsAsRewrite

	rw := confusion.NewRewriter(confusion.DefaultRules(), rnd, confusion.RewriterConfig{CatchAllCounts: catchAll})
	d := confusion.NewDispatcher(rw,
		confusion.NewEnglish(seg, lexicon.NewThesaurus(lex), english, probs, rnd),
		confusion.NewMalayalam(malayalam, probs, rnd),
		probs, rnd,
	)

	exits := make(map[string]struct{}, len(cc.ExitCommands))
	for _, c := range cc.ExitCommands {
		exits[commandKey(c)] = struct{}{}
	}
	return &transformer{dispatcher: d, exits: exits}
}

// isExit reports whether text is one of the exit commands on its own.
func (t *transformer) isExit(text string) bool {
	_, ok := t.exits[commandKey(text)]
	return ok
}

// probabilities overlays the configured values on the defaults.
func probabilities(cc config.ConfusionConfig) confusion.Probabilities {
	p := confusion.DefaultProbabilities()
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Rewrite, cc.RewriteProbability)
	set(&p.Synonym, cc.SynonymProbability)
	set(&p.Connector, cc.ConnectorProbability)
	set(&p.Shuffle, cc.ShuffleProbability)
	set(&p.MalayalamConnector, cc.MalayalamConnectorProbability)
	set(&p.MalayalamSwap, cc.MalayalamSwapProbability)
	return p
}

// normalizeText brings recognized text into NFC so that composed and
// decomposed forms of the same word behave identically.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// commandKey trims, case-folds and drops the sentence punctuation that
// punctuating recognizers append ("Goodbye." is "goodbye").
func commandKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return strings.ToLower(s)
}

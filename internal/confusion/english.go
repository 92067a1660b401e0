package confusion

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segmenter splits text into sentences.
type Segmenter interface {
	Split(text string) []string
}

// Thesaurus returns synonyms for a lowercase word.
type Thesaurus interface {
	Synonyms(word string) []string
}

// conjunctions finds coordinating and subordinating conjunctions. Matches
// inside a longer word are rejected by splitKeep, since \b only knows ASCII.
var conjunctions = regexp.MustCompile(`(?i)and|but|or|because|since|while|although`)

// minSynonymKey is the key length a word must exceed to be considered for
// synonym replacement.
const minSynonymKey = 3

// English is the randomized English-style confusion transform.
type English struct {
	segmenter  Segmenter
	thesaurus  Thesaurus
	connectors []string
	probs      Probabilities
	rnd        Random
}

// NewEnglish returns an English transform. connectors must not be empty.
func NewEnglish(seg Segmenter, th Thesaurus, connectors []string, probs Probabilities, rnd Random) *English {
	return &English{
		segmenter:  seg,
		thesaurus:  th,
		connectors: connectors,
		probs:      probs,
		rnd:        rnd,
	}
}

// Confuse transforms text sentence by sentence and joins the results with
// single spaces.
func (e *English) Confuse(text string) string {
	sentences := e.segmenter.Split(text)
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, e.confuseSentence(s))
	}
	return strings.Join(out, " ")
}

func (e *English) confuseSentence(sentence string) string {
	words := strings.Fields(sentence)
	for i, w := range words {
		words[i] = e.replaceWord(w)
	}

	s := strings.Join(words, " ")
	if len(e.connectors) > 0 && chance(e.rnd, e.probs.Connector) {
		s = choose(e.rnd, e.connectors) + ", " + s
	}

	if chance(e.rnd, e.probs.Shuffle) {
		if parts := splitKeep(s); len(parts) > 1 {
			shuffle(e.rnd, parts)
			s = strings.Join(parts, "")
		}
	}
	return s
}

// replaceWord swaps word for a longer synonym, or returns it unchanged.
func (e *English) replaceWord(word string) string {
	key, punct := splitWord(word)
	if utf8.RuneCountInString(key) <= minSynonymKey {
		return word
	}
	if !chance(e.rnd, e.probs.Synonym) {
		return word
	}

	keyLen := utf8.RuneCountInString(key)
	var longer []string
	for _, syn := range e.thesaurus.Synonyms(key) {
		if utf8.RuneCountInString(syn) > keyLen {
			longer = append(longer, syn)
		}
	}
	if len(longer) == 0 {
		return word
	}

	repl := choose(e.rnd, longer)
	if first, _ := utf8.DecodeRuneInString(word); unicode.IsUpper(first) {
		repl = capitalize(repl)
	}
	return repl + punct
}

// splitWord returns the lowercase word runes of w and, separately, every
// other rune of w in order.
func splitWord(w string) (key, punct string) {
	var k, p strings.Builder
	for _, r := range strings.ToLower(w) {
		if isWordRune(r) {
			k.WriteRune(r)
		}
	}
	for _, r := range w {
		if !isWordRune(r) {
			p.WriteRune(r)
		}
	}
	return k.String(), p.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// capitalize upper-cases the first rune of s and lower-cases the rest.
func capitalize(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

// splitKeep splits s around conjunctions, keeping the separators as
// fragments of their own (including empty edge fragments).
func splitKeep(s string) []string {
	locs := conjunctions.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return []string{s}
	}
	parts := make([]string, 0, 2*len(locs)+1)
	prev := 0
	for _, loc := range locs {
		if !wholeWord(s, loc[0], loc[1]) {
			continue
		}
		parts = append(parts, s[prev:loc[0]], s[loc[0]:loc[1]])
		prev = loc[1]
	}
	return append(parts, s[prev:])
}

// wholeWord reports whether s[i:j] is bounded by non-word runes or the ends
// of s.
func wholeWord(s string, i, j int) bool {
	if r, _ := utf8.DecodeLastRuneInString(s[:i]); i > 0 && isWordRune(r) {
		return false
	}
	if r, _ := utf8.DecodeRuneInString(s[j:]); j < len(s) && isWordRune(r) {
		return false
	}
	return true
}

package confusion

import "strings"

// Malayalam is the Malayalam confusion transform: an optional connector
// followed by an optional pairwise word swap.
//
// The connector is never part of the swap; only the words of the input are
// reordered.
type Malayalam struct {
	connectors []string
	probs      Probabilities
	rnd        Random
}

// NewMalayalam returns a Malayalam transform.
func NewMalayalam(connectors []string, probs Probabilities, rnd Random) *Malayalam {
	return &Malayalam{connectors: connectors, probs: probs, rnd: rnd}
}

// Confuse transforms text.
func (m *Malayalam) Confuse(text string) string {
	var connector string
	if len(m.connectors) > 0 && chance(m.rnd, m.probs.MalayalamConnector) {
		connector = choose(m.rnd, m.connectors)
	}

	words := strings.Fields(text)
	if chance(m.rnd, m.probs.MalayalamSwap) && len(words) > 2 {
		text = strings.Join(swapPairs(words), " ")
	}

	if connector != "" {
		return connector + ", " + text
	}
	return text
}

// swapPairs swaps words (0,1), (2,3), … in place; an odd trailing word stays.
func swapPairs(words []string) []string {
	for i := 0; i+1 < len(words); i += 2 {
		words[i], words[i+1] = words[i+1], words[i]
	}
	return words
}

package confusion

// DefaultEnglishConnectors are the discourse markers prepended by the English transform.
var DefaultEnglishConnectors = []string{
	"henceforth", "insofar as", "nevertheless", "notwithstanding",
	"furthermore", "consequently", "in the aforementioned manner",
	"pursuant to the fact that", "with all due respect to the matter",
}

// DefaultMalayalamConnectors are the discourse markers prepended by the Malayalam transform.
var DefaultMalayalamConnectors = []string{
	"അതായത്", "എന്നാൽ", "എങ്കിലും", "അതിനാൽ", "പക്ഷേ",
	"എന്തെങ്കിലും", "എവിടെയെങ്കിലും", "എപ്പോഴെങ്കിലും",
}

// Probabilities holds the trial probabilities of every transform.
type Probabilities struct {
	Rewrite            float64
	Synonym            float64
	Connector          float64
	Shuffle            float64
	MalayalamConnector float64
	MalayalamSwap      float64
}

// DefaultProbabilities returns the stock probabilities.
func DefaultProbabilities() Probabilities {
	return Probabilities{
		Rewrite:            0.5,
		Synonym:            0.3,
		Connector:          0.4,
		Shuffle:            0.3,
		MalayalamConnector: 0.5,
		MalayalamSwap:      0.3,
	}
}

package confusion

// Route identifies which transform produced a response.
type Route string

const (
	RouteRewrite   Route = "rewrite"
	RouteEnglish   Route = "english"
	RouteMalayalam Route = "malayalam"
)

// LangMalayalam is the language tag routed to the Malayalam transform.
const LangMalayalam = "ml"

// Outcome is the result of [Dispatcher.Transform].
type Outcome struct {
	Text  string
	Route Route
}

// Transformer is a single-language confusion transform.
type Transformer interface {
	Confuse(text string) string
}

// Dispatcher picks the transform for a detected language.
type Dispatcher struct {
	rewriter  *Rewriter
	english   Transformer
	malayalam Transformer
	probs     Probabilities
	rnd       Random
}

// NewDispatcher wires the rewriter and per-language transforms together.
func NewDispatcher(rw *Rewriter, english, malayalam Transformer, probs Probabilities, rnd Random) *Dispatcher {
	return &Dispatcher{
		rewriter:  rw,
		english:   english,
		malayalam: malayalam,
		probs:     probs,
		rnd:       rnd,
	}
}

// Apply returns the confused form of text for language lang.
func (d *Dispatcher) Apply(text, lang string) string {
	return d.Transform(text, lang).Text
}

// Transform is like Apply but also reports the route taken.
func (d *Dispatcher) Transform(text, lang string) Outcome {
	if chance(d.rnd, d.probs.Rewrite) {
		if out, ok := d.rewriter.Rewrite(text); ok {
			return Outcome{Text: out, Route: RouteRewrite}
		}
	}
	if lang == LangMalayalam {
		return Outcome{Text: d.malayalam.Confuse(text), Route: RouteMalayalam}
	}
	return Outcome{Text: d.english.Confuse(text), Route: RouteEnglish}
}

// Package extraction picks the payable amount and the vendor out of OCR'd invoice
// text. It is a pure function of its input: no I/O, no locks, no shared state, so a
// single Extractor can be used from any number of goroutines.
package extraction

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is the only currency the engine reports.
const Currency = "EUR"

// Result is the outcome of one Extract call.
type Result struct {
	Vendor      *string
	Amount      decimal.NullDecimal
	Currency    string
	Confidence  float64
	NeedsReview bool
	Debug       DebugTrace
}

// Extractor is a compiled, immutable scoring policy.
type Extractor struct {
	policy   Policy
	matchers []keywordMatcher
}

// New validates and compiles p.
func New(p Policy) (*Extractor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{policy: p, matchers: compileKeywords(p.Keywords)}, nil
}

// NewDefault compiles DefaultPolicy.
func NewDefault() *Extractor {
	e, err := New(DefaultPolicy())
	if err != nil {
		panic(fmt.Sprintf("default extraction policy: %v", err))
	}
	return e
}

// Policy returns the policy the extractor was compiled from.
func (e *Extractor) Policy() Policy { return e.policy }

// Extract derives vendor, amount, confidence and review flag from text. An empty
// correspondent means no trusted vendor metadata. It never fails: unusable input
// degrades to a null amount and needsReview.
func (e *Extractor) Extract(text, correspondent string) Result {
	lines := NormalizeLines(text)
	ranked := rank(e.collectCandidates(text, lines))
	vendor := e.pickVendor(lines, correspondent)

	res := Result{Vendor: vendor.Value, Currency: Currency}
	var winner *AmountCandidate
	if len(ranked) > 0 {
		winner = &ranked[0]
		if !winner.IsNegative {
			res.Amount = decimal.NewNullDecimal(winner.Amount)
		}
	}
	res.Confidence, res.NeedsReview = decide(winner, vendor, res.Amount.Valid)
	res.Debug = buildTrace(lines, ranked, vendor)
	return res
}

// Candidates returns every ranked candidate for a text, best first. The trace keeps
// only the top five; `poolcosts extract --candidates` prints all of them.
func (e *Extractor) Candidates(text string) []AmountCandidate {
	return rank(e.collectCandidates(text, NormalizeLines(text)))
}

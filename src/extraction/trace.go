package extraction

import (
	"encoding/json"
	"strings"
)

const (
	maxTopCandidates     = 5
	maxLineSnippetLength = 120
	maxContextSnippet    = 500
)

// DebugTrace is the operator-facing record of one extraction decision. Its JSON field
// names are consumed by downstream tooling and must not change.
type DebugTrace struct {
	ChosenKeyword     *string          `json:"chosenKeyword"`
	PatternUsed       string           `json:"patternUsed"`
	ContextSnippet    *string          `json:"contextSnippet"`
	VendorSource      VendorSource     `json:"vendorSource"`
	CandidatesChecked int              `json:"candidatesChecked"`
	LinesChecked      int              `json:"linesChecked"`
	TopCandidates     []TraceCandidate `json:"topCandidates"`
	Chosen            *ChosenCandidate `json:"chosen"`
}

type TraceCandidate struct {
	Value           float64         `json:"value"`
	Score           int             `json:"score"`
	LineSnippet     string          `json:"lineSnippet"`
	MatchedKeywords MatchedKeywords `json:"matchedKeywords"`
}

type MatchedKeywords struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
	Neutral  []string `json:"neutral"`
}

type ChosenCandidate struct {
	RawText    string `json:"rawText"`
	LineIndex  int    `json:"lineIndex"`
	Line       string `json:"line"`
	Score      int    `json:"score"`
	IsNegative bool   `json:"isNegative"`
}

func buildTrace(lines []Line, ranked []AmountCandidate, vendor VendorCandidate) DebugTrace {
	t := DebugTrace{
		PatternUsed:       AmountPattern,
		VendorSource:      vendor.Source,
		CandidatesChecked: len(ranked),
		LinesChecked:      len(lines),
		TopCandidates:     make([]TraceCandidate, 0, maxTopCandidates),
	}
	for i := 0; i < len(ranked) && i < maxTopCandidates; i++ {
		c := &ranked[i]
		t.TopCandidates = append(t.TopCandidates, TraceCandidate{
			Value:       c.Amount.InexactFloat64(),
			Score:       c.Score,
			LineSnippet: truncateRunes(c.LineText, maxLineSnippetLength),
			MatchedKeywords: MatchedKeywords{
				Positive: c.matched(CategoryPositive),
				Negative: c.matched(CategoryNegative),
				Neutral:  c.matched(CategoryNeutral),
			},
		})
	}
	if len(ranked) == 0 {
		return t
	}

	w := &ranked[0]
	t.ChosenKeyword = chosenKeyword(w)
	snippet := truncateRunes(surroundingLines(lines, w.LineIndex), maxContextSnippet)
	t.ContextSnippet = &snippet
	t.Chosen = &ChosenCandidate{
		RawText:    w.RawText,
		LineIndex:  w.LineIndex,
		Line:       truncateRunes(w.LineText, maxLineSnippetLength),
		Score:      w.Score,
		IsNegative: w.IsNegative,
	}
	return t
}

// chosenKeyword reports the positive keyword nearest to the winning amount.
func chosenKeyword(c *AmountCandidate) *string {
	if c.ClosestPositive == "" {
		return nil
	}
	k := c.ClosestPositive
	return &k
}

// surroundingLines joins the winning line with its neighbours.
func surroundingLines(lines []Line, idx int) string {
	from, to := idx-1, idx+2
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	parts := make([]string, 0, to-from)
	for _, l := range lines[from:to] {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, " | ")
}

// JSON serialises the trace. Keyword sets are sorted so the output is byte-stable.
func (t DebugTrace) JSON() string {
	b, err := json.Marshal(t)
	if err != nil {
		return "{}"
	}
	return string(b)
}

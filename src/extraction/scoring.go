package extraction

import "sort"

func (w Weights) score(c *AmountCandidate) int {
	s := 0
	switch {
	case len(c.PositiveSameLine) > 0:
		s += w.PositiveSameLine
	case len(c.PositiveContext) > 0:
		s += w.PositiveContext
	}
	switch {
	case len(c.NegativeSameLine) > 0:
		s += w.NegativeSameLine
	case len(c.NegativeContext) > 0:
		s += w.NegativeContext
	}
	if len(c.NeutralSameLine) > 0 {
		s += w.NeutralSameLine
	}
	if c.HasCurrencyNearby {
		s += w.CurrencyNearby
	}
	if c.IsNegative {
		s += w.Negated
	}
	return s
}

// ranksBefore orders by score, then same-line positive keyword, then tie amount, then
// later line first.
func ranksBefore(a, b *AmountCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if pa, pb := a.hasPositiveSameLine(), b.hasPositiveSameLine(); pa != pb {
		return pa
	}
	if ta, tb := a.tieAmount(), b.tieAmount(); !ta.Equal(tb) {
		return ta.GreaterThan(tb)
	}
	return a.LineIndex > b.LineIndex
}

// rank returns the candidates best first. Full ties keep document order.
func rank(candidates []AmountCandidate) []AmountCandidate {
	ranked := make([]AmountCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool { return ranksBefore(&ranked[i], &ranked[j]) })
	return ranked
}

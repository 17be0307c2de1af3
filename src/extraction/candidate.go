package extraction

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// AmountCandidate is one parsed amount together with the signals found around it.
// It is created and scored once per Extract call and never shared.
type AmountCandidate struct {
	Amount            decimal.Decimal
	RawText           string
	LineIndex         int
	LineText          string
	StartOffset       int
	EndOffset         int
	ContextWindow     string
	HasCurrencyNearby bool
	IsNegative        bool

	PositiveSameLine []string
	PositiveContext  []string
	NegativeSameLine []string
	NegativeContext  []string
	NeutralSameLine  []string
	NeutralContext   []string

	// ClosestPositive is the positive keyword nearest to the amount. Same-line
	// matches win over context matches; empty when no positive keyword matched.
	ClosestPositive string

	Score int

	lineSpan   [2]int // amount position within LineText
	windowSpan [2]int // amount position within ContextWindow
}

func (c *AmountCandidate) hasPositiveSameLine() bool { return len(c.PositiveSameLine) > 0 }

// tieAmount is the amount used for tie-breaking. A same-line deduction keyword
// suppresses it to zero without excluding the candidate.
func (c *AmountCandidate) tieAmount() decimal.Decimal {
	if len(c.NegativeSameLine) > 0 {
		return decimal.Zero
	}
	return c.Amount
}

func (c *AmountCandidate) matched(cat Category) []string {
	switch cat {
	case CategoryPositive:
		return union(c.PositiveSameLine, c.PositiveContext)
	case CategoryNegative:
		return union(c.NegativeSameLine, c.NegativeContext)
	default:
		return union(c.NeutralSameLine, c.NeutralContext)
	}
}

// collectCandidates runs the amount pattern over every line and attaches signals to the
// survivors.
func (e *Extractor) collectCandidates(text string, lines []Line) []AmountCandidate {
	var out []AmountCandidate
	for idx, line := range lines {
		for _, m := range amountRe.FindAllStringSubmatchIndex(line.Text, -1) {
			start, end := m[2], m[3]
			if followedByDigit(line.Text, end) {
				continue
			}
			raw := line.Text[start:end]
			amount, ok := ParseAmount(raw)
			if !ok {
				continue
			}
			currency := currencyNearby(line.Text, start, end, e.policy.CurrencyRadius)
			if !hasSeparator(raw) && !currency {
				continue
			}
			if !inPlausibleRange(amount) {
				continue
			}

			c := AmountCandidate{
				Amount:            amount,
				RawText:           raw,
				LineIndex:         idx,
				LineText:          line.Text,
				StartOffset:       line.StartOffset + start,
				EndOffset:         line.StartOffset + end,
				HasCurrencyNearby: currency,
				IsNegative:        isNegated(line.Text, start, end),
				lineSpan:          [2]int{start, end},
			}
			c.ContextWindow, c.windowSpan = contextWindow(text, c.StartOffset, c.EndOffset, e.policy.ContextRadius)
			e.collectKeywords(&c)
			c.Score = e.policy.Weights.score(&c)
			out = append(out, c)
		}
	}
	return out
}

func (e *Extractor) collectKeywords(c *AmountCandidate) {
	bestSame, bestCtx := -1, -1
	var closestSame, closestCtx string
	for _, m := range e.matchers {
		same := m.re.MatchString(c.LineText)
		ctx := m.re.MatchString(c.ContextWindow)
		switch m.category {
		case CategoryPositive:
			c.PositiveSameLine = appendIf(c.PositiveSameLine, m.keyword, same)
			c.PositiveContext = appendIf(c.PositiveContext, m.keyword, ctx)
			if same {
				if d := nearestMatch(m.re, c.LineText, c.lineSpan); bestSame < 0 || d < bestSame {
					bestSame, closestSame = d, m.keyword
				}
			}
			if ctx {
				if d := nearestMatch(m.re, c.ContextWindow, c.windowSpan); bestCtx < 0 || d < bestCtx {
					bestCtx, closestCtx = d, m.keyword
				}
			}
		case CategoryNegative:
			c.NegativeSameLine = appendIf(c.NegativeSameLine, m.keyword, same)
			c.NegativeContext = appendIf(c.NegativeContext, m.keyword, ctx)
		case CategoryNeutral:
			c.NeutralSameLine = appendIf(c.NeutralSameLine, m.keyword, same)
			c.NeutralContext = appendIf(c.NeutralContext, m.keyword, ctx)
		}
	}
	c.ClosestPositive = closestSame
	if c.ClosestPositive == "" {
		c.ClosestPositive = closestCtx
	}
}

// nearestMatch returns the byte gap between the closest match of re in s and span.
// Overlapping matches count as zero.
func nearestMatch(re *regexp.Regexp, s string, span [2]int) int {
	best := -1
	for _, m := range re.FindAllStringIndex(s, -1) {
		d := 0
		switch {
		case m[1] <= span[0]:
			d = span[0] - m[1]
		case m[0] >= span[1]:
			d = m[0] - span[1]
		}
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

func appendIf(s []string, v string, ok bool) []string {
	if ok {
		return append(s, v)
	}
	return s
}

// currencyNearby looks for € or EUR within radius characters of line[start:end].
func currencyNearby(line string, start, end, radius int) bool {
	window := lastRunes(line[:start], radius) + line[start:end] + firstRunes(line[end:], radius)
	return currencyNearRe.MatchString(window)
}

// isNegated reports a minus sign or opening parenthesis directly before the number
// (whitespace ignored), or a minus sign glued to its end ("120,00-").
func isNegated(line string, start, end int) bool {
	before := strings.TrimRightFunc(lastRunes(line[:start], 4), unicode.IsSpace)
	if r, _ := utf8.DecodeLastRuneInString(before); r == '-' || r == '−' || r == '(' {
		return true
	}
	after := firstRunes(line[end:], 2)
	return strings.HasPrefix(after, "-") || strings.HasPrefix(after, "−")
}

// contextWindow slices radius characters either side of text[start:end] and reports
// where text[start:end] sits inside the window. Offsets are clamped and moved onto
// rune boundaries since fallback line offsets are approximate.
func contextWindow(text string, start, end, radius int) (string, [2]int) {
	start = clamp(start, 0, len(text))
	end = clamp(end, start, len(text))
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	before := lastRunes(text[:start], radius)
	span := [2]int{len(before), len(before) + end - start}
	return before + text[start:end] + firstRunes(text[end:], radius), span
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lastRunes(s string, n int) string {
	i := len(s)
	for k := 0; k < n && i > 0; k++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}

func firstRunes(s string, n int) string {
	i := 0
	for k := 0; k < n && i < len(s); k++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return firstRunes(s, n)
}

// union merges keyword lists into a sorted, de-duplicated, non-nil slice.
func union(lists ...[]string) []string {
	set := map[string]struct{}{}
	for _, l := range lists {
		for _, v := range l {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

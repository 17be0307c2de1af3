package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountPattern matches digit groups with optional thousands separators, an optional
// two-digit decimal part and an optional trailing currency token. Group 1 is the number.
const AmountPattern = `(?i)(\d{1,3}(?:[. ]\d{3})+(?:[.,]\d{2})?|\d+(?:[.,]\d{2})?)(?:\s?(?:EUR|€))?`

var (
	amountRe        = regexp.MustCompile(AmountPattern)
	currencyTokenRe = regexp.MustCompile(`(?i)€|eur`)
	currencyNearRe  = regexp.MustCompile(`(?i)€|(?:^|[^\p{L}])eur(?:$|[^\p{L}])`)
	plainNumberRe   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

	// MaxAmount is the plausibility ceiling for a single invoice total.
	MaxAmount = decimal.NewFromInt(1_000_000)
)

// ParseAmount converts a European or plain amount string into a decimal rounded to
// cents. Currency tokens and whitespace thousands separators are ignored. It reports
// false when nothing numeric remains.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	v := currencyTokenRe.ReplaceAllString(raw, "")
	v = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, v)
	if v == "" {
		return decimal.Zero, false
	}

	comma := strings.LastIndex(v, ",")
	dot := strings.LastIndex(v, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			v = strings.ReplaceAll(v, ".", "")
			v = strings.Replace(v, ",", ".", 1)
		} else {
			v = strings.ReplaceAll(v, ",", "")
		}
	case comma >= 0:
		v = strings.Replace(v, ",", ".", 1)
	case dot >= 0:
		v = normalizeDotsOnly(v)
	}

	if !plainNumberRe.MatchString(v) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

// normalizeDotsOnly treats "1.000" and "1.234.567" as grouped thousands and anything
// else ("1234.56") as a decimal point.
func normalizeDotsOnly(v string) string {
	parts := strings.Split(v, ".")
	grouped := len(parts[0]) >= 1 && len(parts[0]) <= 3
	for _, p := range parts[1:] {
		if len(p) != 3 {
			grouped = false
			break
		}
	}
	if grouped {
		return strings.Join(parts, "")
	}
	last := len(parts) - 1
	return strings.Join(parts[:last], "") + "." + parts[last]
}

func inPlausibleRange(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(MaxAmount)
}

func hasSeparator(raw string) bool {
	return strings.ContainsAny(raw, ".,") || strings.IndexFunc(raw, unicode.IsSpace) >= 0
}

func followedByDigit(s string, end int) bool {
	return end < len(s) && s[end] >= '0' && s[end] <= '9'
}

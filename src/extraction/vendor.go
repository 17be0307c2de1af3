package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// VendorSource is where a vendor name came from.
type VendorSource string

const (
	VendorSourceCorrespondent VendorSource = "correspondent"
	VendorSourceHeuristic     VendorSource = "heuristic"
	VendorSourceNone          VendorSource = "none"
)

// MaxVendorLength bounds vendor names taken from correspondent metadata.
const MaxVendorLength = 255

const (
	minVendorLineLength = 3
	maxVendorLineLength = 90
)

var (
	emailRe       = regexp.MustCompile(`\b[\w.%-]+@[\w.-]+\.[A-Za-z]{2,}\b`)
	artifactRe    = regexp.MustCompile(`(?i)\b(?:rechnung|invoice|datum|date|iban|bic|ust\.?-?id|ust-idnr|tel\.?|telefon|fax|email|e-mail|www\.|http|kundennr|kundennummer|steuer|seite)\b`)
	postalCodeRe  = regexp.MustCompile(`\b\d{5}\b`)
	vatPrefixRe   = regexp.MustCompile(`^(?:[A-Z]{2}\d|DE\d{2})`)
	onlyNumericRe = regexp.MustCompile(`^[\d\s\p{P}\p{S}]+$`)
)

// VendorCandidate is the vendor decision. Value is nil when Source is VendorSourceNone.
type VendorCandidate struct {
	Value  *string
	Source VendorSource
}

func (e *Extractor) pickVendor(lines []Line, correspondent string) VendorCandidate {
	if c := strings.TrimSpace(correspondent); c != "" {
		c = truncateRunes(c, MaxVendorLength)
		return VendorCandidate{Value: &c, Source: VendorSourceCorrespondent}
	}

	limit := e.policy.VendorScanLines
	if limit > len(lines) {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		if e.plausibleVendorLine(line.Text) {
			v := line.Text
			return VendorCandidate{Value: &v, Source: VendorSourceHeuristic}
		}
	}
	return VendorCandidate{Source: VendorSourceNone}
}

func (e *Extractor) plausibleVendorLine(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < minVendorLineLength || n > maxVendorLineLength {
		return false
	}
	for _, m := range e.matchers {
		if m.category == CategoryPositive && m.re.MatchString(s) {
			return false
		}
	}
	switch {
	case amountRe.MatchString(s),
		emailRe.MatchString(s),
		artifactRe.MatchString(s),
		postalCodeRe.MatchString(s),
		vatPrefixRe.MatchString(s),
		onlyNumericRe.MatchString(s):
		return false
	}
	return true
}

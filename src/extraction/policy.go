package extraction

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category classifies a keyword by what it says about a nearby amount.
type Category string

const (
	CategoryPositive Category = "positive" // payable total
	CategoryNegative Category = "negative" // deduction
	CategoryNeutral  Category = "neutral"  // net or tax subtotal
)

// ErrInvalidPolicy is returned when a scoring policy cannot be compiled.
var ErrInvalidPolicy = errors.New("invalid extraction policy")

// Weights are the additive scoring rules. Each rule applies at most once per candidate.
type Weights struct {
	PositiveSameLine int `yaml:"positive_same_line"`
	PositiveContext  int `yaml:"positive_context"`
	NegativeSameLine int `yaml:"negative_same_line"`
	NegativeContext  int `yaml:"negative_context"`
	NeutralSameLine  int `yaml:"neutral_same_line"`
	CurrencyNearby   int `yaml:"currency_nearby"`
	Negated          int `yaml:"negated"`
}

// Policy is the declarative scoring table: keyword -> category plus rule weights and
// window sizes. It is plain data so it can be tuned and tested without touching the
// traversal code.
type Policy struct {
	Keywords        map[string]Category `yaml:"keywords"`
	Weights         Weights             `yaml:"weights"`
	ContextRadius   int                 `yaml:"context_radius"`
	CurrencyRadius  int                 `yaml:"currency_radius"`
	VendorScanLines int                 `yaml:"vendor_scan_lines"`
}

// DefaultPolicy returns the built-in German/English invoice vocabulary.
func DefaultPolicy() Policy {
	keywords := map[string]Category{}
	for _, k := range []string{
		"zu zahlen", "zahlbetrag", "endbetrag", "endsumme", "rechnungsbetrag",
		"rechnungssumme", "gesamtbetrag", "gesamtsumme", "bruttobetrag", "brutto",
		"total", "gesamt", "summe", "betrag", "amount due", "total due", "grand total",
	} {
		keywords[k] = CategoryPositive
	}
	for _, k := range []string{
		"rabatt", "skonto", "nachlass", "gutschrift", "discount", "abzug",
		"abzüglich", "anzahlung", "bereits bezahlt", "erstattung",
	} {
		keywords[k] = CategoryNegative
	}
	for _, k := range []string{
		"netto", "nettobetrag", "nettosumme", "mwst", "mehrwertsteuer", "ust",
		"umsatzsteuer", "steuer", "zwischensumme", "subtotal", "zzgl", "vat", "tax",
	} {
		keywords[k] = CategoryNeutral
	}

	return Policy{
		Keywords: keywords,
		Weights: Weights{
			PositiveSameLine: 40,
			PositiveContext:  25,
			NegativeSameLine: -60,
			NegativeContext:  -35,
			NeutralSameLine:  -15,
			CurrencyNearby:   10,
			Negated:          -50,
		},
		ContextRadius:   60,
		CurrencyRadius:  10,
		VendorScanLines: 8,
	}
}

// LoadPolicy overlays the YAML file at path on DefaultPolicy. Keywords in the file are
// added to (or re-categorised in) the default table; weights and radii replace the
// defaults only where present.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// ParsePolicy is LoadPolicy for an in-memory document.
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate reports the first structural problem in the policy.
func (p Policy) Validate() error {
	if len(p.Keywords) == 0 {
		return fmt.Errorf("%w: keyword table is empty", ErrInvalidPolicy)
	}
	seen := make(map[string]string, len(p.Keywords))
	for k, c := range p.Keywords {
		norm := normalizeKeyword(k)
		if norm == "" {
			return fmt.Errorf("%w: blank keyword", ErrInvalidPolicy)
		}
		switch c {
		case CategoryPositive, CategoryNegative, CategoryNeutral:
		default:
			return fmt.Errorf("%w: keyword %q has unknown category %q", ErrInvalidPolicy, k, c)
		}
		if prev, dup := seen[norm]; dup {
			return fmt.Errorf("%w: keyword %q duplicates %q", ErrInvalidPolicy, k, prev)
		}
		seen[norm] = k
	}
	if p.ContextRadius < 0 || p.CurrencyRadius < 0 {
		return fmt.Errorf("%w: radii must not be negative", ErrInvalidPolicy)
	}
	if p.VendorScanLines < 1 {
		return fmt.Errorf("%w: vendor_scan_lines must be at least 1", ErrInvalidPolicy)
	}
	return nil
}

func normalizeKeyword(k string) string {
	return strings.Join(strings.Fields(strings.ToLower(k)), " ")
}

type keywordMatcher struct {
	keyword  string
	category Category
	re       *regexp.Regexp
}

// compileKeywords turns the table into whole-word matchers, sorted by keyword so that
// traversal order never depends on map iteration.
func compileKeywords(table map[string]Category) []keywordMatcher {
	out := make([]keywordMatcher, 0, len(table))
	for k, c := range table {
		norm := normalizeKeyword(k)
		words := strings.Fields(norm)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		pattern := `(?i)(?:^|[^\p{L}])` + strings.Join(words, `\s+`) + `(?:$|[^\p{L}])`
		out = append(out, keywordMatcher{keyword: norm, category: c, re: regexp.MustCompile(pattern)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].keyword < out[j].keyword })
	return out
}

package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

var nonPriceChars = regexp.MustCompile(`[^0-9.,]`)

// Extractor pulls price and title values out of a rendered document using
// ordered locator chains. It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	chains Chains
}

// New creates an extractor over the given chains
func New(chains Chains) *Extractor {
	if chains.DefaultTitle == "" {
		chains.DefaultTitle = DefaultTitle
	}
	return &Extractor{chains: chains}
}

// NewDefault creates an extractor over the built-in chains
func NewDefault() *Extractor {
	return New(DefaultChains())
}

// DefaultTitle returns the placeholder used when no title locator matches
func (e *Extractor) DefaultTitle() string {
	return e.chains.DefaultTitle
}

// Price returns the first positive price yielded by the price chain.
// Locators are tried in order and, within a locator, matched elements in
// document order; the first element producing a valid price wins.
func (e *Extractor) Price(root *goquery.Selection) (float64, bool) {
	for _, locator := range e.chains.Price {
		matches := root.Find(locator.Selector)
		for i := range matches.Nodes {
			if price, ok := priceFromElement(matches.Eq(i), locator.Attrs); ok {
				return price, true
			}
		}
	}
	return 0, false
}

// Title returns the first non-empty trimmed text yielded by the title chain.
// When nothing matches it returns the default title and false.
func (e *Extractor) Title(root *goquery.Selection) (string, bool) {
	for _, locator := range e.chains.Title {
		matches := root.Find(locator.Selector)
		for i := range matches.Nodes {
			if title := normalizeSpace(matches.Eq(i).Text()); title != "" {
				return title, true
			}
		}
	}
	return e.chains.DefaultTitle, false
}

func priceFromElement(sel *goquery.Selection, attrs []string) (float64, bool) {
	if price, ok := ParsePrice(sel.Text()); ok {
		return price, true
	}

	fallbacks := attrs
	if len(fallbacks) == 0 {
		fallbacks = []string{"data-a-price"}
	}
	for _, attr := range fallbacks {
		if value, exists := sel.Attr(attr); exists {
			if price, ok := ParsePrice(value); ok {
				return price, true
			}
		}
	}
	return 0, false
}

// ParsePrice strips everything except digits, commas and periods, drops the
// thousands separators and parses the remainder. Non-positive or unparseable
// values are rejected.
func ParsePrice(text string) (float64, bool) {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	// ".a-price-whole" renders the integer part with a trailing separator
	cleaned = strings.TrimRight(cleaned, ".")
	if cleaned == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil || !d.IsPositive() {
		return 0, false
	}
	return d.InexactFloat64(), true
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

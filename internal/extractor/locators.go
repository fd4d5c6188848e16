package extractor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Locator identifies candidate elements in a rendered document.
// Attrs are consulted in order when an element's text yields no value.
type Locator struct {
	Selector string   `yaml:"selector"`
	Attrs    []string `yaml:"attrs,omitempty"`
}

// Chain is an ordered list of locators, most specific first
type Chain []Locator

// DefaultTitle is reported when no title locator matches
const DefaultTitle = "Amazon Product"

// DefaultPriceChain covers deal, range, kindle and generic price markup
var DefaultPriceChain = Chain{
	{Selector: ".a-price .a-offscreen"},
	{Selector: ".a-price-whole"},
	{Selector: "#priceblock_dealprice"},
	{Selector: "#priceblock_ourprice"},
	{Selector: ".a-price.a-text-price.a-size-medium.apexPriceToPay .a-offscreen"},
	{Selector: ".a-price-range .a-price .a-offscreen"},
	{Selector: "#kindle-price .a-price .a-offscreen"},
	{Selector: ".a-color-price.a-size-medium"},
	{Selector: ".a-price"},
	{Selector: ".price"},
	{Selector: "[data-a-price]", Attrs: []string{"data-a-price"}},
	{Selector: "[itemprop='price']", Attrs: []string{"content"}},
}

// DefaultTitleChain lists product title locators
var DefaultTitleChain = Chain{
	{Selector: "#productTitle"},
	{Selector: "#title"},
	{Selector: ".product-title"},
	{Selector: "h1.a-size-large"},
	{Selector: "h1 span.a-size-large"},
}

// Chains groups the locator chains the extractor consumes
type Chains struct {
	Price        Chain  `yaml:"price"`
	Title        Chain  `yaml:"title"`
	DefaultTitle string `yaml:"default_title"`
}

// DefaultChains returns the built-in locator chains
func DefaultChains() Chains {
	return Chains{
		Price:        DefaultPriceChain,
		Title:        DefaultTitleChain,
		DefaultTitle: DefaultTitle,
	}
}

// LoadChains reads locator chains from a YAML file. Sections left empty in
// the file keep their built-in defaults.
func LoadChains(path string) (Chains, error) {
	chains := DefaultChains()
	if path == "" {
		return chains, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return chains, fmt.Errorf("failed to read locators file: %w", err)
	}

	var fromFile Chains
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return chains, fmt.Errorf("failed to parse locators file %s: %w", path, err)
	}

	if len(fromFile.Price) > 0 {
		chains.Price = fromFile.Price
	}
	if len(fromFile.Title) > 0 {
		chains.Title = fromFile.Title
	}
	if fromFile.DefaultTitle != "" {
		chains.DefaultTitle = fromFile.DefaultTitle
	}

	for i, l := range chains.Price {
		if l.Selector == "" {
			return chains, fmt.Errorf("price locator %d has an empty selector", i)
		}
	}
	for i, l := range chains.Title {
		if l.Selector == "" {
			return chains, fmt.Errorf("title locator %d has an empty selector", i)
		}
	}

	return chains, nil
}

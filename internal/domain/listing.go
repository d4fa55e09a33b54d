package domain

import (
	"fmt"
	"strings"
)

// Currency is one of the fixed set of currencies the catalog is queried in
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyCAD Currency = "CAD"
)

// SupportedCurrencies lists every currency accepted at the boundary
var SupportedCurrencies = []Currency{CurrencyUSD, CurrencyCAD}

// ParseCurrency validates a currency code (case-insensitive)
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	for _, supported := range SupportedCurrencies {
		if c == supported {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported currency %q", ErrInvalidRequest, code)
}

// CurrencyForDomain derives the listing currency from the marketplace host,
// e.g. "www.amazon.ca" is priced in CAD
func CurrencyForDomain(host string) Currency {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "ca" || strings.HasSuffix(host, ".ca") {
		return CurrencyCAD
	}
	return CurrencyUSD
}

// SourceItem is the listing scraped by the extension that we try to undercut
type SourceItem struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Price    float64  `json:"price"`
	Currency Currency `json:"currency"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

// Validate checks the invariants every pipeline stage relies on
func (s *SourceItem) Validate() error {
	if s == nil {
		return ErrInvalidRequest
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRequest)
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidRequest)
	}
	if s.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidRequest)
	}
	if _, err := ParseCurrency(string(s.Currency)); err != nil {
		return err
	}
	return nil
}

// Candidate is a listing returned by the catalog search
type Candidate struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Price          float64  `json:"price"`
	Currency       Currency `json:"currency"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	DestinationURL string   `json:"destinationUrl"`
}

// PriceRatio returns candidate price / source price, or 0 when the source price is unusable
func PriceRatio(candidatePrice, sourcePrice float64) float64 {
	if sourcePrice <= 0 {
		return 0
	}
	return candidatePrice / sourcePrice
}

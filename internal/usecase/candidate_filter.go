package usecase

import (
	"log"
	"strings"

	"github.com/cheapmatch/backend/internal/domain"
	"github.com/cheapmatch/backend/internal/metrics"
)

// Rejection reasons reported by the candidate filter
const (
	RejectPriceCut        = "price_cut"
	RejectSuspiciousPrice = "suspicious_price"
	RejectAccessory       = "accessory"
	RejectCurrency        = "currency_mismatch"
)

const (
	defaultCandidateLimit = 20
	defaultMinPriceRatio  = 0.3
)

// DefaultAccessoryKeywords mark accessories and spare parts sold alongside the main product
var DefaultAccessoryKeywords = []string{
	"case", "cover", "glass", "film", "strap", "band", "stand",
	"holder", "part", "replacement", "battery",
}

// FilterConfig holds configuration for the candidate filter
type FilterConfig struct {
	CandidateLimit    int
	MinPriceRatio     float64
	AccessoryKeywords []string
}

// CandidateFilter drops candidates that are priced in another currency, not
// cheaper, suspiciously cheap, or look like accessories for the source product
type CandidateFilter struct {
	limit             int
	minPriceRatio     float64
	accessoryKeywords []string
}

// NewCandidateFilter creates a candidate filter with the given configuration
func NewCandidateFilter(config FilterConfig) *CandidateFilter {
	limit := config.CandidateLimit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	ratio := config.MinPriceRatio
	if ratio <= 0 {
		ratio = defaultMinPriceRatio
	}

	keywords := config.AccessoryKeywords
	if len(keywords) == 0 {
		keywords = DefaultAccessoryKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}

	return &CandidateFilter{
		limit:             limit,
		minPriceRatio:     ratio,
		accessoryKeywords: lowered,
	}
}

// Filter returns the surviving candidates in their original relative order.
// An empty result means nothing survived.
func (f *CandidateFilter) Filter(source *domain.SourceItem, candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) > f.limit {
		candidates = candidates[:f.limit]
	}

	sourceLower := strings.ToLower(source.Title)
	survivors := make([]domain.Candidate, 0, len(candidates))

	for _, c := range candidates {
		if reason := f.rejectReason(source, sourceLower, c); reason != "" {
			metrics.RecordFilterRejection(reason)
			log.Printf("[FILTER] %s: %q (%.2f vs %.2f)", reason, truncate(c.Title, 40), c.Price, source.Price)
			continue
		}
		survivors = append(survivors, c)
	}

	return survivors
}

func (f *CandidateFilter) rejectReason(source *domain.SourceItem, sourceLower string, c domain.Candidate) string {
	// Prices in different currencies cannot be compared
	if c.Currency != "" && c.Currency != source.Currency {
		return RejectCurrency
	}

	ratio := domain.PriceRatio(c.Price, source.Price)
	if c.Price <= 0 || ratio >= 1 {
		return RejectPriceCut
	}
	if ratio < f.minPriceRatio {
		return RejectSuspiciousPrice
	}

	candidateLower := strings.ToLower(c.Title)
	for _, keyword := range f.accessoryKeywords {
		if strings.Contains(candidateLower, keyword) && !strings.Contains(sourceLower, keyword) {
			return RejectAccessory
		}
	}
	return ""
}

// truncate shortens s to at most n runes for log lines
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

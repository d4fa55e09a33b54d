package domain

import "context"

// ResultStore persists result cache entries. Upsert must be atomic per key.
type ResultStore interface {
	// Get returns ErrCacheMiss when no entry exists for the key
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)
	// Upsert writes the entry, assigning a strictly increasing UpdatedAt
	Upsert(ctx context.Context, entry *CacheEntry) error
}

// CatalogSearch is the third-party affiliate catalog
type CatalogSearch interface {
	Search(ctx context.Context, keywords string, currency Currency, pageSize int) ([]Candidate, error)
	// GetDetails returns (nil, nil) when the item no longer exists
	GetDetails(ctx context.Context, candidateID string, currency Currency) (*Candidate, error)
}

// KeywordExtractor shortens long source titles before search
type KeywordExtractor interface {
	Extract(ctx context.Context, title string) (string, error)
}

// SemanticVerifier judges whether two titles describe the same product.
// Implementations fail open with a neutral verdict instead of returning errors
// for transport or parse failures.
type SemanticVerifier interface {
	Validate(ctx context.Context, sourceTitle, candidateTitle string, priceRatio float64) Verdict
}

// VisualVerifier picks the candidate whose image best matches the source image.
// An empty id means no selection.
type VisualVerifier interface {
	SelectBest(ctx context.Context, sourceImageURL string, options []VisualOption) string
}

// FingerprintSource computes (or recalls) the perceptual hash of an image URL
type FingerprintSource interface {
	Fingerprint(ctx context.Context, imageURL string) (Fingerprint, bool)
}

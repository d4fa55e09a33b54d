package domain

import (
	"fmt"
	"time"
)

// CacheKey identifies a result cache entry. Currency is part of the key because
// price and availability differ by currency.
type CacheKey struct {
	SourceItemID string
	Currency     Currency
}

// String renders the key as "{id}:{currency}"
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s", k.SourceItemID, k.Currency)
}

// CacheEntry records the latest outcome of a search for one key.
// A nil Match is the negative ("no match") marker.
type CacheEntry struct {
	SourceItemID string       `json:"sourceItemId"`
	Currency     Currency     `json:"currency"`
	Match        *MatchResult `json:"match,omitempty"`
	LastChecked  time.Time    `json:"lastChecked"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Key returns the entry's cache key
func (e *CacheEntry) Key() CacheKey {
	return CacheKey{SourceItemID: e.SourceItemID, Currency: e.Currency}
}

// Negative reports whether the entry records a confirmed "no match"
func (e *CacheEntry) Negative() bool {
	return e.Match == nil
}

// Age returns how long ago the entry was last checked
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastChecked)
}

// NextStamp returns now, or the smallest instant after prev when the clock has
// not advanced past it. Stores use it so stamps strictly increase per key.
func NextStamp(prev, now time.Time) time.Time {
	if !prev.IsZero() && !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

// Fingerprint is a 64-bit average perceptual hash
type Fingerprint uint64

// String renders the fingerprint as 16 hex digits
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

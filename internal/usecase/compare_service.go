package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cheapmatch/backend/internal/domain"
	"github.com/cheapmatch/backend/internal/metrics"
)

const (
	defaultPositiveTTL  = 12 * time.Hour
	defaultNegativeTTL  = 24 * time.Hour
	defaultWriteTimeout = 5 * time.Second
	defaultRunTimeout   = 60 * time.Second
)

// Result cache states reported to metrics
const (
	cacheStateFresh           = "fresh"
	cacheStateNegative        = "negative"
	cacheStateRefreshed       = "refreshed"
	cacheStateStale           = "stale"
	cacheStateNegativeExpired = "negative_expired"
	cacheStateMiss            = "miss"
)

// Matcher runs the full matching waterfall for a source item
type Matcher interface {
	FindMatch(ctx context.Context, source *domain.SourceItem) (*domain.MatchResult, error)
}

// CompareServiceConfig holds configuration for the compare service
type CompareServiceConfig struct {
	PositiveTTL        time.Duration
	NegativeTTL        time.Duration
	RefreshTimeout     time.Duration
	CompareTimeout     time.Duration
	EnableDebugLogging bool
}

// CompareService answers compare requests from the result cache, refreshing
// stale matches or running the waterfall when needed
type CompareService struct {
	store          domain.ResultStore
	matcher        Matcher
	catalog        domain.CatalogSearch
	positiveTTL    time.Duration
	negativeTTL    time.Duration
	refreshTimeout time.Duration
	runTimeout     time.Duration
	debug          bool
	now            func() time.Time
	inflight       singleflight.Group
}

// NewCompareService creates a new compare service with dependencies
func NewCompareService(
	store domain.ResultStore,
	matcher Matcher,
	catalog domain.CatalogSearch,
	config CompareServiceConfig,
) *CompareService {
	positiveTTL := config.PositiveTTL
	if positiveTTL <= 0 {
		positiveTTL = defaultPositiveTTL
	}
	negativeTTL := config.NegativeTTL
	if negativeTTL <= 0 {
		negativeTTL = defaultNegativeTTL
	}
	refreshTimeout := config.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = defaultCatalogTimeout
	}
	runTimeout := config.CompareTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	return &CompareService{
		store:          store,
		matcher:        matcher,
		catalog:        catalog,
		positiveTTL:    positiveTTL,
		negativeTTL:    negativeTTL,
		refreshTimeout: refreshTimeout,
		runTimeout:     runTimeout,
		debug:          config.EnableDebugLogging,
		now:            time.Now,
	}
}

// Compare returns the cheaper match for a source item, if any.
// Flow: check cache -> (refresh stale match | run waterfall) -> cache -> return.
// Concurrent requests for the same (item, currency) share one evaluation. The
// shared run is detached from any single caller; a caller that goes away gets
// found=false while the others keep waiting.
func (s *CompareService) Compare(ctx context.Context, item *domain.SourceItem) (*domain.CompareResponse, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	key := domain.CacheKey{SourceItemID: item.ID, Currency: item.Currency}
	results := s.inflight.DoChan(key.String(), func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
		defer cancel()
		return s.compare(runCtx, item, key)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		metrics.RecordCompare("canceled")
		log.Printf("[CACHE] Caller for %s gave up: %v", key, ctx.Err())
		return &domain.CompareResponse{Found: false}, nil
	case res = <-results:
	}
	if res.Err != nil {
		metrics.RecordCompare("error")
		return nil, res.Err
	}

	match, _ := res.Val.(*domain.MatchResult)
	if match == nil {
		metrics.RecordCompare("not_found")
		return &domain.CompareResponse{Found: false}, nil
	}

	metrics.RecordCompare("found")
	result := *match
	return &domain.CompareResponse{Found: true, Match: &result}, nil
}

func (s *CompareService) compare(ctx context.Context, item *domain.SourceItem, key domain.CacheKey) (*domain.MatchResult, error) {
	entry := s.lookup(ctx, key)
	now := s.now()

	switch {
	case entry == nil:
		metrics.RecordCacheState(cacheStateMiss)
		log.Printf("[CACHE] Miss for %s", key)

	case !entry.Negative():
		age := entry.Age(now)
		if age < s.positiveTTL {
			metrics.RecordCacheState(cacheStateFresh)
			log.Printf("[CACHE] Hit for %s (checked %s ago)", key, age.Round(time.Second))
			return entry.Match, nil
		}

		log.Printf("[CACHE] Stale match for %s (checked %s ago), refreshing", key, age.Round(time.Second))
		if refreshed := s.refresh(ctx, item, entry); refreshed != nil {
			metrics.RecordCacheState(cacheStateRefreshed)
			return refreshed, nil
		}
		metrics.RecordCacheState(cacheStateStale)

	default:
		age := entry.Age(now)
		if age < s.negativeTTL {
			metrics.RecordCacheState(cacheStateNegative)
			log.Printf("[CACHE] Negative hit for %s (checked %s ago)", key, age.Round(time.Second))
			return nil, nil
		}
		metrics.RecordCacheState(cacheStateNegativeExpired)
		log.Printf("[CACHE] Negative entry expired for %s, searching again", key)
	}

	return s.search(ctx, item, entry)
}

// lookup reads the entry for key. Store failures are treated as a miss.
func (s *CompareService) lookup(ctx context.Context, key domain.CacheKey) *domain.CacheEntry {
	if s.store == nil {
		return nil
	}
	entry, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			log.Printf("[CACHE] Read failed for %s, treating as miss: %v", key, err)
		}
		return nil
	}
	return entry
}

// refresh re-prices the cached candidate in the requested currency.
// Returns nil when the candidate is gone, the call failed, the price is in another
// currency or it is no longer cheaper.
func (s *CompareService) refresh(ctx context.Context, item *domain.SourceItem, entry *domain.CacheEntry) *domain.MatchResult {
	if s.catalog == nil || entry.Match.CandidateID == "" {
		return nil
	}

	refreshCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	fresh, err := s.catalog.GetDetails(refreshCtx, entry.Match.CandidateID, item.Currency)
	cancel()
	if err != nil {
		log.Printf("[CACHE] Refresh of %s failed: %v", entry.Match.CandidateID, err)
		return nil
	}
	if fresh == nil {
		log.Printf("[CACHE] Candidate %s no longer available", entry.Match.CandidateID)
		return nil
	}

	if fresh.Currency != "" && fresh.Currency != item.Currency {
		log.Printf("[CACHE] Candidate %s priced in %s, want %s", fresh.ID, fresh.Currency, item.Currency)
		return nil
	}

	savings := roundCents(item.Price - fresh.Price)
	if fresh.Price <= 0 || savings <= 0 {
		log.Printf("[CACHE] Candidate %s no longer cheaper (%.2f vs %.2f)", fresh.ID, fresh.Price, item.Price)
		return nil
	}

	match := *entry.Match
	match.Price = fresh.Price
	match.Savings = savings
	match.Currency = item.Currency
	if fresh.Title != "" {
		match.Title = fresh.Title
	}
	if fresh.DestinationURL != "" {
		match.DestinationURL = fresh.DestinationURL
	}
	if fresh.ImageURL != "" {
		match.ImageURL = fresh.ImageURL
	}

	updated := *entry
	updated.Match = &match
	updated.LastChecked = s.now()
	s.write(ctx, &updated)

	log.Printf("[CACHE] Refreshed %s: %s %.2f (savings %.2f)", match.CandidateID, match.Currency, match.Price, savings)
	return &match
}

// search runs the waterfall and records its outcome. Outcomes that say nothing
// about the catalog (missing credentials, failed search, cancellation) are not cached.
func (s *CompareService) search(ctx context.Context, item *domain.SourceItem, prev *domain.CacheEntry) (*domain.MatchResult, error) {
	match, err := s.matcher.FindMatch(ctx, item)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoMatch):
		match = nil
	case errors.Is(err, domain.ErrNotConfigured), errors.Is(err, domain.ErrCatalogUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, nil
	default:
		return nil, err
	}

	now := s.now()
	entry := &domain.CacheEntry{
		SourceItemID: item.ID,
		Currency:     item.Currency,
		Match:        match,
		LastChecked:  now,
		CreatedAt:    now,
	}
	if prev != nil && !prev.CreatedAt.IsZero() {
		entry.CreatedAt = prev.CreatedAt
	}
	s.write(ctx, entry)

	return match, nil
}

// write stores the entry. Failures are logged; the caller still gets its result.
func (s *CompareService) write(ctx context.Context, entry *domain.CacheEntry) {
	if s.store == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultWriteTimeout)
	defer cancel()

	if err := s.store.Upsert(writeCtx, entry); err != nil {
		log.Printf("[CACHE] Write failed for %s: %v", entry.Key(), err)
		return
	}
	if s.debug {
		log.Printf("[CACHE] Stored %s (negative=%v)", entry.Key(), entry.Negative())
	}
}

package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cheapmatch/backend/internal/domain"
	"github.com/cheapmatch/backend/internal/metrics"
)

const (
	defaultSearchPageSize        = 40
	defaultKeywordTitleLength    = 50
	defaultMinVerifierConfidence = 70.0
	defaultCatalogTimeout        = 15 * time.Second
	defaultKeywordTimeout        = 10 * time.Second
	defaultVerifierTimeout       = 10 * time.Second
	defaultVisualTimeout         = 20 * time.Second
)

// EngineConfig holds configuration for the match engine
type EngineConfig struct {
	Credentials           domain.CatalogCredentials
	SearchPageSize        int
	KeywordTitleLength    int
	MinVerifierConfidence float64
	CatalogTimeout        time.Duration
	KeywordTimeout        time.Duration
	VerifierTimeout       time.Duration
	VisualTimeout         time.Duration
	EnableDebugLogging    bool
}

// Collaborators are the external services the engine calls.
// Keywords, Semantic and Visual are optional.
type Collaborators struct {
	Catalog  domain.CatalogSearch
	Keywords domain.KeywordExtractor
	Semantic domain.SemanticVerifier
	Visual   domain.VisualVerifier
}

// MatchEngine runs the matching waterfall: filter, local score, semantic
// verification for inconclusive scores, visual disambiguation, selection
type MatchEngine struct {
	catalog      domain.CatalogSearch
	keywords     domain.KeywordExtractor
	semantic     domain.SemanticVerifier
	visual       domain.VisualVerifier
	filter       *CandidateFilter
	scorer       *LocalScorer
	preprocessor *QueryPreprocessor
	config       EngineConfig

	notConfiguredOnce sync.Once
}

// finalist is a candidate still in the running after verification
type finalist struct {
	scored     domain.ScoredCandidate
	confidence float64
}

// NewMatchEngine creates a match engine with the given collaborators and configuration
func NewMatchEngine(
	collaborators Collaborators,
	filter *CandidateFilter,
	scorer *LocalScorer,
	config EngineConfig,
) *MatchEngine {
	if config.SearchPageSize <= 0 {
		config.SearchPageSize = defaultSearchPageSize
	}
	if config.KeywordTitleLength <= 0 {
		config.KeywordTitleLength = defaultKeywordTitleLength
	}
	if config.MinVerifierConfidence <= 0 {
		config.MinVerifierConfidence = defaultMinVerifierConfidence
	}
	if config.CatalogTimeout <= 0 {
		config.CatalogTimeout = defaultCatalogTimeout
	}
	if config.KeywordTimeout <= 0 {
		config.KeywordTimeout = defaultKeywordTimeout
	}
	if config.VerifierTimeout <= 0 {
		config.VerifierTimeout = defaultVerifierTimeout
	}
	if config.VisualTimeout <= 0 {
		config.VisualTimeout = defaultVisualTimeout
	}
	if filter == nil {
		filter = NewCandidateFilter(FilterConfig{})
	}
	if scorer == nil {
		scorer = NewLocalScorer(nil, ScorerConfig{})
	}

	return &MatchEngine{
		catalog:      collaborators.Catalog,
		keywords:     collaborators.Keywords,
		semantic:     collaborators.Semantic,
		visual:       collaborators.Visual,
		filter:       filter,
		scorer:       scorer,
		preprocessor: NewQueryPreprocessor(defaultFallbackWords, config.EnableDebugLogging),
		config:       config,
	}
}

// FindMatch searches the catalog and returns the cheapest acceptable listing.
// Returns ErrNoMatch when the waterfall completes without a winner,
// ErrNotConfigured when credentials are missing and ErrCatalogUnavailable when
// the search itself failed.
func (e *MatchEngine) FindMatch(ctx context.Context, source *domain.SourceItem) (*domain.MatchResult, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}

	if e.catalog == nil || !e.config.Credentials.Complete() {
		e.notConfiguredOnce.Do(func() {
			log.Printf("[MATCH] Catalog credentials missing; every search returns no match")
		})
		return nil, domain.ErrNotConfigured
	}

	keywords := e.searchKeywords(ctx, source.Title)
	log.Printf("[MATCH] Searching catalog for %q in %s", keywords, source.Currency)

	searchCtx, cancel := context.WithTimeout(ctx, e.config.CatalogTimeout)
	candidates, err := e.catalog.Search(searchCtx, keywords, source.Currency, e.config.SearchPageSize)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Printf("[MATCH] Catalog search failed: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	if len(candidates) == 0 {
		log.Printf("[MATCH] No candidates returned for %q", keywords)
		return nil, domain.ErrNoMatch
	}

	survivors := e.filter.Filter(source, candidates)
	if len(survivors) == 0 {
		log.Printf("[MATCH] No candidates survived filtering (%d searched)", len(candidates))
		return nil, domain.ErrNoMatch
	}

	scored := e.scorer.ScoreCandidates(ctx, source, survivors)
	fastPass, verify := partition(scored)

	if e.config.EnableDebugLogging {
		log.Printf("[MATCH] Buckets: fast-pass=%d verify=%d reject=%d",
			len(fastPass), len(verify), len(scored)-len(fastPass)-len(verify))
	}

	var finalists []finalist
	switch {
	case len(fastPass) > 0:
		finalists = rankFastPass(fastPass)
	case len(verify) > 0:
		finalists = e.verifyCandidates(ctx, source, verify)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(finalists) == 0 {
		log.Printf("[MATCH] No candidate passed scoring and verification")
		return nil, domain.ErrNoMatch
	}

	winner := e.disambiguate(ctx, source, finalists)
	candidate := winner.scored.Candidate

	savings := roundCents(source.Price - candidate.Price)
	if savings <= 0 {
		log.Printf("[MATCH] Winner %s is no longer cheaper (%.2f vs %.2f)", candidate.ID, candidate.Price, source.Price)
		return nil, domain.ErrNoMatch
	}

	log.Printf("[MATCH] Found match %s: savings %.2f, confidence %.1f", candidate.ID, savings, winner.confidence)

	currency := candidate.Currency
	if currency == "" {
		currency = source.Currency
	}

	return &domain.MatchResult{
		CandidateID:    candidate.ID,
		Title:          candidate.Title,
		Price:          candidate.Price,
		Currency:       currency,
		Savings:        savings,
		DestinationURL: candidate.DestinationURL,
		ImageURL:       candidate.ImageURL,
		Confidence:     winner.confidence,
	}, nil
}

// searchKeywords shortens long titles through the keyword extractor, falling
// back to the first words of the cleaned title
func (e *MatchEngine) searchKeywords(ctx context.Context, title string) string {
	if len(title) <= e.config.KeywordTitleLength {
		return strings.TrimSpace(title)
	}

	if e.keywords != nil {
		extractCtx, cancel := context.WithTimeout(ctx, e.config.KeywordTimeout)
		keywords, err := e.keywords.Extract(extractCtx, title)
		cancel()
		if err == nil && strings.TrimSpace(keywords) != "" {
			return strings.TrimSpace(keywords)
		}
		if err != nil && !errors.Is(err, domain.ErrNotConfigured) {
			log.Printf("[MATCH] Keyword extraction failed, using fallback: %v", err)
		}
	}

	return e.preprocessor.FallbackKeywords(title)
}

// verifyCandidates asks the semantic verifier about every candidate at once and
// keeps the confident matches. All verdicts are collected before any decision.
func (e *MatchEngine) verifyCandidates(
	ctx context.Context,
	source *domain.SourceItem,
	candidates []domain.ScoredCandidate,
) []finalist {
	verdicts := make([]domain.Verdict, len(candidates))

	var g errgroup.Group
	for i, c := range candidates {
		g.Go(func() error {
			verdicts[i] = e.validate(ctx, source, c.Candidate)
			return nil
		})
	}
	_ = g.Wait()

	var finalists []finalist
	for i, verdict := range verdicts {
		c := candidates[i]
		if verdict.IsMatch && verdict.Confidence > e.config.MinVerifierConfidence {
			metrics.RecordVerifierCall("semantic", "accepted")
			finalists = append(finalists, finalist{scored: c, confidence: verdict.Confidence})
			continue
		}
		metrics.RecordVerifierCall("semantic", "rejected")
		log.Printf("[VERIFY] Rejected %q (match=%v, confidence=%.0f)",
			truncate(c.Candidate.Title, 40), verdict.IsMatch, verdict.Confidence)
	}

	slices.SortStableFunc(finalists, func(a, b finalist) int {
		if c := cmp.Compare(b.confidence, a.confidence); c != 0 {
			return c
		}
		return compareScored(a.scored, b.scored)
	})
	return finalists
}

func (e *MatchEngine) validate(ctx context.Context, source *domain.SourceItem, c domain.Candidate) domain.Verdict {
	if e.semantic == nil {
		return domain.NeutralVerdict
	}
	verifyCtx, cancel := context.WithTimeout(ctx, e.config.VerifierTimeout)
	defer cancel()
	return e.semantic.Validate(verifyCtx, source.Title, c.Title, domain.PriceRatio(c.Price, source.Price))
}

// disambiguate asks the visual verifier to choose between several finalists.
// Without a usable answer the best-ranked finalist wins.
func (e *MatchEngine) disambiguate(ctx context.Context, source *domain.SourceItem, finalists []finalist) finalist {
	if len(finalists) < 2 || source.ImageURL == "" || e.visual == nil {
		return finalists[0]
	}

	options := make([]domain.VisualOption, len(finalists))
	for i, f := range finalists {
		options[i] = domain.VisualOption{
			ID:       f.scored.Candidate.ID,
			ImageURL: f.scored.Candidate.ImageURL,
			Title:    f.scored.Candidate.Title,
		}
	}

	visualCtx, cancel := context.WithTimeout(ctx, e.config.VisualTimeout)
	selected := e.visual.SelectBest(visualCtx, source.ImageURL, options)
	cancel()

	if selected != "" {
		for _, f := range finalists {
			if f.scored.Candidate.ID == selected {
				metrics.RecordVerifierCall("visual", "selected")
				log.Printf("[VERIFY] Visual verifier selected %s among %d finalists", selected, len(finalists))
				return f
			}
		}
	}

	metrics.RecordVerifierCall("visual", "none")
	return finalists[0]
}

// partition splits scored candidates into the fast-pass and verify buckets;
// rejected candidates are dropped
func partition(scored []domain.ScoredCandidate) (fastPass, verify []domain.ScoredCandidate) {
	for _, s := range scored {
		switch s.Score.Decision {
		case domain.DecisionFastPass:
			fastPass = append(fastPass, s)
		case domain.DecisionVerify:
			verify = append(verify, s)
		}
	}
	return fastPass, verify
}

// rankFastPass orders fast-pass candidates best first; their confidence is the composite score
func rankFastPass(candidates []domain.ScoredCandidate) []finalist {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, compareScored)

	finalists := make([]finalist, len(ranked))
	for i, c := range ranked {
		finalists[i] = finalist{scored: c, confidence: c.Score.Composite}
	}
	return finalists
}

// compareScored orders by composite desc, then text similarity desc, then search order
func compareScored(a, b domain.ScoredCandidate) int {
	if c := cmp.Compare(b.Score.Composite, a.Score.Composite); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Score.TextSim, a.Score.TextSim); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

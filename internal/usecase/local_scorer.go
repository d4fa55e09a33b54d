package usecase

import (
	"context"
	"log"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/cheapmatch/backend/internal/domain"
	"github.com/cheapmatch/backend/internal/metrics"
)

// Composite score weights, out of 100. Text outweighs image because image
// downloads may fail.
const (
	textScoreWeight  = 60.0
	imageScoreWeight = 40.0
)

const (
	defaultFastPassThreshold = 88.0
	defaultVerifyThreshold   = 70.0
)

// ScorerConfig holds configuration for the local scorer
type ScorerConfig struct {
	FastPassThreshold  float64
	VerifyThreshold    float64
	EnableDebugLogging bool
}

// LocalScorer combines text and image similarity into a composite score and a
// three-way decision
type LocalScorer struct {
	fingerprints       domain.FingerprintSource
	fastPassThreshold  float64
	verifyThreshold    float64
	enableDebugLogging bool
}

// NewLocalScorer creates a scorer. A nil fingerprint source scores every
// image pair as 0.
func NewLocalScorer(fingerprints domain.FingerprintSource, config ScorerConfig) *LocalScorer {
	fastPass := config.FastPassThreshold
	if fastPass <= 0 {
		fastPass = defaultFastPassThreshold
	}
	verify := config.VerifyThreshold
	if verify <= 0 || verify > fastPass {
		verify = min(defaultVerifyThreshold, fastPass)
	}

	return &LocalScorer{
		fingerprints:       fingerprints,
		fastPassThreshold:  fastPass,
		verifyThreshold:    verify,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// CompositeScore weights the two similarities onto a 0-100 scale, rounded to one decimal
func CompositeScore(textSim, imageSim float64) float64 {
	score := clamp01(textSim)*textScoreWeight + clamp01(imageSim)*imageScoreWeight
	return math.Round(score*10) / 10
}

// Decide maps a composite score onto exactly one decision bucket
func (s *LocalScorer) Decide(composite float64) domain.Decision {
	switch {
	case composite >= s.fastPassThreshold:
		return domain.DecisionFastPass
	case composite >= s.verifyThreshold:
		return domain.DecisionVerify
	default:
		return domain.DecisionReject
	}
}

// Score builds the similarity score for precomputed similarities
func (s *LocalScorer) Score(textSim, imageSim float64) domain.SimilarityScore {
	composite := CompositeScore(textSim, imageSim)
	return domain.SimilarityScore{
		TextSim:   textSim,
		ImageSim:  imageSim,
		Composite: composite,
		Decision:  s.Decide(composite),
	}
}

// ScoreCandidates scores every candidate against the source. Fingerprints for
// the source and all candidate images are computed concurrently; results keep
// the candidates' order.
func (s *LocalScorer) ScoreCandidates(
	ctx context.Context,
	source *domain.SourceItem,
	candidates []domain.Candidate,
) []domain.ScoredCandidate {
	var sourceHash *domain.Fingerprint
	candidateHashes := make([]*domain.Fingerprint, len(candidates))

	if s.fingerprints != nil {
		var g errgroup.Group
		if source.ImageURL != "" {
			g.Go(func() error {
				sourceHash = s.fingerprint(ctx, source.ImageURL)
				return nil
			})
		}
		for i, c := range candidates {
			if c.ImageURL == "" {
				continue
			}
			g.Go(func() error {
				candidateHashes[i] = s.fingerprint(ctx, c.ImageURL)
				return nil
			})
		}
		_ = g.Wait()
	}

	scored := make([]domain.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		textSim := TextSimilarity(source.Title, c.Title)
		imageSim := ImageSimilarity(sourceHash, candidateHashes[i])
		score := s.Score(textSim, imageSim)
		metrics.RecordDecision(string(score.Decision))

		if s.enableDebugLogging {
			log.Printf("[SCORE] %q | text=%.2f image=%.2f composite=%.1f -> %s",
				truncate(c.Title, 40), textSim, imageSim, score.Composite, score.Decision)
		}

		scored[i] = domain.ScoredCandidate{Candidate: c, Score: score, Index: i}
	}

	return scored
}

func (s *LocalScorer) fingerprint(ctx context.Context, url string) *domain.Fingerprint {
	hash, ok := s.fingerprints.Fingerprint(ctx, url)
	if !ok {
		return nil
	}
	return &hash
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

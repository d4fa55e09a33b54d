package gemini

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/google/generative-ai-go/genai"

	"github.com/cheapmatch/backend/internal/domain"
	"github.com/cheapmatch/backend/internal/metrics"
)

const verifyPrompt = `You are a strict e-commerce validation bot.
Determine if these two product titles refer to the SAME core product.

Context:
- We are looking for a cheaper listing of the source product in another catalog.
- The candidate price is %d%% of the source price.

Compare:
1. Source: %q
2. Candidate: %q

Rules:
- If one is a case, cover, screen protector or other accessory and the other is the main device, it is NOT a match.
- If they are completely different items (e.g. mouse vs graphics card), it is NOT a match.
- If they are the same product (or a near-identical variant), it IS a match.

Answer with JSON only: {"isMatch": true|false, "confidence": 0-100}`

// SemanticVerifier asks the model whether two titles name the same product.
// It never fails the pipeline: unavailable or unreadable answers yield the
// neutral verdict.
type SemanticVerifier struct {
	gen generator
}

// NewSemanticVerifier creates a semantic verifier on client
func NewSemanticVerifier(client *Client) *SemanticVerifier {
	return &SemanticVerifier{gen: client.json}
}

// Validate returns the normalized verdict for a title pair
func (v *SemanticVerifier) Validate(ctx context.Context, sourceTitle, candidateTitle string, priceRatio float64) domain.Verdict {
	if v.gen == nil {
		metrics.RecordVerifierCall("semantic", "unavailable")
		return domain.NeutralVerdict
	}

	prompt := fmt.Sprintf(verifyPrompt, int(math.Round(priceRatio*100)), sourceTitle, candidateTitle)
	answer, err := v.gen.Generate(ctx, genai.Text(prompt))
	if err != nil {
		metrics.RecordVerifierCall("semantic", "failed")
		log.Printf("[VERIFY] Semantic verifier error, failing open: %v", err)
		return domain.NeutralVerdict
	}

	verdict, err := ParseVerdict(answer)
	if err != nil {
		metrics.RecordVerifierCall("semantic", "failed")
		log.Printf("[VERIFY] Unreadable verifier answer %q, failing open", answer)
		return domain.NeutralVerdict
	}

	metrics.RecordVerifierCall("semantic", "answered")
	log.Printf("[VERIFY] %v (%.0f) | source: %q vs candidate: %q", verdict.IsMatch, verdict.Confidence, sourceTitle, candidateTitle)
	return verdict
}

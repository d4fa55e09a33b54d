package usecase

import (
	"math/bits"

	"github.com/cheapmatch/backend/internal/domain"
)

const fingerprintBits = 64

// ImageSimilarity compares two perceptual fingerprints by Hamming distance.
// A missing fingerprint on either side contributes no similarity.
func ImageSimilarity(a, b *domain.Fingerprint) float64 {
	if a == nil || b == nil {
		return 0
	}
	distance := bits.OnesCount64(uint64(*a) ^ uint64(*b))
	return 1 - float64(distance)/fingerprintBits
}

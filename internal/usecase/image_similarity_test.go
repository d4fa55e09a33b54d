package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cheapmatch/backend/internal/domain"
)

func fp(v uint64) *domain.Fingerprint {
	f := domain.Fingerprint(v)
	return &f
}

func TestImageSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b *domain.Fingerprint
		want float64
	}{
		{"identical", fp(0xDEADBEEF), fp(0xDEADBEEF), 1},
		{"inverted", fp(0), fp(^uint64(0)), 0},
		{"half the bits differ", fp(0), fp(0xFFFFFFFF), 0.5},
		{"one bit differs", fp(0), fp(1), 63.0 / 64},
		{"missing source", nil, fp(1), 0},
		{"missing candidate", fp(1), nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ImageSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

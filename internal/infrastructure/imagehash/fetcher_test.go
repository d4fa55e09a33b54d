package imagehash

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheapmatch/backend/internal/domain"
)

// halfAndHalf returns a size x size image, black on the left and white on the right
func halfAndHalf(size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x >= size/2 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func uniform(size int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHash(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		want domain.Fingerprint
	}{
		{"uniform image sets every bit", uniform(8, 120), 0xFFFFFFFFFFFFFFFF},
		{"half black half white", halfAndHalf(8), 0x0F0F0F0F0F0F0F0F},
		{"resampled from a larger image", halfAndHalf(64), 0x0F0F0F0F0F0F0F0F},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Hash(tt.img))
		})
	}
}

func TestCompute_InvalidImage(t *testing.T) {
	_, err := Compute(bytes.NewReader([]byte("definitely not an image")))
	assert.Error(t, err)
}

func TestFetcher_Fingerprint(t *testing.T) {
	pngData := encodePNG(t, halfAndHalf(32))

	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not an image</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewFetcher(0)
	ctx := context.Background()

	t.Run("hashes a downloaded image", func(t *testing.T) {
		hash, ok := fetcher.Fingerprint(ctx, server.URL+"/ok.png")
		require.True(t, ok)
		assert.Equal(t, domain.Fingerprint(0x0F0F0F0F0F0F0F0F), hash)
	})

	t.Run("missing image", func(t *testing.T) {
		_, ok := fetcher.Fingerprint(ctx, server.URL+"/missing.png")
		assert.False(t, ok)
	})

	t.Run("body is not an image", func(t *testing.T) {
		_, ok := fetcher.Fingerprint(ctx, server.URL+"/text")
		assert.False(t, ok)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, ok := fetcher.Fingerprint(ctx, "://bad")
		assert.False(t, ok)
	})

	t.Run("image over the size cap", func(t *testing.T) {
		small := NewFetcher(0)
		small.maxBytes = 16

		_, err := small.Download(ctx, server.URL+"/ok.png")
		assert.Error(t, err)
	})
}

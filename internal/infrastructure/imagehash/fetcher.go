package imagehash

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/cheapmatch/backend/internal/domain"
)

const (
	gridSize         = 8
	defaultTimeout   = 5 * time.Second
	defaultMaxBytes  = 10 << 20
	defaultUserAgent = "Mozilla/5.0 (compatible; CheapMatch/1.0)"
)

// Fetcher downloads listing images and computes their average hash
type Fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
}

// NewFetcher creates an image fetcher whose downloads each get their own deadline
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		maxBytes:   defaultMaxBytes,
	}
}

// Fingerprint downloads the image and hashes it. Any failure yields (0, false);
// a missing fingerprint is not an error for the pipeline.
func (f *Fetcher) Fingerprint(ctx context.Context, imageURL string) (domain.Fingerprint, bool) {
	data, err := f.Download(ctx, imageURL)
	if err != nil {
		log.Printf("[IMAGE] Download failed for %s: %v", imageURL, err)
		return 0, false
	}

	hash, err := Compute(bytes.NewReader(data))
	if err != nil {
		log.Printf("[IMAGE] Processing failed for %s: %v", imageURL, err)
		return 0, false
	}
	return hash, true
}

// Download fetches the raw image bytes, bounded by the fetcher's timeout and size cap
func (f *Fetcher) Download(ctx context.Context, imageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image larger than %d bytes", f.maxBytes)
	}
	return data, nil
}

// Compute decodes an image and returns its average hash
func Compute(r io.Reader) (domain.Fingerprint, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	return Hash(img), nil
}

// Hash resamples img to an 8x8 grayscale grid and sets bit i (most significant
// first) when pixel i is at least the mean intensity
func Hash(img image.Image) domain.Fingerprint {
	gray := image.NewGray(image.Rect(0, 0, gridSize, gridSize))
	draw.NearestNeighbor.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum int
	for _, p := range gray.Pix {
		sum += int(p)
	}

	// p >= sum/64 without losing the fraction
	var hash uint64
	for _, p := range gray.Pix {
		hash <<= 1
		if int(p)*len(gray.Pix) >= sum {
			hash |= 1
		}
	}
	return domain.Fingerprint(hash)
}

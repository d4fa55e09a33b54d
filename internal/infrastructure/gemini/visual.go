package gemini

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/errgroup"

	"github.com/cheapmatch/backend/internal/domain"
)

const visualPrompt = `You are comparing product photos from two online catalogs.
The first image is the SOURCE product. The following %d images are numbered candidate listings.
Pick the candidate that shows exactly the same product as the source (same model, colour and form factor).
Answer with JSON only: {"best": <candidate number>} or {"best": 0} if none of them match.`

// imageDownloader fetches raw image bytes
type imageDownloader interface {
	Download(ctx context.Context, imageURL string) ([]byte, error)
}

// VisualVerifier shows the model the source image next to the finalists'
// images and asks which one is the same product
type VisualVerifier struct {
	gen        generator
	downloader imageDownloader
}

// NewVisualVerifier creates a visual verifier on client that downloads images with downloader
func NewVisualVerifier(client *Client, downloader imageDownloader) *VisualVerifier {
	return &VisualVerifier{gen: client.text, downloader: downloader}
}

// SelectBest returns the id of the chosen option, or "" when the model is
// unavailable, an image cannot be fetched, or the answer names no option
func (v *VisualVerifier) SelectBest(ctx context.Context, sourceImageURL string, options []domain.VisualOption) string {
	if v.gen == nil || v.downloader == nil || len(options) == 0 {
		return ""
	}

	urls := make([]string, 0, len(options)+1)
	urls = append(urls, sourceImageURL)
	for _, o := range options {
		urls = append(urls, o.ImageURL)
	}

	images := make([][]byte, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			if u == "" {
				return fmt.Errorf("image %d has no url", i)
			}
			data, err := v.downloader.Download(gctx, u)
			if err != nil {
				return err
			}
			images[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[VISUAL] Skipping visual comparison: %v", err)
		return ""
	}

	parts := make([]genai.Part, 0, 2*len(images)+1)
	parts = append(parts, genai.Text(fmt.Sprintf(visualPrompt, len(options))))
	for i, data := range images {
		if i == 0 {
			parts = append(parts, genai.Text("SOURCE:"))
		} else {
			parts = append(parts, genai.Text(fmt.Sprintf("Candidate %d: %s", i, options[i-1].Title)))
		}
		parts = append(parts, genai.ImageData(imageFormat(data), data))
	}

	answer, err := v.gen.Generate(ctx, parts...)
	if err != nil {
		log.Printf("[VISUAL] Visual verifier error: %v", err)
		return ""
	}

	n, ok := ParseSelection(answer, len(options))
	if !ok {
		log.Printf("[VISUAL] No candidate selected (answer %q)", answer)
		return ""
	}
	return options[n-1].ID
}

// imageFormat sniffs the image subtype expected by genai.ImageData ("jpeg", "png", ...)
func imageFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	if format, ok := strings.CutPrefix(contentType, "image/"); ok {
		return format
	}
	return "jpeg"
}

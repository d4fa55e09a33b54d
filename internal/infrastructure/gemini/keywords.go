package gemini

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

const maxKeywordWords = 6

const keywordPrompt = `You are an expert e-commerce search optimizer.
Extract the most relevant search keywords from a long marketplace product title to find the EXACT same item in another catalog.

Rules:
1. Remove brand names if they are generic or likely custom-branded (e.g. "Amazon Basics"). Keep major brands (Nike, Samsung).
2. Focus on the core model number and product type.
3. Remove adjectives like "Premium", "High Quality".
4. Return ONLY the keywords, 6 words or less.

Title: %q`

// KeywordExtractor shortens listing titles into catalog search keywords
type KeywordExtractor struct {
	gen generator
}

// NewKeywordExtractor creates a keyword extractor on client
func NewKeywordExtractor(client *Client) *KeywordExtractor {
	return &KeywordExtractor{gen: client.text}
}

// Extract asks the model for search keywords
func (k *KeywordExtractor) Extract(ctx context.Context, title string) (string, error) {
	if k.gen == nil {
		return "", errNotConfigured
	}

	answer, err := k.gen.Generate(ctx, genai.Text(fmt.Sprintf(keywordPrompt, title)))
	if err != nil {
		return "", fmt.Errorf("keyword extraction: %w", err)
	}

	keywords := cleanKeywords(answer)
	log.Printf("[KEYWORDS] Extracted %q from %q", keywords, title)
	return keywords, nil
}

// cleanKeywords keeps the first line of the answer without quotes or list
// markers, capped at maxKeywordWords words
func cleanKeywords(answer string) string {
	line := strings.TrimSpace(answer)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.Trim(line, "\"'`*-• \t")
	if i := strings.Index(line, ":"); i >= 0 && i < len(line)-1 && strings.EqualFold(strings.TrimSpace(line[:i]), "keywords") {
		line = line[i+1:]
	}

	words := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(words) > maxKeywordWords {
		words = words[:maxKeywordWords]
	}
	return strings.Join(words, " ")
}

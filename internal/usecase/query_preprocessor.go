package usecase

import (
	"log"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	defaultFallbackWords = 5
	maxSearchQueryLength = 100
	minQueryCutoffLength = 50
)

// QueryPreprocessor cleans long listing titles into short catalog search queries.
// It is the naive fallback used when the keyword extractor is unavailable.
type QueryPreprocessor struct {
	maxWords           int
	enableDebugLogging bool
}

// Compiled regex patterns for query preprocessing
var (
	// Pack/count patterns like "2 pack", "pack of 6", "6-pack", "24 count", "3pcs"
	packCountPattern = regexp.MustCompile(`(?i)\b\d+[-\s]*(?:pack|pk|count|ct|pcs|pieces?)\b|\bpack\s*of\s*\d+\b|\bset\s*of\s*\d+\b`)

	// Bracketed asides like "(2nd Generation)" or "[Upgraded]"
	bracketedPattern = regexp.MustCompile(`[(\[{][^)\]}]*[)\]}]`)

	// Separators after which listing titles usually turn into feature lists
	featureSeparatorPattern = regexp.MustCompile(`\s[|,–—-]\s|[,|]`)

	multiSpacePattern = regexp.MustCompile(`\s+`)

	orphanPunctuationPattern  = regexp.MustCompile(`\s+[,\-;:/]+\s+`)
	leadTrailPunctuationRegex = regexp.MustCompile(`^[\s,\-;:/]+|[\s,\-;:/]+$`)
)

// queryNoiseWords are marketing and filler terms that never narrow a search
var queryNoiseWords = map[string]bool{
	"new":          true,
	"newest":       true,
	"latest":       true,
	"premium":      true,
	"upgraded":     true,
	"improved":     true,
	"professional": true,
	"quality":      true,
	"best":         true,
	"original":     true,
	"genuine":      true,
	"official":     true,
	"authentic":    true,
	"hot":          true,
	"sale":         true,
	"deal":         true,
	"gift":         true,
	"bonus":        true,
	"value":        true,
	"edition":      true,
	"the":          true,
	"with":         true,
	"for":          true,
	"and":          true,
}

// NewQueryPreprocessor creates a new query preprocessor that keeps at most
// maxWords words
func NewQueryPreprocessor(maxWords int, enableDebugLogging bool) *QueryPreprocessor {
	if maxWords <= 0 {
		maxWords = defaultFallbackWords
	}
	return &QueryPreprocessor{
		maxWords:           maxWords,
		enableDebugLogging: enableDebugLogging,
	}
}

// PreprocessQuery cleans a listing title for catalog search.
// Removes pack counts, bracketed asides, trailing feature lists and marketing terms.
func (p *QueryPreprocessor) PreprocessQuery(title string) string {
	if strings.TrimSpace(title) == "" {
		return ""
	}

	original := title

	// Step 1: Keep the head of the title; what follows a separator is usually a feature list
	cleaned := title
	if loc := featureSeparatorPattern.FindStringIndex(cleaned); loc != nil && loc[0] > 0 {
		cleaned = cleaned[:loc[0]]
	}

	// Step 2: Remove bracketed asides and pack counts
	cleaned = bracketedPattern.ReplaceAllString(cleaned, " ")
	cleaned = packCountPattern.ReplaceAllString(cleaned, " ")

	// Step 3: Remove noise words
	cleaned = p.removeNoiseWords(cleaned)

	// Step 4: Clean up orphaned punctuation and whitespace
	cleaned = orphanPunctuationPattern.ReplaceAllString(cleaned, " ")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = leadTrailPunctuationRegex.ReplaceAllString(cleaned, "")

	// Step 5: Limit query length, cutting at a word boundary when possible
	if len(cleaned) > maxSearchQueryLength {
		cut := maxSearchQueryLength
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > minQueryCutoffLength {
			cleaned = cleaned[:lastSpace]
		}
	}

	if p.enableDebugLogging {
		log.Printf("[PREPROCESS] Input: %q -> Output: %q", original, cleaned)
	}

	return strings.TrimSpace(cleaned)
}

// FallbackKeywords returns the first maxWords words of the cleaned title,
// or of the raw title when cleaning removed everything
func (p *QueryPreprocessor) FallbackKeywords(title string) string {
	words := strings.Fields(p.PreprocessQuery(title))
	if len(words) == 0 {
		words = strings.Fields(title)
	}
	if len(words) > p.maxWords {
		words = words[:p.maxWords]
	}
	return strings.Join(words, " ")
}

// removeNoiseWords removes marketing and filler terms from the query,
// preserving the original casing of the words it keeps
func (p *QueryPreprocessor) removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))

	for _, word := range words {
		cleanWord := strings.ToLower(strings.Trim(word, ",.!?;:-'\""))
		if !queryNoiseWords[cleanWord] {
			kept = append(kept, word)
		}
	}

	return strings.Join(kept, " ")
}

package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Weights of the two text signals. Token overlap dominates because word order
// differs between catalogs.
const (
	levenshteinWeight  = 0.3
	tokenOverlapWeight = 0.7
	minTokenLength     = 3
)

// marketingPattern matches marketing phrases and year tokens as whole words
var marketingPattern = regexp.MustCompile(`\b(?:` + strings.Join([]string{
	`hot sale`, `limited`, `new arrival`, `free shipping`, `best seller`,
	`amazon'?s choice`, `premium`, `upgraded`, `professional`, `high quality`,
	`gift for`, `pack of`, `set of`, `new`, `(?:19|20)\d{2}`,
}, "|") + `)\b`)

// titlePunctuationRegex keeps letters, digits, whitespace, underscores and hyphens
var titlePunctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s_-]`)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// brandAliases maps spellings of global brands to one canonical form.
// Keys are already lowercased and punctuation-stripped.
var brandAliases = []struct {
	pattern   *regexp.Regexp
	canonical string
}{
	{regexp.MustCompile(`\btp[\s-]?link\b`), "tp-link"},
	{regexp.MustCompile(`\bone[\s-]?plus\b`), "oneplus"},
	{regexp.MustCompile(`\bgo[\s-]?pro\b`), "gopro"},
	{regexp.MustCompile(`\bsteel[\s-]?series\b`), "steelseries"},
	{regexp.MustCompile(`\bsan[\s-]?disk\b`), "sandisk"},
	{regexp.MustCompile(`\bwestern[\s-]?digital\b`), "western-digital"},
	{regexp.MustCompile(`\bhewlett[\s-]?packard\b`), "hp"},
	{regexp.MustCompile(`\brav[\s-]?power\b`), "ravpower"},
	{regexp.MustCompile(`\bnet[\s-]?gear\b`), "netgear"},
	{regexp.MustCompile(`\bfit[\s-]?bit\b`), "fitbit"},
	{regexp.MustCompile(`\bplay[\s-]?station\b`), "playstation"},
	{regexp.MustCompile(`\bair[\s-]?pods\b`), "airpods"},
}

// NormalizeTitle lowercases a listing title and strips marketing noise,
// punctuation and brand spelling differences
func NormalizeTitle(title string) string {
	cleaned := strings.ToLower(title)
	cleaned = marketingPattern.ReplaceAllString(cleaned, " ")
	cleaned = titlePunctuationRegex.ReplaceAllString(cleaned, " ")
	cleaned = whitespaceRegex.ReplaceAllString(cleaned, " ")
	for _, alias := range brandAliases {
		cleaned = alias.pattern.ReplaceAllString(cleaned, alias.canonical)
	}
	return strings.TrimSpace(cleaned)
}

// TextSimilarity scores how alike two titles are, from 0 to 1
func TextSimilarity(titleA, titleB string) float64 {
	a := NormalizeTitle(titleA)
	b := NormalizeTitle(titleB)

	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	levScore := levenshteinScore(a, b)

	intersection, union := tokenOverlap(titleTokens(a), titleTokens(b))
	tokenScore := 0.0
	if union > 0 {
		tokenScore = float64(intersection) / float64(union)
	}

	return levScore*levenshteinWeight + tokenScore*tokenOverlapWeight
}

// levenshteinScore is 1 - distance/maxLen, measured in runes
func levenshteinScore(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

// titleTokens returns the set of whitespace-separated words longer than two runes
func titleTokens(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(s) {
		if utf8.RuneCountInString(word) >= minTokenLength {
			tokens[word] = true
		}
	}
	return tokens
}

// tokenOverlap returns the intersection and union sizes of two token sets
func tokenOverlap(a, b map[string]bool) (int, int) {
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	return intersection, len(a) + len(b) - intersection
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

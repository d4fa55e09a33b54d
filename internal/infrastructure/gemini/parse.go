package gemini

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cheapmatch/backend/internal/domain"
)

var (
	errNoAnswer = errors.New("model answer has no recognizable content")

	codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	firstNumberRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

var (
	matchKeys      = []string{"ismatch", "is_match", "match", "same", "same_product", "samedevice"}
	confidenceKeys = []string{"confidence", "score", "certainty", "probability"}
	selectionKeys  = []string{"best", "index", "option", "selected", "choice", "bestoption", "best_option"}
)

// ParseVerdict normalizes a loosely shaped verifier answer into a Verdict.
// JSON objects are read with case-insensitive keys and lenient value types;
// fields that are missing default to no match and zero confidence. Bare
// YES/NO answers carry no confidence. Anything else is an error.
func ParseVerdict(answer string) (domain.Verdict, error) {
	if obj, ok := parseObject(answer); ok {
		verdict := domain.Verdict{}
		if v, ok := lookup(obj, matchKeys); ok {
			verdict.IsMatch = toBool(v)
		}
		if v, ok := lookup(obj, confidenceKeys); ok {
			verdict.Confidence = normalizeConfidence(toFloat(v))
		}
		return verdict, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(answer))
	switch {
	case strings.HasPrefix(upper, "YES"):
		return domain.Verdict{IsMatch: true, Confidence: domain.NeutralVerdict.Confidence}, nil
	case strings.HasPrefix(upper, "NO"):
		return domain.Verdict{IsMatch: false}, nil
	}
	return domain.Verdict{}, errNoAnswer
}

// ParseSelection reads the 1-based option number chosen by the visual verifier.
// Returns false when the answer names no option in [1, count].
func ParseSelection(answer string, count int) (int, bool) {
	var raw interface{} = strings.TrimSpace(answer)
	if obj, ok := parseObject(answer); ok {
		v, found := lookup(obj, selectionKeys)
		if !found {
			return 0, false
		}
		raw = v
	}

	n := int(toFloat(raw))
	if n < 1 || n > count {
		return 0, false
	}
	return n, true
}

// parseObject extracts the first JSON object from an answer, ignoring code fences and prose
func parseObject(answer string) (map[string]interface{}, bool) {
	text := strings.TrimSpace(answer)
	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// lookup finds the first of keys in obj, comparing case-insensitively
func lookup(obj map[string]interface{}, keys []string) (interface{}, bool) {
	for _, want := range keys {
		for k, v := range obj {
			if strings.EqualFold(strings.TrimSpace(k), want) {
				return v, true
			}
		}
	}
	return nil, false
}

func toBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "match", "same":
			return true
		}
	}
	return false
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64); err == nil {
			return f
		}
		if m := firstNumberRegex.FindString(t); m != "" {
			f, _ := strconv.ParseFloat(m, 64)
			return f
		}
	}
	return 0
}

// normalizeConfidence maps fractions in (0,1) onto 0-100 and clamps the result
func normalizeConfidence(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v < 1 {
		v *= 100
	}
	return math.Min(v, 100)
}

package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheapmatch/backend/internal/domain"
)

// fakeGenerator returns a canned answer and records the parts it was given
type fakeGenerator struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  [][]genai.Part
}

func (f *fakeGenerator) Generate(ctx context.Context, parts ...genai.Part) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, parts)
	return f.answer, f.err
}

// fakeDownloader serves image bytes by url
type fakeDownloader struct {
	images map[string][]byte
}

func (f *fakeDownloader) Download(ctx context.Context, imageURL string) ([]byte, error) {
	data, ok := f.images[imageURL]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		want    domain.Verdict
		wantErr bool
	}{
		{"canonical json", `{"isMatch": true, "confidence": 92}`, domain.Verdict{IsMatch: true, Confidence: 92}, false},
		{"code fence", "```json\n{\"isMatch\": false, \"confidence\": 80}\n```", domain.Verdict{IsMatch: false, Confidence: 80}, false},
		{"snake case and string values", `{"is_match": "yes", "confidence": "85%"}`, domain.Verdict{IsMatch: true, Confidence: 85}, false},
		{"fractional confidence", `{"match": true, "score": 0.9}`, domain.Verdict{IsMatch: true, Confidence: 90}, false},
		{"confidence clamped", `{"isMatch": true, "confidence": 250}`, domain.Verdict{IsMatch: true, Confidence: 100}, false},
		{"negative confidence", `{"isMatch": true, "confidence": -3}`, domain.Verdict{IsMatch: true, Confidence: 0}, false},
		{"missing fields", `{"reason": "unsure"}`, domain.Verdict{}, false},
		{"prose around json", `Sure! {"ISMATCH": 1, "Confidence": 75} hope that helps`, domain.Verdict{IsMatch: true, Confidence: 75}, false},
		{"plain yes", "YES", domain.Verdict{IsMatch: true, Confidence: 50}, false},
		{"plain no", "no.", domain.Verdict{}, false},
		{"garbage", "I cannot tell", domain.Verdict{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.answer)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.IsMatch, got.IsMatch)
			assert.InDelta(t, tt.want.Confidence, got.Confidence, 0.001)
		})
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		count  int
		want   int
		wantOK bool
	}{
		{"json best", `{"best": 2}`, 3, 2, true},
		{"string index", `{"index": "3"}`, 3, 3, true},
		{"option label", `{"option": "Candidate 1"}`, 2, 1, true},
		{"none selected", `{"best": 0}`, 3, 0, false},
		{"out of range", `{"best": 4}`, 3, 0, false},
		{"bare number", "2", 2, 2, true},
		{"no known key", `{"answer": 1}`, 2, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSelection(tt.answer, tt.count)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanKeywords(t *testing.T) {
	tests := []struct {
		answer string
		want   string
	}{
		{"Sony WH-1000XM5 headphones", "Sony WH-1000XM5 headphones"},
		{"\"Logitech MX Master 3S\"\nsome explanation", "Logitech MX Master 3S"},
		{"Keywords: anker 737 power bank", "anker 737 power bank"},
		{"one, two, three, four, five, six, seven", "one two three four five six"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanKeywords(tt.answer))
		})
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	client, err := NewClient(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, client.Configured())
	assert.NoError(t, client.Close())

	_, err = NewKeywordExtractor(client).Extract(context.Background(), "a long title")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	verdict := NewSemanticVerifier(client).Validate(context.Background(), "a", "b", 0.5)
	assert.Equal(t, domain.NeutralVerdict, verdict)

	assert.Empty(t, NewVisualVerifier(client, &fakeDownloader{}).SelectBest(context.Background(), "src", []domain.VisualOption{{ID: "1", ImageURL: "x"}}))
}

func TestKeywordExtractor_Extract(t *testing.T) {
	gen := &fakeGenerator{answer: "Samsung T7 SSD 1TB\n"}
	extractor := &KeywordExtractor{gen: gen}

	keywords, err := extractor.Extract(context.Background(), "Samsung T7 Portable SSD 1TB USB 3.2 Gen2 External Solid State Drive")
	require.NoError(t, err)
	assert.Equal(t, "Samsung T7 SSD 1TB", keywords)
	require.Len(t, gen.calls, 1)

	gen.err = errors.New("quota exceeded")
	_, err = extractor.Extract(context.Background(), "title")
	assert.Error(t, err)
}

func TestSemanticVerifier_Validate(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
		want   domain.Verdict
	}{
		{"match", `{"isMatch": true, "confidence": 91}`, nil, domain.Verdict{IsMatch: true, Confidence: 91}},
		{"mismatch", `{"isMatch": false, "confidence": 95}`, nil, domain.Verdict{IsMatch: false, Confidence: 95}},
		{"transport error fails open", "", errors.New("timeout"), domain.NeutralVerdict},
		{"unreadable answer fails open", "hmm", nil, domain.NeutralVerdict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &SemanticVerifier{gen: &fakeGenerator{answer: tt.answer, err: tt.err}}
			got := verifier.Validate(context.Background(), "Sony WH-1000XM5", "Sony WH1000XM5 Headphones", 0.6)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVisualVerifier_SelectBest(t *testing.T) {
	downloader := &fakeDownloader{images: map[string][]byte{
		"src": pngHeader,
		"a":   pngHeader,
		"b":   pngHeader,
	}}
	options := []domain.VisualOption{
		{ID: "cand-a", ImageURL: "a", Title: "Option A"},
		{ID: "cand-b", ImageURL: "b", Title: "Option B"},
	}

	t.Run("selects the named option", func(t *testing.T) {
		gen := &fakeGenerator{answer: `{"best": 2}`}
		verifier := &VisualVerifier{gen: gen, downloader: downloader}

		assert.Equal(t, "cand-b", verifier.SelectBest(context.Background(), "src", options))
		require.Len(t, gen.calls, 1)

		var blobs int
		for _, part := range gen.calls[0] {
			if blob, ok := part.(genai.Blob); ok {
				blobs++
				assert.Equal(t, "image/png", blob.MIMEType)
			}
		}
		assert.Equal(t, 3, blobs)
	})

	t.Run("no selection", func(t *testing.T) {
		verifier := &VisualVerifier{gen: &fakeGenerator{answer: `{"best": 0}`}, downloader: downloader}
		assert.Empty(t, verifier.SelectBest(context.Background(), "src", options))
	})

	t.Run("image download failure skips the model", func(t *testing.T) {
		gen := &fakeGenerator{answer: `{"best": 1}`}
		verifier := &VisualVerifier{gen: gen, downloader: downloader}
		missing := []domain.VisualOption{{ID: "x", ImageURL: "missing"}, options[0]}

		assert.Empty(t, verifier.SelectBest(context.Background(), "src", missing))
		assert.Empty(t, gen.calls)
	})
}

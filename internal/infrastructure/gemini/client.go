package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/cheapmatch/backend/internal/domain"
)

const defaultModel = "gemini-2.0-flash-lite"

// generator produces a text answer for a prompt made of parts
type generator interface {
	Generate(ctx context.Context, parts ...genai.Part) (string, error)
}

// modelGenerator adapts a genai model to generator
type modelGenerator struct {
	model *genai.GenerativeModel
}

func (g *modelGenerator) Generate(ctx context.Context, parts ...genai.Part) (string, error) {
	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty model response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}

// Client owns the connection to the Gemini API and hands out the
// collaborators built on it. A client without an API key is valid: its
// collaborators report themselves unavailable.
type Client struct {
	client *genai.Client
	text   generator
	json   generator
}

// NewClient connects to Gemini. An empty apiKey yields an unconfigured client.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return &Client{}, nil
	}
	if modelName == "" {
		modelName = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	textModel := client.GenerativeModel(modelName)
	textModel.SetTemperature(0.2)

	jsonModel := client.GenerativeModel(modelName)
	jsonModel.SetTemperature(0)
	jsonModel.ResponseMIMEType = "application/json"

	return &Client{
		client: client,
		text:   &modelGenerator{model: textModel},
		json:   &modelGenerator{model: jsonModel},
	}, nil
}

// Configured reports whether an API key was supplied
func (c *Client) Configured() bool {
	return c.text != nil
}

// Close releases the underlying connection
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// errNotConfigured is wrapped by collaborators of an unconfigured client
var errNotConfigured = fmt.Errorf("gemini: %w", domain.ErrNotConfigured)

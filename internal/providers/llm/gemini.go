package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"brandmerch/internal/providers"
)

const defaultGeminiModel = "gemini-1.5-flash"

type GeminiOptions struct {
	APIKey string
	Model  string
}

// GeminiGenerator calls the Gemini text models through the official SDK.
type GeminiGenerator struct {
	client    *genai.Client
	modelName string
}

func NewGeminiGenerator(ctx context.Context, opts GeminiOptions) (*GeminiGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{client: cl, modelName: model}, nil
}

func (g *GeminiGenerator) Name() string { return providerGemini }

func (g *GeminiGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		m.SetTemperature(req.Temperature)
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate %s: %w", req.Template, providers.FromGoogleAPI(providerGemini, err))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini generate %s: %w", req.Template, errEmptyAnswer)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("gemini generate %s: %w", req.Template, errEmptyAnswer)
	}
	return text, nil
}

var errEmptyAnswer = errors.New("model returned no text")

var _ Generator = (*GeminiGenerator)(nil)

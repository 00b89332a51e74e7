package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brandmerch/internal/providers"
)

const (
	providerOpenAI       = "openai"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	openAIDefaultTimeout = 45 * time.Second
)

var openAIModelAliases = map[string]string{
	"gpt4o-mini":             "gpt-4o-mini",
	"gpt4omini":              "gpt-4o-mini",
	"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
	"gpt-3.5":                "gpt-3.5-turbo",
	"gpt35-turbo":            "gpt-3.5-turbo",
}

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
}

// OpenAIGenerator calls the chat completions endpoint.
type OpenAIGenerator struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
}

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float32         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAIGenerator{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        normalizeOpenAIModel(opts.Model),
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
	}, nil
}

func normalizeOpenAIModel(model string) string {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return defaultOpenAIModel
	}
	if canonical, ok := openAIModelAliases[model]; ok {
		return canonical
	}
	return model
}

func (o *OpenAIGenerator) Name() string { return providerOpenAI }

func (o *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	system := "You are a brand designer writing concise merchandise briefs."
	payload := openAIChatRequest{
		Model:       o.model,
		Temperature: req.Temperature,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.JSON {
		payload.ResponseFormat = &openAIFormat{Type: "json_object"}
		payload.Messages[0].Content = system + " Respond with valid JSON only."
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai generate %s: %w", req.Template, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai generate %s: %w", req.Template, &providers.StatusError{Provider: providerOpenAI, Code: resp.StatusCode, Body: string(body)})
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai generate %s: decode: %w", req.Template, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai generate %s: %w", req.Template, errEmptyAnswer)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai generate %s: %w", req.Template, errEmptyAnswer)
	}
	return text, nil
}

var _ Generator = (*OpenAIGenerator)(nil)

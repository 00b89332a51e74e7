// Package genai generates motif and mockup images with the Gemini image
// models over REST.
package genai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
	"brandmerch/internal/providers"
)

const (
	providerName   = "gemini-image"
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash-image"
	maxReferences  = 3
	maxDownload    = 20 << 20
)

// ErrNoImage is returned when the model answered without image data.
var ErrNoImage = errors.New("no image content returned")

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client renders images remotely when an API key is configured and falls
// back to deterministic synthetic images otherwise, so local and CI runs
// exercise the whole pipeline.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Request describes one image to generate.
type Request struct {
	Prompt      string
	AspectRatio string
	// Palette tints synthetic images; remote generation receives it through the prompt.
	Palette []string
	// References are image URLs sent to the model as conditioning input.
	References []string
	// Seed distinguishes otherwise identical synthetic requests.
	Seed string
}

// Image is a generated image.
type Image struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client renders placeholders instead of calling the API.
func (c *Client) Synthetic() bool {
	return c.apiKey == ""
}

// GenerateImage returns one image for req. Remote failures are returned as
// *providers.StatusError or transport errors so callers can retry them.
func (c *Client) GenerateImage(ctx context.Context, req Request) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return Image{}, fmt.Errorf("%w: image prompt is empty", domain.ErrValidation)
	}
	if c.Synthetic() {
		return c.syntheticImage(req), nil
	}
	return c.remoteGenerateImage(ctx, req)
}

func (c *Client) syntheticImage(req Request) Image {
	width, height := normalizeAspect(req.AspectRatio)
	seed := deterministicSeed(req.Seed, req.Prompt, req.AspectRatio)
	data := renderSyntheticImage(width, height, seed, req.Palette)

	c.logger.Debug().
		Str("model", c.model).
		Str("seed", seed).
		Msg("genai: generated synthetic image")

	return Image{Data: data, MIME: "image/png", Width: width, Height: height}
}

func (c *Client) remoteGenerateImage(ctx context.Context, req Request) (Image, error) {
	parts := []geminiPart{{Text: buildImagePrompt(req)}}
	for i, ref := range req.References {
		if i == maxReferences {
			break
		}
		data, mime, err := c.download(ctx, ref)
		if err != nil {
			c.logger.Warn().Err(err).Str("reference", ref).Msg("genai: skipping reference image")
			continue
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: firstNonEmpty(mime, "image/png"),
			Data:     base64.StdEncoding.EncodeToString(data),
		}})
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		payload.GenerationConfig.ImageConfig = &geminiImageConfig{AspectRatio: aspect}
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return Image{}, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			img, err := c.decodePart(ctx, part)
			if err != nil || len(img.Data) == 0 {
				continue
			}
			if img.Width == 0 || img.Height == 0 {
				img.Width, img.Height = normalizeAspect(req.AspectRatio)
			}
			c.logger.Debug().
				Str("model", c.model).
				Int("bytes", len(img.Data)).
				Msg("genai: generated remote image")
			return img, nil
		}
	}
	return Image{}, ErrNoImage
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiErr geminiErrorResponse
		msg := strings.TrimSpace(string(data))
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return &providers.StatusError{Provider: providerName, Code: resp.StatusCode, Body: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func (c *Client) decodePart(ctx context.Context, part geminiPart) (Image, error) {
	var (
		data []byte
		mime string
	)
	switch {
	case part.InlineData != nil && part.InlineData.Data != "":
		raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return Image{}, fmt.Errorf("decode inline data: %w", err)
		}
		data, mime = raw, part.InlineData.MimeType
	case part.FileData != nil && part.FileData.FileURI != "":
		raw, contentType, err := c.download(ctx, part.FileData.FileURI)
		if err != nil {
			return Image{}, err
		}
		data, mime = raw, firstNonEmpty(part.FileData.MimeType, contentType)
	default:
		return Image{}, nil
	}
	w, h := decodeImageDimensions(data)
	return Image{Data: data, MIME: firstNonEmpty(mime, "image/png"), Width: w, Height: h}, nil
}

func (c *Client) download(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	sameHost := false
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(uri, "/")
		sameHost = true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if sameHost || strings.HasPrefix(target, c.baseURL) {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, "", &providers.StatusError{Provider: providerName, Code: resp.StatusCode, Body: string(data)}
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func buildImagePrompt(req Request) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Prompt))
	if len(req.Palette) > 0 {
		b.WriteString("\nColor palette: ")
		b.WriteString(strings.Join(req.Palette, ", "))
	}
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		b.WriteString("\nAspect ratio: ")
		b.WriteString(aspect)
	}
	return b.String()
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func renderSyntheticImage(width, height int, seed string, palette []string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := paletteColor(palette, 0, seed)
	accent := paletteColor(palette, 1, seed)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for i := 0; i < max(width, height); i += max(16, width/32) {
		for y := 0; y < height; y++ {
			x := i + y
			if x >= width {
				break
			}
			img.Set(x, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func paletteColor(palette []string, idx int, seed string) color.RGBA {
	if idx < len(palette) {
		if hex, ok := domain.NormalizeHexColor(palette[idx]); ok {
			return color.RGBA{
				R: mustParseHexByte(hex[1:3]),
				G: mustParseHexByte(hex[3:5]),
				B: mustParseHexByte(hex[5:7]),
				A: 255,
			}
		}
	}
	return colorFromSeed(seed, idx)
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: mustParseHexByte(segment[0:2]),
		G: mustParseHexByte(segment[2:4]),
		B: mustParseHexByte(segment[4:6]),
		A: 255,
	}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func normalizeAspect(aspect string) (int, int) {
	switch strings.TrimSpace(strings.ToLower(aspect)) {
	case "16:9":
		return 1920, 1080
	case "9:16":
		return 1080, 1920
	case "4:5":
		return 1024, 1280
	case "3:2":
		return 1536, 1024
	case "1:1", "square", "":
		return 1024, 1024
	default:
		parts := strings.Split(aspect, ":")
		if len(parts) == 2 {
			if a, errA := strconv.Atoi(strings.TrimSpace(parts[0])); errA == nil {
				if b, errB := strconv.Atoi(strings.TrimSpace(parts[1])); errB == nil && a > 0 && b > 0 {
					width := 1024
					height := int(float64(width) * float64(b) / float64(a))
					return width, height
				}
			}
		}
		return 1024, 1024
	}
}

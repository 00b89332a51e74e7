package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"brandmerch/internal/domain"
	"brandmerch/internal/providers"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSyntheticImageIsDeterministicAndUsesPalette(t *testing.T) {
	c := NewClient(Options{})
	if !c.Synthetic() {
		t.Fatal("expected synthetic mode without api key")
	}
	req := Request{Prompt: "motif", Palette: []string{"#ff0000", "#00ff00"}, Seed: "s1"}
	a, err := c.GenerateImage(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateImage error: %v", err)
	}
	b, _ := c.GenerateImage(context.Background(), req)
	if !bytes.Equal(a.Data, b.Data) {
		t.Fatal("expected identical synthetic output for identical requests")
	}
	img, err := png.Decode(bytes.NewReader(a.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, bl, _ := img.At(img.Bounds().Dx()-1, img.Bounds().Dy()/2+40).RGBA()
	if r == 0 && g == 0 && bl == 0 {
		t.Fatal("expected palette colors in synthetic image")
	}
	if a.Width != 1024 || a.Height != 1024 || a.MIME != "image/png" {
		t.Fatalf("unexpected image metadata %+v", a)
	}
}

func TestGenerateImageRejectsEmptyPrompt(t *testing.T) {
	_, err := NewClient(Options{}).GenerateImage(context.Background(), Request{Prompt: " "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRemoteGenerateImageInlineData(t *testing.T) {
	pngData := tinyPNG(t)
	var gotBody geminiGenerateContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		if !strings.HasSuffix(r.URL.Path, "/models/img-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_ = json.NewEncoder(w).Encode(geminiGenerateContentResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{
				{Text: "here you go"},
				{InlineData: &geminiInlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(pngData)}},
			}},
		}}})
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL, Model: "img-model"})
	img, err := c.GenerateImage(context.Background(), Request{Prompt: "mug mockup", AspectRatio: "1:1", Palette: []string{"#111111"}})
	if err != nil {
		t.Fatalf("GenerateImage error: %v", err)
	}
	if img.Width != 4 || img.Height != 3 {
		t.Fatalf("expected decoded dimensions, got %dx%d", img.Width, img.Height)
	}
	if len(gotBody.Contents) != 1 || !strings.Contains(gotBody.Contents[0].Parts[0].Text, "Color palette: #111111") {
		t.Fatalf("unexpected request body %+v", gotBody)
	}
	if gotBody.GenerationConfig == nil || gotBody.GenerationConfig.ImageConfig.AspectRatio != "1:1" {
		t.Fatal("expected aspect ratio in generation config")
	}
}

func TestRemoteGenerateImageSendsReferences(t *testing.T) {
	pngData := tinyPNG(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/ref.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngData)
	})
	var parts int
	mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
		var body geminiGenerateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		parts = len(body.Contents[0].Parts)
		_ = json.NewEncoder(w).Encode(geminiGenerateContentResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{{InlineData: &geminiInlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(pngData)}}}},
		}}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Options{APIKey: "k", BaseURL: srv.URL})
	if _, err := c.GenerateImage(context.Background(), Request{Prompt: "p", References: []string{srv.URL + "/ref.png", srv.URL + "/missing.png"}}); err != nil {
		t.Fatalf("GenerateImage error: %v", err)
	}
	if parts != 2 {
		t.Fatalf("expected prompt plus one reference, got %d parts", parts)
	}
}

func TestRemoteGenerateImageStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL}).GenerateImage(context.Background(), Request{Prompt: "p"})
	var se *providers.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != 503 || se.Body != "overloaded" || !se.Temporary() {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestRemoteGenerateImageWithoutImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"sorry"}]}}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Options{APIKey: "k", BaseURL: srv.URL}).GenerateImage(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestNormalizeAspect(t *testing.T) {
	cases := map[string][2]int{"": {1024, 1024}, "16:9": {1920, 1080}, "2:1": {1024, 512}, "bad": {1024, 1024}}
	for in, want := range cases {
		w, h := normalizeAspect(in)
		if w != want[0] || h != want[1] {
			t.Fatalf("normalizeAspect(%q) = %dx%d, want %dx%d", in, w, h, want[0], want[1])
		}
	}
}

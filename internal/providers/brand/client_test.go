package brand

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"brandmerch/internal/domain"
	"brandmerch/internal/providers"
)

const sampleResponse = `{
  "name": "Acme",
  "description": "Roasters of fine coffee",
  "logos": [
    {"type": "icon", "formats": [{"src": "https://cdn.test/icon.png", "format": "png"}]},
    {"type": "logo", "formats": [{"src": "https://cdn.test/logo.jpeg", "format": "jpeg"}, {"src": "https://cdn.test/logo.svg", "format": "svg"}]}
  ],
  "colors": [
    {"hex": "#FFFFFF", "type": "light"},
    {"hex": "#AA3300", "type": "brand"},
    {"hex": "not-a-color", "type": "accent"},
    {"hex": "#123", "type": "accent"}
  ],
  "fonts": [{"name": "Inter", "type": "body"}, {"name": " ", "type": "title"}]
}`

func TestFetch(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "key", BaseURL: srv.URL})
	md, err := c.Fetch(context.Background(), "https://www.Acme.test/about")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if gotPath != "/brands/acme.test" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if md.Title != "Acme" || md.LogoURL != "https://cdn.test/logo.svg" {
		t.Fatalf("unexpected metadata %+v", md)
	}
	want := []string{"#aa3300", "#112233", "#ffffff"}
	if len(md.Colors) != len(want) {
		t.Fatalf("colors = %v, want %v", md.Colors, want)
	}
	for i := range want {
		if md.Colors[i] != want[i] {
			t.Fatalf("colors = %v, want %v", md.Colors, want)
		}
	}
	if len(md.Fonts) != 1 || md.Fonts[0] != "Inter" {
		t.Fatalf("unexpected fonts %v", md.Fonts)
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown brand", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(Options{APIKey: "key", BaseURL: srv.URL}).Fetch(context.Background(), "https://acme.test")
	var se *providers.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || se.Temporary() {
		t.Fatalf("expected permanent 404 StatusError, got %v", err)
	}
}

func TestFetchWithoutKey(t *testing.T) {
	_, err := NewClient(Options{}).Fetch(context.Background(), "https://acme.test")
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	_, err := NewClient(Options{APIKey: "k"}).Fetch(context.Background(), "::nope")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

package providers

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestStatusErrorTemporary(t *testing.T) {
	cases := map[int]bool{400: false, 401: false, 404: false, 408: true, 429: true, 500: true, 503: true}
	for code, want := range cases {
		err := &StatusError{Provider: "brand", Code: code}
		if got := err.Temporary(); got != want {
			t.Fatalf("code %d: Temporary() = %v, want %v", code, got, want)
		}
	}
}

func TestStatusErrorMessageTruncatesBody(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	msg := (&StatusError{Provider: "gemini", Code: 500, Body: string(long)}).Error()
	if len(msg) > 330 {
		t.Fatalf("message too long: %d", len(msg))
	}
}

func TestFromGoogleAPI(t *testing.T) {
	wrapped := fmt.Errorf("generate: %w", &googleapi.Error{Code: 429, Message: "quota"})
	err := FromGoogleAPI("gemini", wrapped)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 429 || !se.Temporary() {
		t.Fatalf("expected temporary StatusError, got %v", err)
	}

	plain := errors.New("boom")
	if FromGoogleAPI("gemini", plain) != plain {
		t.Fatal("expected non-googleapi error unchanged")
	}
}

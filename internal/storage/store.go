// Package storage keeps generated images and returns their public URLs.
package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore persists binary objects under slash-separated keys.
type ObjectStore interface {
	// Put stores data and returns the object's public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// KeyForURL maps a URL returned by Put back to its key.
	KeyForURL(publicURL string) (string, bool)
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

func keyFromURL(base, publicURL string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if base == "" || !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	key, err := sanitizeKey(strings.TrimPrefix(publicURL, prefix))
	if err != nil {
		return "", false
	}
	return key, true
}

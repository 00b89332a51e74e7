package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"brandmerch/internal/domain"
	"brandmerch/pkg/zip"
)

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

// MockupsZip bundles the motif and every product mockup of a session.
func (a *App) MockupsZip(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err, "internal")
		return
	}
	if len(sess.ProductImages) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "session has no product mockups yet")
		return
	}

	var assets []zip.Asset
	if domain.HasText(sess.MotifImageURL) {
		data, err := a.fetchImage(r.Context(), *sess.MotifImageURL)
		if err != nil {
			a.fail(w, r, err, "internal")
			return
		}
		assets = append(assets, zip.Asset{Filename: "motif" + path.Ext(*sess.MotifImageURL), Data: data})
	}
	for _, img := range sess.ProductImages {
		data, err := a.fetchImage(r.Context(), img.ImageURL)
		if err != nil {
			a.fail(w, r, err, "internal")
			return
		}
		name := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(img.ProductName), "-"), "-")
		if name == "" {
			name = img.ProductID
		}
		assets = append(assets, zip.Asset{Filename: "products/" + name + path.Ext(img.ImageURL), Data: data})
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mockups-%s.zip"`, sess.ID))
	w.WriteHeader(http.StatusOK)
	if err := zip.Write(w, assets, sess.UpdatedAt); err != nil {
		a.logger().Error().Err(err).Str("session_id", sess.ID).Msg("mockups: write archive")
	}
}

// fetchImage reads an image from the object store when the URL belongs to
// it and over HTTP otherwise.
func (a *App) fetchImage(ctx context.Context, url string) ([]byte, error) {
	if a.Store != nil {
		if key, ok := a.Store.KeyForURL(url); ok {
			return a.Store.Get(ctx, key)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 32<<20))
}

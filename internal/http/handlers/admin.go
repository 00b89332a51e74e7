package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"brandmerch/internal/domain"
)

type promptUpdateRequest struct {
	Template string `json:"template"`
}

type productRequest struct {
	Name         string   `json:"name"`
	BaseImageURL string   `json:"base_image_url"`
	PrintZones   []string `json:"print_zones"`
	MaxColors    int      `json:"max_colors"`
	Constraints  string   `json:"constraints"`
	Archived     bool     `json:"archived"`
	SortOrder    int      `json:"sort_order"`
}

type productDTO struct {
	ID string `json:"id"`
	productRequest
}

func (a *App) ListPrompts(w http.ResponseWriter, r *http.Request) {
	items, err := a.Prompts.List(r.Context())
	if err != nil {
		a.fail(w, r, err, "internal")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptUpdateRequest
	if err := decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	tmpl, err := a.Prompts.Update(r.Context(), chi.URLParam(r, "name"), req.Template)
	if err != nil {
		a.promptError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, tmpl)
}

func (a *App) ResetPrompt(w http.ResponseWriter, r *http.Request) {
	tmpl, err := a.Prompts.Reset(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.promptError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, tmpl)
}

func (a *App) promptError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "unknown prompt template")
		return
	}
	a.fail(w, r, err, "internal")
}

func (a *App) ListProducts(w http.ResponseWriter, r *http.Request) {
	items, err := a.Products.List(r.Context())
	if err != nil {
		a.fail(w, r, err, "internal")
		return
	}
	out := make([]productDTO, 0, len(items))
	for _, p := range items {
		out = append(out, toProductDTO(p))
	}
	a.json(w, http.StatusOK, map[string]any{"items": out})
}

func (a *App) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	if req.BaseImageURL != "" {
		if _, err := domain.ValidateWebsiteURL(req.BaseImageURL); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "base_image_url must be an http(s) url")
			return
		}
	}
	id := chi.URLParam(r, "id")
	if id == "new" {
		id = ""
	}
	saved, err := a.Products.Upsert(r.Context(), &domain.Product{
		ID:           id,
		Name:         req.Name,
		BaseImageURL: req.BaseImageURL,
		PrintZones:   req.PrintZones,
		MaxColors:    req.MaxColors,
		Constraints:  req.Constraints,
		Archived:     req.Archived,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		a.fail(w, r, err, "internal")
		return
	}
	a.json(w, http.StatusOK, toProductDTO(*saved))
}

func toProductDTO(p domain.Product) productDTO {
	zones := p.PrintZones
	if zones == nil {
		zones = []string{}
	}
	return productDTO{ID: p.ID, productRequest: productRequest{
		Name:         p.Name,
		BaseImageURL: p.BaseImageURL,
		PrintZones:   zones,
		MaxColors:    p.MaxColors,
		Constraints:  p.Constraints,
		Archived:     p.Archived,
		SortOrder:    p.SortOrder,
	}}
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"brandmerch/internal/domain"
	"brandmerch/internal/pipeline"
)

type createSessionRequest struct {
	Email     string `json:"email"`
	URL       string `json:"url"`
	SkipEmail bool   `json:"skip_email"`
}

type regenerateRequest struct {
	Regenerate bool `json:"regenerate"`
}

type sessionDTO struct {
	ID               string                `json:"id"`
	Email            string                `json:"email,omitempty"`
	URL              string                `json:"url"`
	Status           domain.Status         `json:"status"`
	StatusLabel      string                `json:"status_label"`
	Progress         int                   `json:"progress"`
	ScrapedData      *domain.ScrapedData   `json:"scraped_data"`
	Concept          *string               `json:"concept"`
	MotifDescription *string               `json:"motif_description"`
	MotifImageURL    *string               `json:"motif_image_url"`
	ProductImages    []domain.ProductImage `json:"product_images"`
	ErrorMessage     *string               `json:"error_message,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func toSessionDTO(s *domain.Session) sessionDTO {
	email := s.Email
	if domain.IsPlaceholderEmail(email) {
		email = ""
	}
	images := s.ProductImages
	if images == nil {
		images = []domain.ProductImage{}
	}
	return sessionDTO{
		ID:               s.ID,
		Email:            email,
		URL:              s.URL,
		Status:           s.Status,
		StatusLabel:      s.Status.Label(),
		Progress:         s.Status.Progress(),
		ScrapedData:      s.ScrapedData,
		Concept:          s.Concept,
		MotifDescription: s.MotifDescription,
		MotifImageURL:    s.MotifImageURL,
		ProductImages:    images,
		ErrorMessage:     s.ErrorMessage,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	sess, created, err := a.Sessions.CreateSession(r.Context(), pipeline.CreateInput{
		Email:     req.Email,
		URL:       req.URL,
		SkipEmail: req.SkipEmail,
	})
	if err != nil {
		a.fail(w, r, err, "internal")
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	a.json(w, code, toSessionDTO(sess))
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err, "internal")
		return
	}
	a.json(w, http.StatusOK, toSessionDTO(sess))
}

func (a *App) RunScrape(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Sessions.RunScrape(r.Context(), chi.URLParam(r, "id"))
	a.stageResult(w, r, sess, err)
}

func (a *App) ApproveBrand(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Sessions.ApproveBrand(r.Context(), chi.URLParam(r, "id"))
	a.stageResult(w, r, sess, err)
}

func (a *App) RunConcept(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	sess, err := a.Sessions.RunConcept(r.Context(), chi.URLParam(r, "id"), req.Regenerate)
	a.stageResult(w, r, sess, err)
}

func (a *App) RunMotif(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := decode(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	sess, err := a.Sessions.RunMotif(r.Context(), chi.URLParam(r, "id"), req.Regenerate)
	a.stageResult(w, r, sess, err)
}

func (a *App) RunProducts(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Sessions.RunProducts(r.Context(), chi.URLParam(r, "id"))
	a.stageResult(w, r, sess, err)
}

func (a *App) PatchBrand(w http.ResponseWriter, r *http.Request) {
	var patch domain.BrandPatch
	if err := decode(r, &patch); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	sess, err := a.Sessions.UpdateBrandData(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err, "internal")
		return
	}
	a.json(w, http.StatusOK, toSessionDTO(sess))
}

func (a *App) Access(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Sessions.ResumeFromLink(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		a.fail(w, r, err, "internal")
		return
	}
	a.json(w, http.StatusOK, toSessionDTO(sess))
}

func (a *App) stageResult(w http.ResponseWriter, r *http.Request, sess *domain.Session, err error) {
	if err != nil {
		a.fail(w, r, err, "processing_failed")
		return
	}
	a.json(w, http.StatusOK, toSessionDTO(sess))
}

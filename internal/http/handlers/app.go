package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
	"brandmerch/internal/middleware"
	"brandmerch/internal/pipeline"
	"brandmerch/internal/recovery"
	"brandmerch/internal/storage"
)

// Sessions is the pipeline surface used by the HTTP layer.
type Sessions interface {
	CreateSession(ctx context.Context, in pipeline.CreateInput) (*domain.Session, bool, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	RunScrape(ctx context.Context, id string) (*domain.Session, error)
	ApproveBrand(ctx context.Context, id string) (*domain.Session, error)
	RunConcept(ctx context.Context, id string, regenerate bool) (*domain.Session, error)
	RunMotif(ctx context.Context, id string, regenerate bool) (*domain.Session, error)
	RunProducts(ctx context.Context, id string) (*domain.Session, error)
	UpdateBrandData(ctx context.Context, id string, patch domain.BrandPatch) (*domain.Session, error)
	ResumeFromLink(ctx context.Context, token string) (*domain.Session, error)
}

// Prompts is the prompt administration surface.
type Prompts interface {
	List(ctx context.Context) ([]domain.PromptTemplate, error)
	Update(ctx context.Context, name, text string) (domain.PromptTemplate, error)
	Reset(ctx context.Context, name string) (domain.PromptTemplate, error)
}

type Sweeper interface {
	Run(ctx context.Context) (recovery.Result, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Sessions Sessions
	Prompts  Prompts
	Products domain.ProductRepository
	Sweeper  Sweeper
	Store    storage.ObjectStore
	DB       Pinger
	Logger   *infra.Logger
}

func (a *App) logger() *infra.Logger {
	if a.Logger == nil {
		return infra.NopLogger()
	}
	return a.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	middleware.WriteError(w, code, errCode, message)
}

// fail maps a service error to the API envelope. Unclassified errors use
// fallback as their code and are logged without leaking details.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrPrecondition):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid or expired link")
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", "session was modified concurrently, retry")
	default:
		a.logger().Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, fallback, "processing failed")
	}
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

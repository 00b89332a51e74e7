package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"brandmerch/internal/http/handlers"
	"brandmerch/internal/infra"
	"brandmerch/internal/middleware"
)

// Options configures the cross-cutting parts of the router.
type Options struct {
	JWTSecret       string
	CronSecret      string
	AllowedOrigins  []string
	RateLimitPerMin int
	// StaticDir is served under /static when the file storage driver is used.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := app.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	limit := opts.RateLimitPerMin
	if limit <= 0 {
		limit = 30
	}

	r.Route("/v1/sessions", func(r chi.Router) {
		r.With(middleware.RateLimit(limit, time.Minute)).Post("/", app.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Get("/mockups.zip", app.MockupsZip)
			r.Patch("/brand", app.PatchBrand)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(limit, time.Minute))
				r.Post("/scrape", app.RunScrape)
				r.Post("/approve", app.ApproveBrand)
				r.Post("/concept", app.RunConcept)
				r.Post("/motif", app.RunMotif)
				r.Post("/products", app.RunProducts)
			})
		})
	})

	r.Get("/v1/access/{token}", app.Access)

	r.With(middleware.CronSecret(opts.CronSecret)).Post("/v1/cron/recover", app.CronRecover)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret, middleware.RoleAdmin))
		r.Get("/prompts", app.ListPrompts)
		r.Put("/prompts/{name}", app.UpdatePrompt)
		r.Post("/prompts/{name}/reset", app.ResetPrompt)
		r.Get("/products", app.ListProducts)
		r.Put("/products/{id}", app.UpsertProduct)
	})

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	return r
}

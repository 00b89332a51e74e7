package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"brandmerch/internal/domain"
	"brandmerch/internal/http/handlers"
	"brandmerch/internal/middleware"
	"brandmerch/internal/recovery"
)

type stubSweeper struct{ calls int }

func (s *stubSweeper) Run(ctx context.Context) (recovery.Result, error) {
	s.calls++
	return recovery.Result{}, nil
}

type stubPrompts struct{}

func (stubPrompts) List(ctx context.Context) ([]domain.PromptTemplate, error) {
	return nil, nil
}

func (stubPrompts) Update(ctx context.Context, name, text string) (domain.PromptTemplate, error) {
	return domain.PromptTemplate{Name: name}, nil
}

func (stubPrompts) Reset(ctx context.Context, name string) (domain.PromptTemplate, error) {
	return domain.PromptTemplate{Name: name}, nil
}

func newRouter(sweeper *stubSweeper) http.Handler {
	app := &handlers.App{Sweeper: sweeper, Prompts: stubPrompts{}}
	return NewRouter(app, Options{JWTSecret: "jwt-secret", CronSecret: "cron-secret", AllowedOrigins: []string{"http://localhost:3000"}})
}

func serve(h http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthIsPublic(t *testing.T) {
	rr := serve(newRouter(&stubSweeper{}), http.MethodGet, "/v1/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestCronRequiresSecret(t *testing.T) {
	sweeper := &stubSweeper{}
	h := newRouter(sweeper)

	if rr := serve(h, http.MethodPost, "/v1/cron/recover", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("no secret: got %d", rr.Code)
	}
	if rr := serve(h, http.MethodPost, "/v1/cron/recover", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: got %d", rr.Code)
	}
	if rr := serve(h, http.MethodPost, "/v1/cron/recover", "cron-secret"); rr.Code != http.StatusOK {
		t.Fatalf("valid secret: got %d", rr.Code)
	}
	if sweeper.calls != 1 {
		t.Fatalf("sweeper ran %d times, want 1", sweeper.calls)
	}
}

func TestAdminRequiresAdminToken(t *testing.T) {
	h := newRouter(&stubSweeper{})

	if rr := serve(h, http.MethodGet, "/v1/admin/prompts", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: got %d", rr.Code)
	}

	viewer, err := middleware.SignJWT("jwt-secret", "ops@example.com", "viewer", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if rr := serve(h, http.MethodGet, "/v1/admin/prompts", viewer); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong role: got %d", rr.Code)
	}

	admin, err := middleware.SignJWT("jwt-secret", "ops@example.com", middleware.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if rr := serve(h, http.MethodGet, "/v1/admin/prompts", admin); rr.Code != http.StatusOK {
		t.Fatalf("admin: got %d", rr.Code)
	}
}

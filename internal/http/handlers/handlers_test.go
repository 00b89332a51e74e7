package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"brandmerch/internal/domain"
	"brandmerch/internal/pipeline"
	"brandmerch/internal/recovery"
	"brandmerch/internal/storage"
)

type stubSessions struct {
	sessions map[string]*domain.Session
	created  bool
	err      error
	gotRegen bool
	gotPatch domain.BrandPatch
}

func (s *stubSessions) lookup(id string) (*domain.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (s *stubSessions) CreateSession(ctx context.Context, in pipeline.CreateInput) (*domain.Session, bool, error) {
	if _, err := domain.ValidateWebsiteURL(in.URL); err != nil {
		return nil, false, err
	}
	sess, err := s.lookup("s1")
	return sess, s.created, err
}

func (s *stubSessions) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.lookup(id)
}

func (s *stubSessions) RunScrape(ctx context.Context, id string) (*domain.Session, error) {
	return s.lookup(id)
}

func (s *stubSessions) ApproveBrand(ctx context.Context, id string) (*domain.Session, error) {
	return s.lookup(id)
}

func (s *stubSessions) RunConcept(ctx context.Context, id string, regenerate bool) (*domain.Session, error) {
	s.gotRegen = regenerate
	return s.lookup(id)
}

func (s *stubSessions) RunMotif(ctx context.Context, id string, regenerate bool) (*domain.Session, error) {
	s.gotRegen = regenerate
	return s.lookup(id)
}

func (s *stubSessions) RunProducts(ctx context.Context, id string) (*domain.Session, error) {
	return s.lookup(id)
}

func (s *stubSessions) UpdateBrandData(ctx context.Context, id string, patch domain.BrandPatch) (*domain.Session, error) {
	s.gotPatch = patch
	if patch.Colors != nil {
		if _, err := domain.ValidateColors(patch.Colors); err != nil {
			return nil, err
		}
	}
	return s.lookup(id)
}

func (s *stubSessions) ResumeFromLink(ctx context.Context, token string) (*domain.Session, error) {
	if token != "good" {
		return nil, pipeline.ErrInvalidLink
	}
	return s.lookup("s1")
}

type stubPrompts struct{}

func (stubPrompts) List(ctx context.Context) ([]domain.PromptTemplate, error) {
	return []domain.PromptTemplate{{Name: domain.PromptConcept, Version: 2}}, nil
}

func (stubPrompts) Update(ctx context.Context, name, text string) (domain.PromptTemplate, error) {
	if name != domain.PromptConcept {
		return domain.PromptTemplate{}, domain.ErrNotFound
	}
	if text == "" {
		return domain.PromptTemplate{}, fmt.Errorf("%w: template is empty", domain.ErrValidation)
	}
	return domain.PromptTemplate{Name: name, Version: 3, Template: text}, nil
}

func (stubPrompts) Reset(ctx context.Context, name string) (domain.PromptTemplate, error) {
	return domain.PromptTemplate{Name: name, Version: 4}, nil
}

type stubSweeper struct{ res recovery.Result }

func (s stubSweeper) Run(ctx context.Context) (recovery.Result, error) { return s.res, nil }

func newTestRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/sessions", app.CreateSession)
	r.Get("/v1/sessions/{id}", app.GetSession)
	r.Post("/v1/sessions/{id}/scrape", app.RunScrape)
	r.Post("/v1/sessions/{id}/concept", app.RunConcept)
	r.Patch("/v1/sessions/{id}/brand", app.PatchBrand)
	r.Get("/v1/sessions/{id}/mockups.zip", app.MockupsZip)
	r.Get("/v1/access/{token}", app.Access)
	r.Post("/v1/cron/recover", app.CronRecover)
	r.Put("/v1/admin/prompts/{name}", app.UpdatePrompt)
	r.Get("/v1/healthz", app.Health)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func sampleSession() *domain.Session {
	return &domain.Session{ID: "s1", Email: "a@b.com", URL: "https://example.com", Status: domain.StatusConcept, Version: 3}
}

func TestCreateSessionStatusCodes(t *testing.T) {
	stub := &stubSessions{sessions: map[string]*domain.Session{"s1": sampleSession()}, created: true}
	h := newTestRouter(&App{Sessions: stub})

	rr := do(t, h, http.MethodPost, "/v1/sessions", `{"email":"a@b.com","url":"https://example.com"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d, want 201", rr.Code)
	}
	var dto map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto["status_label"] != "Design concept" || dto["progress"].(float64) != 40 {
		t.Fatalf("unexpected dto %#v", dto)
	}

	stub.created = false
	if rr := do(t, h, http.MethodPost, "/v1/sessions", `{"email":"a@b.com","url":"https://example.com"}`); rr.Code != http.StatusOK {
		t.Fatalf("duplicate create: got %d, want 200", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/v1/sessions", `{"email":"a@b.com","url":"not a url"}`)
	if rr.Code != http.StatusBadRequest || errorCode(t, rr) != "bad_request" {
		t.Fatalf("invalid url: got %d", rr.Code)
	}

	if rr := do(t, h, http.MethodPost, "/v1/sessions", `{"unknown":1}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: got %d, want 400", rr.Code)
	}
}

func TestPlaceholderEmailIsHidden(t *testing.T) {
	sess := sampleSession()
	sess.Email = domain.PlaceholderEmail()
	h := newTestRouter(&App{Sessions: &stubSessions{sessions: map[string]*domain.Session{"s1": sess}}})

	rr := do(t, h, http.MethodGet, "/v1/sessions/s1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "placeholder.invalid") {
		t.Fatalf("placeholder email leaked: %s", rr.Body.String())
	}
}

func TestStageErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind string
	}{
		{fmt.Errorf("%w: brand data is missing", domain.ErrPrecondition), http.StatusBadRequest, "bad_request"},
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrConflict, http.StatusConflict, "conflict"},
		{errors.New("gemini exploded"), http.StatusInternalServerError, "processing_failed"},
		{context.DeadlineExceeded, http.StatusInternalServerError, "processing_failed"},
	}
	for _, tc := range cases {
		h := newTestRouter(&App{Sessions: &stubSessions{err: tc.err}})
		rr := do(t, h, http.MethodPost, "/v1/sessions/s1/concept", "")
		if rr.Code != tc.code {
			t.Fatalf("%v: got %d, want %d", tc.err, rr.Code, tc.code)
		}
		if got := errorCode(t, rr); got != tc.kind {
			t.Fatalf("%v: code %q, want %q", tc.err, got, tc.kind)
		}
	}
}

func TestRunConceptPassesRegenerate(t *testing.T) {
	stub := &stubSessions{sessions: map[string]*domain.Session{"s1": sampleSession()}}
	h := newTestRouter(&App{Sessions: stub})
	if rr := do(t, h, http.MethodPost, "/v1/sessions/s1/concept", `{"regenerate":true}`); rr.Code != http.StatusOK {
		t.Fatalf("concept: got %d", rr.Code)
	}
	if !stub.gotRegen {
		t.Fatal("regenerate flag not forwarded")
	}
}

func TestPatchBrandRejectsInvalidColors(t *testing.T) {
	stub := &stubSessions{sessions: map[string]*domain.Session{"s1": sampleSession()}}
	h := newTestRouter(&App{Sessions: stub})

	rr := do(t, h, http.MethodPatch, "/v1/sessions/s1/brand", `{"colors":["#ZZZZZZ"]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid colors: got %d, want 400", rr.Code)
	}
	rr = do(t, h, http.MethodPatch, "/v1/sessions/s1/brand", `{"colors":["#111111","#222222"],"title":"New"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("valid patch: got %d", rr.Code)
	}
	if stub.gotPatch.Title == nil || *stub.gotPatch.Title != "New" {
		t.Fatalf("title not forwarded: %#v", stub.gotPatch)
	}
}

func TestAccessRejectsBadToken(t *testing.T) {
	h := newTestRouter(&App{Sessions: &stubSessions{sessions: map[string]*domain.Session{"s1": sampleSession()}}})
	if rr := do(t, h, http.MethodGet, "/v1/access/good", ""); rr.Code != http.StatusOK {
		t.Fatalf("good token: got %d", rr.Code)
	}
	rr := do(t, h, http.MethodGet, "/v1/access/bad", "")
	if rr.Code != http.StatusUnauthorized || errorCode(t, rr) != "unauthorized" {
		t.Fatalf("bad token: got %d", rr.Code)
	}
}

func TestMockupsZip(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), "http://cdn.test/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	motifURL, _ := store.Put(ctx, "sessions/s1/motif-1.png", []byte("motif"), "image/png")
	mugURL, _ := store.Put(ctx, "sessions/s1/products/p1.png", []byte("mug"), "image/png")

	sess := sampleSession()
	sess.Status = domain.StatusComplete
	sess.MotifImageURL = &motifURL
	sess.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sess.ProductImages = []domain.ProductImage{{ProductID: "p1", ProductName: "Coffee Mug", ImageURL: mugURL}}
	h := newTestRouter(&App{Sessions: &stubSessions{sessions: map[string]*domain.Session{"s1": sess}}, Store: store})

	rr := do(t, h, http.MethodGet, "/v1/sessions/s1/mockups.zip", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("zip: got %d: %s", rr.Code, rr.Body.String())
	}
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["motif.png"] || !names["products/coffee-mug.png"] {
		t.Fatalf("unexpected entries %v", names)
	}

	empty := sampleSession()
	h = newTestRouter(&App{Sessions: &stubSessions{sessions: map[string]*domain.Session{"s1": empty}}, Store: store})
	if rr := do(t, h, http.MethodGet, "/v1/sessions/s1/mockups.zip", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("no products: got %d, want 400", rr.Code)
	}
}

func TestCronRecover(t *testing.T) {
	h := newTestRouter(&App{Sweeper: stubSweeper{res: recovery.Result{Found: 3, Sent: 2, Failed: 1}}})
	rr := do(t, h, http.MethodPost, "/v1/cron/recover", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("cron: got %d", rr.Code)
	}
	var res recovery.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Found != 3 || res.Sent != 2 || res.Failed != 1 {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestUpdatePromptErrors(t *testing.T) {
	h := newTestRouter(&App{Prompts: stubPrompts{}})
	if rr := do(t, h, http.MethodPut, "/v1/admin/prompts/nope", `{"template":"x"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown prompt: got %d, want 404", rr.Code)
	}
	if rr := do(t, h, http.MethodPut, "/v1/admin/prompts/concept", `{"template":""}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty template: got %d, want 400", rr.Code)
	}
	if rr := do(t, h, http.MethodPut, "/v1/admin/prompts/concept", `{"template":"Hello {{title}}"}`); rr.Code != http.StatusOK {
		t.Fatalf("update: got %d", rr.Code)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("down") }

func TestHealth(t *testing.T) {
	if rr := do(t, newTestRouter(&App{}), http.MethodGet, "/v1/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("health: got %d", rr.Code)
	}
	if rr := do(t, newTestRouter(&App{DB: failingPinger{}}), http.MethodGet, "/v1/healthz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded health: got %d", rr.Code)
	}
}

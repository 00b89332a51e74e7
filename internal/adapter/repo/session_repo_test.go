package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"brandmerch/internal/domain"
	"brandmerch/internal/sqlinline"
)

var testTime = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func sessionValues(id, status string, version int64, scraped []byte, extra ...any) []any {
	concept := "bold"
	values := []any{
		id, "a@b.com", "https://acme.test", status, scraped,
		&concept, (*string)(nil), (*string)(nil),
		[]byte(`[{"product_id":"p1","product_name":"Mug","image_url":"u","print_zones":["front"]}]`),
		(*string)(nil), version, (*time.Time)(nil), testTime, testTime,
	}
	return append(values, extra...)
}

func TestCreateWithTaskNewSession(t *testing.T) {
	exec := &stubExecutor{rows: []stubRow{{values: sessionValues("s1", "scraping", 1, nil, true)}}}
	repo := NewSessionRepository(exec)

	got, created, err := repo.CreateWithTask(context.Background(), &domain.Session{Email: "a@b.com", URL: "https://acme.test"}, domain.StageScrape)
	if err != nil {
		t.Fatalf("CreateWithTask error: %v", err)
	}
	if !created {
		t.Fatal("expected created=true")
	}
	if got.ID != "s1" || got.Status != domain.StatusScraping {
		t.Fatalf("unexpected session %+v", got)
	}
	if exec.calls[0].query != sqlinline.QInsertSessionWithTask {
		t.Fatalf("unexpected query %q", exec.calls[0].query)
	}
	if exec.calls[0].args[3] != "scrape" {
		t.Fatalf("expected first stage arg scrape, got %v", exec.calls[0].args[3])
	}
	if len(got.ProductImages) != 1 || got.ProductImages[0].ProductName != "Mug" {
		t.Fatalf("product images not decoded: %+v", got.ProductImages)
	}
}

func TestCreateWithTaskExistingSession(t *testing.T) {
	exec := &stubExecutor{rows: []stubRow{{values: sessionValues("s1", "concept", 4, nil, false)}}}
	repo := NewSessionRepository(exec)

	got, created, err := repo.CreateWithTask(context.Background(), &domain.Session{Email: "a@b.com", URL: "https://acme.test"}, domain.StageScrape)
	if err != nil {
		t.Fatalf("CreateWithTask error: %v", err)
	}
	if created {
		t.Fatal("expected created=false for an existing pair")
	}
	if got.Status != domain.StatusConcept {
		t.Fatalf("expected stored status, got %s", got.Status)
	}
}

func TestCreateWithTaskConcurrentInsertFallsBackToLookup(t *testing.T) {
	exec := &stubExecutor{rows: []stubRow{
		{err: errNoRows()},
		{values: sessionValues("s9", "scraping", 1, nil)},
	}}
	repo := NewSessionRepository(exec)

	got, created, err := repo.CreateWithTask(context.Background(), &domain.Session{Email: "a@b.com", URL: "https://acme.test"}, domain.StageScrape)
	if err != nil {
		t.Fatalf("CreateWithTask error: %v", err)
	}
	if created || got.ID != "s9" {
		t.Fatalf("expected existing s9, got %+v created=%v", got, created)
	}
	if exec.calls[1].query != sqlinline.QSelectSessionByEmailURL {
		t.Fatalf("expected lookup by email/url, got %q", exec.calls[1].query)
	}
}

func TestGetNotFound(t *testing.T) {
	repo := NewSessionRepository(&stubExecutor{})
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetDecodesScrapedData(t *testing.T) {
	raw, _ := json.Marshal(domain.ScrapedData{Title: "Acme", Colors: []string{"#112233", "#445566"}})
	repo := NewSessionRepository(&stubExecutor{rows: []stubRow{{values: sessionValues("s1", "awaiting_approval", 2, raw)}}})

	got, err := repo.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ScrapedData == nil || got.ScrapedData.Title != "Acme" || len(got.ScrapedData.Colors) != 2 {
		t.Fatalf("scraped data not decoded: %+v", got.ScrapedData)
	}
	if domain.StringValue(got.Concept) != "bold" {
		t.Fatalf("concept not scanned: %v", got.Concept)
	}
}

func TestGetRejectsUnknownStatus(t *testing.T) {
	repo := NewSessionRepository(&stubExecutor{rows: []stubRow{{values: sessionValues("s1", "bogus", 1, nil)}}})
	if _, err := repo.Get(context.Background(), "s1"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestUpdateVersionMismatchIsConflict(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewSessionRepository(exec)

	_, err := repo.Update(context.Background(), &domain.Session{ID: "s1", Version: 3, Status: domain.StatusConcept})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	args := exec.calls[0].args
	if args[1] != int64(3) {
		t.Fatalf("expected version arg 3, got %v", args[1])
	}
	if args[3].([]byte) != nil {
		t.Fatalf("expected NULL scraped data, got %s", args[3])
	}
	if string(args[7].([]byte)) != "[]" {
		t.Fatalf("expected empty product list, got %s", args[7])
	}
}

func TestUpdateReturnsNewVersion(t *testing.T) {
	exec := &stubExecutor{rows: []stubRow{{values: sessionValues("s1", "concept", 4, nil)}}}
	repo := NewSessionRepository(exec)

	out, err := repo.Update(context.Background(), &domain.Session{
		ID: "s1", Version: 3, Status: domain.StatusConcept,
		ScrapedData: &domain.ScrapedData{Title: "Acme"},
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if out.Version != 4 {
		t.Fatalf("expected version 4, got %d", out.Version)
	}
	if !strings.Contains(string(exec.calls[0].args[3].([]byte)), `"title":"Acme"`) {
		t.Fatalf("scraped data not encoded: %s", exec.calls[0].args[3])
	}
}

func TestListStale(t *testing.T) {
	exec := &stubExecutor{listRows: [][]any{
		sessionValues("s1", "concept", 2, nil),
		sessionValues("s2", "motif", 5, nil),
	}}
	repo := NewSessionRepository(exec)

	before := testTime.Add(-24 * time.Hour)
	got, err := repo.ListStale(context.Background(), []domain.Status{domain.StatusConcept, domain.StatusMotif}, before, 50)
	if err != nil {
		t.Fatalf("ListStale error: %v", err)
	}
	if len(got) != 2 || got[1].Status != domain.StatusMotif {
		t.Fatalf("unexpected sessions %+v", got)
	}
	statuses := exec.calls[0].args[0].([]string)
	if len(statuses) != 2 || statuses[0] != "concept" {
		t.Fatalf("unexpected status args %v", statuses)
	}
}

func TestMarkNotified(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewSessionRepository(exec)
	if err := repo.MarkNotified(context.Background(), "s1", testTime); err != nil {
		t.Fatalf("MarkNotified error: %v", err)
	}

	missing := NewSessionRepository(&stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")})
	if err := missing.MarkNotified(context.Background(), "s1", testTime); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

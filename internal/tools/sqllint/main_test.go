package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLintTargetsFlagsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package q\n\nconst QGood = `--sql 0b7f3f1e-3c44-4a8c-9a62-1d6f0c1f9a10\nSELECT 1`\n\nconst QMissing = `SELECT 2`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst QDup = `--sql 0b7f3f1e-3c44-4a8c-9a62-1d6f0c1f9a10\nUPDATE t SET x = 1`\n\nconst Label = \"not sql\"\n")

	violations, err := lintTargets([]string{dir})
	if err != nil {
		t.Fatalf("lintTargets: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(violations), violations)
	}
	byName := map[string]violation{}
	for _, v := range violations {
		byName[v.name] = v
	}
	if !strings.Contains(byName["QMissing"].message, "missing") {
		t.Fatalf("QMissing: %+v", byName["QMissing"])
	}
	if !strings.Contains(byName["QDup"].message, "QGood") {
		t.Fatalf("QDup: %+v", byName["QDup"])
	}
}

func TestLintTargetsCleanTree(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package q\n\nconst QOne = `--sql 1f2e3d4c-5b6a-4789-8abc-def012345678\nDELETE FROM t`\n")
	violations, err := lintTargets([]string{dir})
	if err != nil {
		t.Fatalf("lintTargets: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("unexpected violations %+v", violations)
	}
}

func TestRepositoryQueriesAreMarked(t *testing.T) {
	violations, err := lintTargets([]string{"../../sqlinline"})
	if err != nil {
		t.Fatalf("lintTargets: %v", err)
	}
	for _, v := range violations {
		t.Errorf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
	}
}

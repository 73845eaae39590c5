package testutil

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// RepoRoot walks up from the test's working directory to the directory
// holding go.mod.
func RepoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("testutil: getwd: %v", err)
	}
	for dir := wd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		if filepath.Dir(dir) == dir {
			t.Fatalf("testutil: no go.mod above %s", wd)
		}
	}
}

// ApplyMigrations runs the repository's *.up.sql files in name order
// straight through the pool, so tests need no migrate binary.
//
// Postcondition: The schema matches the latest migration.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(RepoRoot(t), "migrations", "*.up.sql"))
	if err != nil {
		t.Fatalf("testutil: listing migrations: %v", err)
	}
	slices.Sort(files)
	for _, f := range files {
		sql, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("testutil: %v", err)
		}
		if _, err := pc.RawPool.Exec(context.Background(), string(sql)); err != nil {
			t.Fatalf("testutil: applying %s: %v", filepath.Base(f), err)
		}
	}
}

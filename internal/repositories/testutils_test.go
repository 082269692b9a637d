package repositories_test

import (
	"context"
	_ "embed"
	"fmt"
	"github.com/myrjola/decisionverse/internal/sqlite"
	"github.com/myrjola/decisionverse/internal/testhelpers"
	"io"
	"os"
	"path/filepath"
	"testing"
)

//go:embed testdata/fixtures.sql
var testFixtures string

// newTestDB creates a new in-memory database with the fixtures applied.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()
	return newTestDBAt(t, ":memory:")
}

// newTestFileDB creates a file backed database for tests with concurrent readers and writers.
//
// Shared cache in-memory databases use table level locks that fail instead of waiting.
func newTestFileDB(t *testing.T) *sqlite.Database {
	t.Helper()
	return newTestDBAt(t, filepath.Join(t.TempDir(), "test.sqlite"))
}

func newTestDBAt(t *testing.T, url string) *sqlite.Database {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	db, err := sqlite.NewDatabase(ctx, url, testhelpers.NewLogger(io.Discard))
	if err != nil {
		cancel()
		t.Fatal(err)
	}

	if _, err = db.ReadWrite.ExecContext(ctx, testFixtures); err != nil {
		cancel()
		t.Fatal(err)
	}

	t.Cleanup(func() {
		cancel()
		if err = db.Close(); err != nil {
			t.Error(err)
		}
	})

	return db
}

// newBenchmarkDB creates a file backed database for benchmarking purposes.
func newBenchmarkDB(b *testing.B) *sqlite.Database {
	b.Helper()
	var (
		benchmarkDBPath = "./benchmark.sqlite"
		ctx, cancel     = context.WithCancel(context.Background())
	)

	db, err := sqlite.NewDatabase(ctx, benchmarkDBPath, testhelpers.NewLogger(io.Discard))
	if err != nil {
		cancel()
		b.Fatal(err)
	}

	b.Cleanup(func() {
		cancel()
		if err = db.Close(); err != nil {
			b.Error(err)
		}
		_ = os.Remove(benchmarkDBPath)
		_ = os.Remove(fmt.Sprintf("%s-shm", benchmarkDBPath))
		_ = os.Remove(fmt.Sprintf("%s-wal", benchmarkDBPath))
	})

	return db
}

// Package testutil provides shared test helpers for setting up data roots and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/quackstagram/internal/flatfile"
	"github.com/starford/quackstagram/internal/sqlstore"
	"github.com/starford/quackstagram/internal/storage"
)

// TestEngine creates a temporary data root with serialized writes.
func TestEngine(t *testing.T) *storage.Engine {
	t.Helper()
	e, err := storage.NewEngine(t.TempDir(), storage.WithSerializedWrites())
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// TestFlatFile creates a flat-file backend over a temporary data root.
func TestFlatFile(t *testing.T) (*storage.Engine, *flatfile.Backend) {
	t.Helper()
	e := TestEngine(t)
	b, err := flatfile.New(e, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e, b
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
// Image bytes go under images.
func TestDB(t *testing.T, images *storage.Engine) *sqlstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "quack-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := sqlstore.Open(dbFile.Name(), images, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSession creates the session pointer of e's data root.
func TestSession(t *testing.T, e *storage.Engine) *flatfile.Session {
	t.Helper()
	s, err := flatfile.NewSession(e)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

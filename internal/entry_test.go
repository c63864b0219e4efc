package internal

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/quackstagram/internal/apperr"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.App.LogLevel = slog.LevelInfo
	cfg.Storage.Root = t.TempDir()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "quack.db")
	return cfg
}

func TestOpenRequiresConfig(t *testing.T) {
	if _, err := Open(); err == nil {
		t.Fatal("Open without config should fail")
	}
}

func TestOpenFlatFileAndMirror(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	var logs bytes.Buffer

	app, err := Open(WithConfig(cfg), WithLogOutput(&logs))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer app.Close()

	if _, err := os.Stat(filepath.Join(cfg.Storage.Root, "data", "credentials.txt")); err != nil {
		t.Errorf("credentials file not created: %v", err)
	}

	legacy := []byte("bob:secret:hi\n")
	if err := os.WriteFile(filepath.Join(cfg.Storage.Root, "data", "credentials.txt"), legacy, 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := app.MigrateCredentials(ctx)
	if err != nil || n != 1 {
		t.Fatalf("MigrateCredentials = %d, %v", n, err)
	}
	if _, err := app.Service.Login(ctx, "bob", "secret"); err != nil {
		t.Fatalf("Login after migration: %v", err)
	}

	res, err := app.RunMirror(ctx, false)
	if err != nil {
		t.Fatalf("RunMirror: %v", err)
	}
	if len(res.Synced) == 0 {
		t.Error("mirror synced nothing")
	}

	// The sqlite backend sees the mirrored account and shares the session.
	cfg.Storage.Backend = BackendSQLite
	sqlApp, err := Open(WithConfig(cfg), WithLogOutput(&logs))
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer sqlApp.Close()
	if _, err := sqlApp.Service.Authenticate(ctx, "bob", "secret"); err != nil {
		t.Errorf("Authenticate via sqlite: %v", err)
	}
	if u, err := sqlApp.Service.CurrentUser(); err != nil || u != "bob" {
		t.Errorf("CurrentUser = %q, %v", u, err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("migrated legacy credentials")) {
		t.Errorf("migration not logged: %s", logs.String())
	}
}

func TestRunMirrorRefusesSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage.Backend = BackendSQLite

	app, err := Open(WithConfig(cfg), WithLogOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer app.Close()

	if _, err := app.Service.Register(ctx, "carol", "pw", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := app.RunMirror(ctx, false); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("RunMirror on sqlite backend = %v", err)
	}
	if _, err := app.Service.Authenticate(ctx, "carol", "pw"); err != nil {
		t.Errorf("account lost after refused mirror: %v", err)
	}
}

package internal

import (
	"os"
	"path/filepath"
	"testing"

	pkgconfig "github.com/starford/quackstagram/pkg/config"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if !cfg.Storage.SerializeWrites {
		t.Error("default config should serialize writes")
	}
}

func TestStorageConfig_EmptyBackendDefaultsFlatFile(t *testing.T) {
	cfg := StorageConfig{Root: "."}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty backend should default: %v", err)
	}
	if cfg.Backend != BackendFlatFile {
		t.Errorf("backend = %q, want %q", cfg.Backend, BackendFlatFile)
	}
}

func TestStorageConfig_InvalidBackend(t *testing.T) {
	cfg := StorageConfig{Backend: "postgres", Root: "."}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail validation")
	}
}

func TestStorageConfig_RootRequired(t *testing.T) {
	cfg := StorageConfig{Backend: BackendFlatFile}
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty root should fail validation")
	}
}

func TestFullConfig_SQLitePathRequiredForSQLite(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sqlite path is unused by the flatfile backend: %v", err)
	}
	cfg.Storage.Backend = BackendSQLite
	if err := cfg.Validate(); err == nil {
		t.Fatal("sqlite backend without path should fail")
	}
}

func TestLoadYAMLWithEnv(t *testing.T) {
	t.Setenv("QUACK_ROOT", "/srv/quack")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "app:\n  log_level: debug\nstorage:\n  backend: sqlite\n  root: ${QUACK_ROOT}\nsqlite:\n  path: q.db\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Root != "/srv/quack" || cfg.Storage.Backend != BackendSQLite {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if !cfg.Storage.SerializeWrites {
		t.Error("unset serialize_writes should keep the default")
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Storage.Backend != BackendFlatFile {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
}

package internal

import (
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Storage backends.
const (
	BackendFlatFile = "flatfile"
	BackendSQLite   = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.Storage.Backend == BackendSQLite {
		return c.SQLite.Validate()
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// StorageConfig selects the backend and the data root.
//
// Root holds data/ and img/ whatever the backend: the session pointer and
// image bytes always live there.
type StorageConfig struct {
	Backend         string `yaml:"backend"`
	Root            string `yaml:"root"`
	SerializeWrites bool   `yaml:"serialize_writes"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendFlatFile
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFlatFile, BackendSQLite)),
		validation.Field(&c.Root, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelWarn,
		},
		Storage: StorageConfig{
			Backend:         BackendFlatFile,
			Root:            ".",
			SerializeWrites: true,
		},
		SQLite: SQLiteConfig{
			Path: "./quackstagram.db",
		},
	}
}

package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/aishow/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" toml:"app"`
	Library LibraryConfig     `yaml:"library" toml:"library"`
	SQLite  SQLiteConfig      `yaml:"sqlite" toml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LibraryConfig describes the image library directory and how files in it
// are handled.
type LibraryConfig struct {
	Path           string        `yaml:"path" toml:"path"`
	TempMaxAge     time.Duration `yaml:"temp_max_age" toml:"temp_max_age"`
	Watch          bool          `yaml:"watch" toml:"watch"`
	ThumbnailSize  int           `yaml:"thumbnail_size" toml:"thumbnail_size"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.TempMaxAge, validation.Min(time.Minute)),
		validation.Field(&c.ThumbnailSize, validation.Min(16), validation.Max(2048)),
		validation.Field(&c.MaxUploadBytes, validation.Min(int64(1024))),
	)
}

// UploadsPath returns the directory holding original uploads.
func (c *LibraryConfig) UploadsPath() string {
	return filepath.Join(c.Path, storage.UploadsDir)
}

// ThumbnailsPath returns the directory holding rendered thumbnails.
func (c *LibraryConfig) ThumbnailsPath() string {
	return filepath.Join(c.Path, storage.ThumbnailsDir)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Library: LibraryConfig{
			Path:           "./library",
			TempMaxAge:     24 * time.Hour,
			ThumbnailSize:  200,
			MaxUploadBytes: 50 << 20,
		},
		SQLite: SQLiteConfig{
			Path: "./aishow.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

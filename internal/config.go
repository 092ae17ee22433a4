package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vertext/internal/format"
	"github.com/starford/vertext/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Prefs   PrefsConfig       `yaml:"prefs"`
	Editor  EditorConfig      `yaml:"editor"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Prefs.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
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

// StorageConfig holds the directory documents are opened from and saved to.
type StorageConfig struct {
	Root  string `yaml:"root"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// PrefsConfig holds the SQLite preference database location.
type PrefsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the preference store configuration.
func (c *PrefsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// EditorConfig holds editing defaults.
//
// LineBreak is inserted on Enter in frontmatter documents instead of the
// surface's native line break; empty leaves Enter to the surface.
// StatsThrottle bounds how often word counts are broadcast and WatchSettle
// how long file events are coalesced.
type EditorConfig struct {
	SaveFormat    string        `yaml:"save_format"`
	Direction     string        `yaml:"direction"`
	Theme         string        `yaml:"theme"`
	LineBreak     string        `yaml:"line_break"`
	StatsThrottle time.Duration `yaml:"stats_throttle"`
	WatchSettle   time.Duration `yaml:"watch_settle"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SaveFormat, validation.Required, validation.In("md", "markdown", "frontmatter", "txt", "tagged")),
		validation.Field(&c.Direction, validation.Required, validation.In(string(models.DirectionRTL), string(models.DirectionLTR))),
		validation.Field(&c.Theme, validation.Required,
			validation.In(string(models.ThemeLight), string(models.ThemeDark), string(models.ThemePaper))),
		validation.Field(&c.LineBreak, validation.In("\n", "\r\n")),
		validation.Field(&c.StatsThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.WatchSettle, validation.Min(time.Duration(0))),
	)
}

// Format returns the configured default save format.
func (c *EditorConfig) Format() format.Format {
	f, err := format.ParseName(c.SaveFormat)
	if err != nil {
		return format.Frontmatter
	}
	return f
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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
		Storage: StorageConfig{
			Root:  "./documents",
			Watch: true,
		},
		Prefs: PrefsConfig{
			Path: "./vertext.db",
		},
		Editor: EditorConfig{
			SaveFormat:    "md",
			Direction:     string(models.DirectionRTL),
			Theme:         string(models.ThemeLight),
			LineBreak:     "\n",
			StatsThrottle: 500 * time.Millisecond,
			WatchSettle:   150 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

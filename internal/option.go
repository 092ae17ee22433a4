package internal

import (
	"io"
	"log/slog"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	version   string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets where the JSON log is written. Defaults to stdout for
// the server and stderr for the MCP transport.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

func (a *application) logger(fallback io.Writer) *slog.Logger {
	w := a.logOutput
	if w == nil {
		w = fallback
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

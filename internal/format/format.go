// Package format converts between a models.Document and its two on-disk
// encodings: the single tag line format and YAML frontmatter.
//
// The package does no I/O. Parsing is lenient and never fails: text that does
// not carry a recognisable envelope comes back as plain body with empty meta.
package format

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/vertext/internal/models"
)

// Format selects an on-disk encoding.
type Format int

const (
	// Tagged is the "[label]=value | ..." first-line encoding, by convention .txt.
	Tagged Format = iota
	// Frontmatter is a YAML block between "---" lines, by convention .md.
	Frontmatter
)

func (f Format) String() string {
	switch f {
	case Tagged:
		return "txt"
	case Frontmatter:
		return "md"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Ext returns the conventional file extension including the dot.
func (f Format) Ext() string {
	return "." + f.String()
}

// ParseName maps "txt"/"tagged" and "md"/"markdown"/"frontmatter" to a Format.
func ParseName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "txt", "tagged":
		return Tagged, nil
	case "md", "markdown", "frontmatter":
		return Frontmatter, nil
	}
	return 0, fmt.Errorf("format: unknown format %q", name)
}

// Detect picks the format from the extension of path, or fallback when the
// extension is not one of ours.
func Detect(path string, fallback Format) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return Frontmatter
	case ".txt":
		return Tagged
	}
	return fallback
}

// Result is the outcome of parsing stored text.
type Result struct {
	Meta    models.Meta
	Content string
	// HasMeta is false when no envelope was found (or it could not be decoded)
	// and Content holds the whole input.
	HasMeta bool
	// Diagnostic is set when an envelope was present but undecodable.
	Diagnostic error
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock sets the clock used for default dates.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// WithLogger sets the logger that receives frontmatter diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

// WithFallbackHook registers fn to be called for every undecodable envelope.
func WithFallbackHook(fn func(Format, error)) Option {
	return func(c *Codec) {
		c.onFallback = fn
	}
}

// Codec parses and serializes documents. The zero value is not usable; call New.
type Codec struct {
	now        func() time.Time
	logger     *slog.Logger
	onFallback func(Format, error)
}

// New returns a Codec with the given options applied.
func New(opts ...Option) *Codec {
	c := &Codec{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parse splits raw into metadata and body according to f. When an envelope
// was found, a missing title and date are filled with defaults.
func (c *Codec) Parse(raw string, f Format) Result {
	res := c.Decode(raw, f)
	if res.HasMeta {
		c.fillDefaults(&res.Meta)
	}
	return res
}

// Decode is Parse without the defaults: missing fields stay empty, so the
// caller can apply its own fallback chain.
func (c *Codec) Decode(raw string, f Format) Result {
	var res Result
	switch f {
	case Frontmatter:
		res = parseFrontmatter(raw)
	default:
		res = parseTagged(raw)
	}

	if res.Diagnostic != nil {
		c.logger.Warn("format: metadata block undecodable, keeping text as body",
			slog.String("format", f.String()),
			slog.String("error", res.Diagnostic.Error()))
		if c.onFallback != nil {
			c.onFallback(f, res.Diagnostic)
		}
	}
	return res
}

// Serialize renders doc in format f.
func (c *Codec) Serialize(doc models.Document, f Format) (string, error) {
	switch f {
	case Frontmatter:
		return serializeFrontmatter(doc.Meta, doc.Content)
	case Tagged:
		return serializeTagged(doc.Meta, doc.Content), nil
	}
	return "", fmt.Errorf("format: serialize: unknown format %d", int(f))
}

func (c *Codec) fillDefaults(m *models.Meta) {
	if m.Title == "" {
		m.Title = models.UntitledTitle
	}
	if m.Date == "" {
		m.Date = c.now().Format(time.RFC3339)
	}
	if len(m.Categories) == 0 {
		m.Categories = nil
	}
}

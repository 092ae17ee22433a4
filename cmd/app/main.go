package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vertext/internal"
	"github.com/starford/vertext/internal/format"
	"github.com/starford/vertext/internal/models"
	"github.com/starford/vertext/internal/wordcount"
	pkgconfig "github.com/starford/vertext/pkg/config"
)

var version = "dev"

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

// convert re-encodes a document, picking both formats from the extensions.
func convert(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return cli.Exit("usage: vertext convert <in> <out>", 2)
	}
	in, out := cmd.Args().Get(0), cmd.Args().Get(1)

	words, err := convertFile(in, out, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "%s -> %s (%d words)\n", in, out, words)
	return nil
}

// convertFile fills missing metadata the way opening in the editor does and
// writes in to out. It returns the body word count.
func convertFile(in, out string, now time.Time) (int, error) {
	raw, err := os.ReadFile(in)
	if err != nil {
		return 0, fmt.Errorf("convert: %w", err)
	}
	codec := format.New(format.WithClock(func() time.Time { return now }))
	res := codec.Decode(string(raw), format.Detect(in, format.Tagged))
	meta := res.Meta
	meta.FillMissing(strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)), now)

	text, err := codec.Serialize(models.Document{Meta: meta, Content: res.Content},
		format.Detect(out, format.Frontmatter))
	if err != nil {
		return 0, fmt.Errorf("convert: %w", err)
	}
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return 0, fmt.Errorf("convert: %w", err)
	}
	return wordcount.Count(res.Content), nil
}

// count prints the word count of a document body, metadata excluded.
func count(_ context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return cli.Exit("usage: vertext count <file>", 2)
	}
	in := cmd.Args().First()
	raw, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	res := format.New().Decode(string(raw), format.Detect(in, format.Tagged))
	fmt.Fprintln(cmd.Root().Writer, wordcount.Count(res.Content))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "vertext",
		Usage:   "Vertical Chinese text editor host with tagged and frontmatter document formats",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP editing host",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the format tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:      "convert",
				Usage:     "Re-encode a document between .txt and .md",
				ArgsUsage: "<in> <out>",
				Action:    convert,
			},
			{
				Name:      "count",
				Usage:     "Print the word count of a document",
				ArgsUsage: "<file>",
				Action:    count,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

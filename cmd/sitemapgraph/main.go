package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kotylevskiy/sitemapgraph"
)

// cliConfig is the shape of an optional --config YAML defaults file; flags
// passed on the command line override whatever it sets.
type cliConfig struct {
	Format    string   `yaml:"format"`
	NoRobots  bool     `yaml:"no_robots"`
	NoKnown   bool     `yaml:"no_known"`
	StripURL  bool     `yaml:"strip_url"`
	UserAgent string   `yaml:"user_agent"`
	KnownPath []string `yaml:"extra_known_paths"`
}

func main() {
	var (
		format     string
		noRobots   bool
		noKnown    bool
		stripURL   bool
		verbose    int
		logFile    string
		configPath string
	)

	root := &cobra.Command{
		Use:          "sitemapgraph",
		Short:        "Discover and inspect a website's sitemap graph",
		SilenceUsage: true,
	}

	lsCmd := &cobra.Command{
		Use:   "ls <url>",
		Short: "Fetch and list a site's sitemaps and pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCLIConfig(configPath)
			if err != nil {
				return err
			}
			applyConfigDefaults(cfg, cmd.Flags().Changed, &format, &noRobots, &noKnown, &stripURL)

			logger := newCLILogger(verbose, logFile)
			opts := sitemapgraph.Options{
				UseRobots:     sitemapgraph.BoolPtr(!noRobots),
				UseKnownPaths: sitemapgraph.BoolPtr(!noKnown),
				Logger:        logger,
			}
			if cfg != nil && cfg.UserAgent != "" {
				client := sitemapgraph.NewHTTPClient()
				client.UserAgent = cfg.UserAgent
				opts.WebClient = client
			}
			if cfg != nil {
				opts.ExtraKnownPaths = cfg.KnownPath
			}

			root, err := sitemapgraph.SitemapTreeForHomepage(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			defer root.Close()

			stripPrefix := ""
			if stripURL {
				stripPrefix = root.URL
			}

			switch format {
			case "pages":
				return outputPages(os.Stdout, root, stripPrefix)
			case "tabtree":
				return outputSitemapNested(os.Stdout, root, stripPrefix, 0)
			default:
				return fmt.Errorf("unsupported format %q (use tabtree or pages)", format)
			}
		},
	}

	flags := lsCmd.Flags()
	flags.StringVarP(&format, "format", "f", "tabtree", "Output format: tabtree or pages")
	flags.BoolVarP(&noRobots, "no-robots", "r", false, "Don't discover sitemaps through robots.txt")
	flags.BoolVarP(&noKnown, "no-known", "k", false, "Don't discover sitemaps through well-known paths")
	flags.BoolVarP(&stripURL, "strip-url", "u", false, "Strip the homepage prefix from printed URLs")
	flags.CountVarP(&verbose, "verbose", "v", "Raise log verbosity (-v info, -vv debug)")
	flags.StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	flags.StringVar(&configPath, "config", "", "Optional YAML file with CLI defaults")

	root.AddCommand(lsCmd)

	ctx := context.Background()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadCLIConfig(path string) (*cliConfig, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading --config %s: %w", path, err)
	}
	var cfg cliConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing --config %s: %w", path, err)
	}
	return &cfg, nil
}

// applyConfigDefaults fills any flag not passed on the command line (as
// reported by changed) from cfg, so flags explicitly passed still win.
func applyConfigDefaults(cfg *cliConfig, changed func(name string) bool, format *string, noRobots, noKnown, stripURL *bool) {
	if cfg == nil {
		return
	}
	if !changed("format") && cfg.Format != "" {
		*format = cfg.Format
	}
	if !changed("no-robots") && cfg.NoRobots {
		*noRobots = true
	}
	if !changed("no-known") && cfg.NoKnown {
		*noKnown = true
	}
	if !changed("strip-url") && cfg.StripURL {
		*stripURL = true
	}
}

func newCLILogger(verbose int, logFile string) *slog.Logger {
	level := slog.LevelError
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}

	out := os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			out = f
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func stripURLPrefix(u, prefix string) string {
	trimmed := strings.TrimPrefix(u, prefix)
	if prefix != "" && !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return trimmed
}

func outputSitemapNested(w *os.File, n *sitemapgraph.Node, stripPrefix string, depth int) error {
	u := n.URL
	if depth != 0 {
		u = stripURLPrefix(u, stripPrefix)
	}
	if _, err := fmt.Fprint(w, strings.Repeat("\t", depth), u, "\n"); err != nil {
		return err
	}
	for _, child := range n.Children() {
		if err := outputSitemapNested(w, child, stripPrefix, depth+1); err != nil {
			return err
		}
	}
	pages, err := n.Pages()
	if err != nil {
		return err
	}
	for _, p := range pages {
		if _, err := fmt.Fprint(w, strings.Repeat("\t", depth+1), stripURLPrefix(p.URL, stripPrefix), "\n"); err != nil {
			return err
		}
	}
	return nil
}

func outputPages(w *os.File, n *sitemapgraph.Node, stripPrefix string) error {
	for p := range n.AllPages() {
		if _, err := fmt.Fprintln(w, stripURLPrefix(p.URL, stripPrefix)); err != nil {
			return err
		}
	}
	return nil
}

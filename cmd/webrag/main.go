package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hession/webrag/internal/cache"
	"github.com/hession/webrag/internal/cli"
	"github.com/hession/webrag/internal/config"
	"github.com/hession/webrag/internal/logger"
)

var (
	version = "0.1.0"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "webrag",
		Short: "webrag - answers grounded in fresh web pages",
		Long: `webrag answers questions from current web content.

For every question it:
  • Searches the web and drops low-value domains
  • Fetches the top pages, with retries and a local cache
  • Extracts the article text and skips paywalled pages
  • Packs the text into a token budget
  • Asks a generative model to answer from that text only`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
		RunE: runREPL,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ./config)")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Ask questions interactively (default)",
		RunE:  runREPL,
	}

	rootCmd.AddCommand(newAskCmd(), replCmd, newConfigCmd(), newCacheCmd(), newVersionCmd())
	return rootCmd
}

func runREPL(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return cli.Run(cfg)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// ask subcommand
func newAskCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			app, err := cli.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			logConfigInfo(app.Log, cfg)
			return cli.Ask(cmd.Context(), app.Pipeline, strings.Join(args, " "), cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}

// config subcommand
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cfg.String())

			path, _ := config.ConfigPath()
			fmt.Fprintf(out, "\nConfig file path: %s\n", path)
			return nil
		},
	}
}

// cache subcommand
func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the page cache",
	}

	withCache := func(fn func(cmd *cobra.Command, store cache.Store) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := logger.Init(cli.LoggerConfig(cfg)); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Close()

			store, err := cli.OpenCache(cfg, logger.GetDefault())
			if err != nil {
				return err
			}
			defer store.Close()

			logger.GetDefault().Info("Cache command: %s on %s", cmd.Name(), cfg.Cache.DBPath)
			return fn(cmd, store)
		}
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the number of cached pages",
		RunE: withCache(func(cmd *cobra.Command, store cache.Store) error {
			return cli.CacheStats(store, cmd.OutOrStdout())
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached page",
		RunE: withCache(func(cmd *cobra.Command, store cache.Store) error {
			return cli.CacheClear(store, cmd.OutOrStdout())
		}),
	}

	cacheCmd.AddCommand(statsCmd, clearCmd)
	return cacheCmd
}

// version subcommand
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "webrag v%s\n", version)
		},
	}
}

// logConfigInfo records the effective configuration without secrets
func logConfigInfo(log *logger.Logger, cfg *config.Config) {
	log.Info("Search: provider=%s max_results=%d blocklist=%d domains",
		cfg.Search.Provider, cfg.Search.MaxResults, len(cfg.Search.Blocklist))
	log.Info("Scraper: provider=%s render_js=%v rpm=%d", cfg.Scraper.Provider, cfg.Scraper.RenderJS, cfg.Scraper.RequestsPerMinute)
	log.Info("Budget: articles=%d workers=%d article_tokens=%d context_tokens=%d",
		cfg.Budget.MaxArticles, cfg.Budget.Workers, cfg.Budget.MaxArticleTokens, cfg.Budget.MaxContextTokens)
	log.Info("Cache: %s (max age %dh)", cfg.Cache.DBPath, cfg.Cache.MaxAgeHours)

	apiKeyDisplay := "(not set)"
	if len(cfg.Model.APIKey) > 8 {
		apiKeyDisplay = cfg.Model.APIKey[:8] + "..."
	} else if cfg.Model.APIKey != "" {
		apiKeyDisplay = "***"
	}
	log.Info("Model: provider=%s model=%s key=%s", cfg.Model.Provider, cfg.Model.Model, apiKeyDisplay)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kitbuilder587/crawldock/internal/app"
	"github.com/kitbuilder587/crawldock/internal/config"
	"github.com/kitbuilder587/crawldock/internal/mcpserver"
	"github.com/kitbuilder587/crawldock/internal/search"
	"github.com/kitbuilder587/crawldock/internal/telegram"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP web search server on stdio",
		RunE:  runServe,
	}

	rootCmd := &cobra.Command{
		Use:   "crawldock",
		Short: "CrawlDock - web search with Google, DuckDuckGo and scraping fallbacks",
		Long: `CrawlDock searches the web through a chain of engines and returns the first
non-empty answer:

  • Google Custom Search (when GOOGLE_API_KEY and GOOGLE_SEARCH_ENGINE_ID are set)
  • DuckDuckGo Instant Answer API with the HTML lite fallback
  • Startpage and Searx page scraping

All searches share one process-wide rate limit window.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.AddCommand(serveCmd, newSearchCmd(), newTelegramCmd(), newVersionCmd())
	return rootCmd
}

func newSearchCmd() *cobra.Command {
	var (
		opts         search.Options
		timeRange    string
		formatForLLM bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single search and print the JSON response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.TimeRange = search.TimeRange(timeRange)
			if err := opts.Validate(); err != nil {
				return err
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				resp, err := a.Search.Search(ctx, strings.Join(args, " "), opts)
				if err != nil {
					return err
				}

				var out any = resp
				if formatForLLM {
					out = mcpserver.FormatForLLM(resp, mcpserver.LLMOptions{IncludeSummary: true})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.MaxResults, "max-results", "n", 0, "maximum number of results (1-50)")
	flags.StringVar(&opts.Language, "lang", "", "language code, e.g. en")
	flags.StringVar(&opts.Region, "region", "", "region code, e.g. us")
	flags.BoolVar(&opts.SafeSearch, "safe", false, "enable safe search")
	flags.StringVar(&timeRange, "time", "", "time range: day, week, month or year")
	flags.BoolVar(&formatForLLM, "llm", false, "print the compact LLM-oriented form")
	return cmd
}

func newTelegramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Run the Telegram bot front-end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Config.ValidateTelegram(); err != nil {
					return err
				}
				bot, err := telegram.New(telegram.BotConfig{
					Token: a.Config.Telegram.Token,
					Debug: a.Config.Telegram.Debug,
				}, a.Search, a.Logger.Named("telegram"), a.Metrics)
				if err != nil {
					return err
				}
				return a.Run(ctx, bot.Run)
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crawldock v%s (mcp server %s %s)\n", version, mcpserver.ServerName, mcpserver.ServerVersion)
		},
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		srv := mcpserver.New(a.Search, a.Logger.Named("mcp"), a.Metrics)
		return a.Run(ctx, srv.Run)
	})
}

func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to initialize", zap.Error(err))
		_ = logger.Sync()
		return err
	}
	defer a.Close()

	logger.Info("crawldock starting",
		zap.String("version", version),
		zap.Bool("google_configured", cfg.SearchSnapshot().GoogleConfigured()),
		zap.String("metrics_addr", cfg.Metrics.Addr),
	)
	return fn(ctx, a)
}

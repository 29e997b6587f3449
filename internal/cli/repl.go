package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/hession/webrag/internal/cache"
	"github.com/hession/webrag/internal/config"
)

const (
	Version = "0.1.0"

	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// Run starts the interactive interface
func Run(cfg *config.Config) error {
	printWelcome()
	warnMissingKeys(os.Stdout, cfg)

	app, err := Build(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return runREPL(app)
}

// printWelcome prints welcome message
func printWelcome() {
	fmt.Printf("\n%s🔎 webrag v%s%s - answers grounded in fresh web pages\n", colorCyan, Version, colorReset)
	fmt.Printf("%sType a question, /help for help, /exit to quit%s\n\n", colorGray, colorReset)
}

// missingKeys lists the secrets the configured services need but lack
func missingKeys(cfg *config.Config) []string {
	var missing []string
	if strings.ToLower(cfg.Search.Provider) == "serper" && cfg.Search.APIKey == "" {
		missing = append(missing, config.SerperAPIKey)
	}
	if strings.ToLower(cfg.Scraper.Provider) == "scrapingbee" && cfg.Scraper.APIKey == "" {
		missing = append(missing, config.ScrapingBeeAPIKey)
	}
	if !cfg.IsAPIKeyConfigured() {
		switch strings.ToLower(cfg.Model.Provider) {
		case "gemini":
			missing = append(missing, config.GeminiAPIKey)
		case "openai":
			missing = append(missing, config.OpenAIAPIKey)
		}
	}
	return missing
}

// warnMissingKeys tells the user where to put absent API keys
func warnMissingKeys(w io.Writer, cfg *config.Config) {
	missing := missingKeys(cfg)
	if len(missing) == 0 {
		return
	}
	fmt.Fprintf(w, "%s⚠️  API keys not configured: %s%s\n", colorYellow, strings.Join(missing, ", "), colorReset)
	if path, err := config.SecretsPath(); err == nil {
		fmt.Fprintf(w, "%sAdd them to %s or export them as environment variables%s\n\n", colorGray, path, colorReset)
	}
}

// getHistoryFilePath returns the history file path
func getHistoryFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	historyDir := filepath.Join(homeDir, ".webrag")
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return ""
	}
	return filepath.Join(historyDir, "history")
}

// runREPL reads questions until /exit or EOF
func runREPL(app *App) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            fmt.Sprintf("%sAsk: %s", colorGreen, colorReset),
		HistoryFile:       getHistoryFilePath(),
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGTERM ends the session; Ctrl+C is handled by readline
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
			rl.Close()
		case <-ctx.Done():
		}
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				fmt.Printf("%sPress Ctrl+D or type /exit to quit%s\n", colorYellow, colorReset)
				continue
			}
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				fmt.Printf("\n%sGoodbye! 👋%s\n", colorCyan, colorReset)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleCommand(input, app, os.Stdout) {
				continue
			}
			return nil
		}

		fmt.Printf("%sSearching...%s\n", colorBlue, colorReset)
		if err := Ask(ctx, app.Pipeline, input, os.Stdout, false); err != nil {
			fmt.Printf("%s❌ Error: %v%s\n\n", colorRed, err, colorReset)
		}
	}
}

// handleCommand handles built-in commands, returns true to continue loop, false to exit
func handleCommand(cmd string, app *App, w io.Writer) bool {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case "/help":
		printHelp(w)

	case "/exit", "/quit", "/q":
		fmt.Fprintf(w, "%sGoodbye! 👋%s\n", colorCyan, colorReset)
		return false

	case "/config":
		fmt.Fprintln(w, app.Config.String())

	case "/cache":
		handleCacheCommand(parts[1:], app.Cache, w)

	case "/history":
		if len(parts) > 1 && parts[1] == "clear" {
			historyFile := getHistoryFilePath()
			if historyFile != "" {
				if err := os.WriteFile(historyFile, []byte{}, 0644); err != nil {
					fmt.Fprintf(w, "%s❌ Failed to clear history: %v%s\n", colorRed, err, colorReset)
				} else {
					fmt.Fprintf(w, "%s✅ Question history cleared%s\n", colorGreen, colorReset)
				}
			}
		} else {
			fmt.Fprintf(w, "%sUse Up/Down arrow keys to browse previous questions%s\n", colorGray, colorReset)
			fmt.Fprintf(w, "%sUse /history clear to clear history%s\n", colorGray, colorReset)
		}

	default:
		fmt.Fprintf(w, "%s❓ Unknown command: %s%s\n", colorYellow, cmd, colorReset)
		fmt.Fprintln(w, "Type /help for available commands")
	}
	return true
}

func handleCacheCommand(args []string, store cache.Store, w io.Writer) {
	sub := "stats"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}

	var err error
	switch sub {
	case "stats":
		err = CacheStats(store, w)
	case "clear":
		err = CacheClear(store, w)
	default:
		fmt.Fprintf(w, "%sUsage: /cache [stats|clear]%s\n", colorGray, colorReset)
		return
	}
	if err != nil {
		fmt.Fprintf(w, "%s❌ %v%s\n", colorRed, err, colorReset)
	}
}

// printHelp prints help information
func printHelp(w io.Writer) {
	fmt.Fprintf(w, `
%s📚 webrag Help%s

%sBuilt-in Commands:%s
  /help           - Show this help message
  /config         - Show current configuration
  /cache          - Show cached page count
  /cache clear    - Remove every cached page
  /history        - Show history usage tips
  /history clear  - Clear question history
  /exit           - Exit program

%sHow answers are built:%s
  • The question is sent to the search provider
  • The top results are fetched, cleaned and cached
  • The article text is packed into the model's context budget
  • The model answers from that context only

%sExamples:%s
  "What changed in the latest Go release?"
  "How do SQLite WAL checkpoints work?"

`, colorCyan, colorReset, colorYellow, colorReset, colorYellow, colorReset, colorYellow, colorReset)
}

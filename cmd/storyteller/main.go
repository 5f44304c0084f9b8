package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lamim/storyteller/internal/api"
	"github.com/lamim/storyteller/internal/cli"
	"github.com/lamim/storyteller/internal/config"
	"github.com/lamim/storyteller/internal/metrics"
	"github.com/lamim/storyteller/internal/prompt"
	"github.com/lamim/storyteller/internal/story"
	"github.com/lamim/storyteller/internal/uniqueness"
	"github.com/lamim/storyteller/internal/writer"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath     string
	envFile        string
	modelName      string
	baseURL        string
	provider       string
	language       string
	numParagraphs  int
	noStream       bool
	logFile        string
	metricsAddr    string
	resetEachStory bool
	showRevision   bool
	verbose        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storyteller",
		Short: "Storyteller - interactive AI story generator",
		Long: `Storyteller writes structured short stories with a local or hosted LLM.
Pick a concept, a title or up to five genres, read the story as it streams,
revise it with feedback and save it as Word or PDF.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive story session",
		Long: `Start an interactive story session:
1. Describe a concept, give a title or pick genres
2. Generate a story (retried when too short, refused or too similar to earlier ones)
3. Optional: revise it with feedback
4. Optional: save it as Word or PDF`,
		RunE: runSession,
	}

	runCmd.Flags().StringVar(&configPath, "config", "storyteller.toml", "Path to configuration file (optional unless set explicitly)")
	runCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	runCmd.Flags().StringVar(&modelName, "model", "", "Model name (overrides config)")
	runCmd.Flags().StringVar(&baseURL, "base-url", "", "Model server base URL (overrides config)")
	runCmd.Flags().StringVar(&provider, "provider", "", "Model provider: ollama or openai (overrides config)")
	runCmd.Flags().StringVar(&language, "language", "", "Default story language (overrides config)")
	runCmd.Flags().IntVar(&numParagraphs, "paragraphs", 0, "Default paragraph count (overrides config)")
	runCmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for complete replies instead of streaming tokens")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "Also write JSON debug logs to this file")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	runCmd.Flags().BoolVar(&resetEachStory, "reset-each-story", false, "Forget earlier stories before each new one")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	genresCmd := &cobra.Command{
		Use:   "genres",
		Short: "List the genres offered in the genre menu",
		Args:  cobra.NoArgs,
		RunE:  listGenres,
	}
	genresCmd.Flags().StringVar(&configPath, "config", "storyteller.toml", "Path to configuration file")

	templateCmd := &cobra.Command{
		Use:   "template",
		Short: "Print the prompt template in use",
		Args:  cobra.NoArgs,
		RunE:  printTemplate,
	}
	templateCmd.Flags().StringVar(&configPath, "config", "storyteller.toml", "Path to configuration file")
	templateCmd.Flags().BoolVar(&showRevision, "revision", false, "Print the revision template instead of the story template")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Print a sample configuration file",
		Long:  "Print a commented sample configuration; redirect it to storyteller.toml to get started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), config.SampleConfig)
			return err
		},
	}
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(genresCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSession(cmd *cobra.Command, args []string) error {
	// Environment file is optional; existing variables win
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
			} else if verbose {
				fmt.Fprintf(os.Stderr, "Loaded env file: %s\n", envFile)
			}
		}
	}

	cfg, secrets, err := config.Load(configPath, cmd.Flags().Changed("config"), flagOverrides(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger, closer, err := writer.SetupLogger(os.Stderr, logLevel, logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = closer.Close()
	}()

	sessionID := uuid.NewString()
	logger = logger.With("session_id", sessionID)

	logger.Info("Storyteller starting",
		"version", Version,
		"provider", cfg.Model.Provider,
		"model", cfg.Model.ModelName,
		"base_url", cfg.Model.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(sessionID, logger)
	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, logger); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	client := api.NewClient(cfg.Model, secrets.GetAPIKey(cfg.Model.BaseURL), logger.With("component", "api"),
		api.WithSystemPrompt(cfg.PromptTemplates.SystemPrompt),
		api.WithMetrics(collector))

	corpus := uniqueness.NewCorpus()
	checker := uniqueness.NewChecker(corpus, cfg.Generation.ShingleSize, cfg.Generation.SimilarityThreshold)
	gen := story.NewGenerator(client, checker, story.OptionsFromConfig(cfg), collector, logger.With("component", "story"))

	session := cli.NewSession(os.Stdin, os.Stdout, cfg, gen, corpus, collector, logger.With("component", "cli"), cli.Options{
		Streaming: client.Streaming(),
		Spinner:   true,
	})

	if err := session.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stdout, "\nInterrupted.")
			return nil
		}
		return fmt.Errorf("session failed: %w", err)
	}

	stats := collector.Stats()
	logger.Info("Session complete",
		"stories", stats.StoriesGenerated,
		"attempts", stats.GenerationAttempts,
		"fallbacks", stats.Fallbacks,
		"exports", stats.Exports)
	return nil
}

// flagOverrides applies only the flags the user actually set
func flagOverrides(cmd *cobra.Command) func(*config.Config) {
	flags := cmd.Flags()
	return func(cfg *config.Config) {
		if flags.Changed("provider") {
			cfg.Model.Provider = provider
		}
		if flags.Changed("base-url") {
			cfg.Model.BaseURL = baseURL
		}
		if flags.Changed("model") {
			cfg.Model.ModelName = modelName
		}
		if flags.Changed("no-stream") {
			cfg.Model.DisableStreaming = noStream
		}
		if flags.Changed("language") {
			cfg.Generation.Language = language
		}
		if flags.Changed("paragraphs") {
			cfg.Generation.NumParagraphs = numParagraphs
		}
		if flags.Changed("reset-each-story") {
			cfg.Generation.ResetCorpusEachStory = resetEachStory
		}
	}
}

func listGenres(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	for i, g := range cfg.Genres {
		fmt.Fprintf(out, "%d. %s\n", i+1, g)
	}
	return nil
}

func printTemplate(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	opts := story.OptionsFromConfig(cfg)
	tmpl := opts.StoryTemplate
	if showRevision {
		tmpl = opts.RevisionTemplate
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# version: %s\n# fields: %s\n\n%s",
		tmpl.Version, strings.Join(prompt.Placeholders(tmpl.Text), ", "), tmpl.Text)
	return nil
}

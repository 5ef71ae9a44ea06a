package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/websift/websift/internal/browser"
	"github.com/websift/websift/internal/config"
	"github.com/websift/websift/internal/extract"
	"github.com/websift/websift/internal/fetch"
	"github.com/websift/websift/internal/logging"
	"github.com/websift/websift/internal/pipeline"
	"github.com/websift/websift/internal/progress"
	"github.com/websift/websift/internal/progress/sinks"
	"github.com/websift/websift/internal/rank"
)

// newSiftCmd creates the 'sift' subcommand, which runs the whole pipeline
// over a haystack file.
func newSiftCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "sift <haystack-file>",
		Short: "Fetch and sift every URL found in a text file",
		Long: `Reads the given file (or stdin when the argument is "-"), extracts all
URLs from it, fetches the rendered pages concurrently, and prints the text
blocks relevant to --query. Without --query, prints every extracted block.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSift(cmd, args[0], query)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "query to rank extracted text against")

	return cmd
}

func runSift(cmd *cobra.Command, haystackPath, query string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	haystack, err := readHaystack(haystackPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promSink, err := sinks.NewPrometheusSink(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics sink: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger), promSink)
	defer func() {
		if cerr := hub.Close(ctx); cerr != nil {
			logger.Warn("progress hub close failed", zap.Error(cerr))
		}
	}()

	classifier := fetch.NewPatternClassifier(cfg.Fetch.InvalidationPatterns)
	factory := browser.Factory(browser.Config{
		UserAgent: cfg.Browser.UserAgent,
		Headless:  cfg.Browser.Headless,
	}, logger)
	orch := fetch.NewOrchestrator(factory, classifier, fetch.Config{
		Concurrency: cfg.Fetch.Concurrency,
		Timeout:     cfg.FetchTimeout(),
		Settle:      cfg.SettleDelay(),
	}, hub, logger)

	var embedder rank.Embedder
	if apiKey := os.Getenv(cfg.Rank.APIKeyEnv); apiKey != "" {
		embedder = rank.NewOpenAIEmbedder(apiKey, cfg.Rank.EmbeddingModel)
	} else if query != "" {
		logger.Info("no embeddings api key; using substring search",
			zap.String("env", cfg.Rank.APIKeyEnv))
	}

	p := pipeline.New(orch, extract.New(cfg.Extract.BoilerplateKeywords), embedder,
		pipeline.Config{RelevanceThreshold: cfg.Rank.RelevanceThreshold}, hub, logger)

	result, err := p.Run(ctx, haystack, query)
	if err != nil {
		return err
	}

	if query == "" {
		for _, doc := range result.Docs {
			fmt.Printf("URL: %s\nText: %s\n\n", doc.URL, doc.Text)
		}
		logger.Info("sift complete", zap.Int("blocks", len(result.Docs)))
		return nil
	}

	for _, f := range result.Findings {
		fmt.Println(f)
	}
	logger.Info("sift complete",
		zap.Int("blocks", len(result.Docs)),
		zap.Int("findings", len(result.Findings)))
	return nil
}

func readHaystack(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read haystack: %w", err)
	}
	return string(data), nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Osyna/QuestionAir/internal/adapter"
	"github.com/Osyna/QuestionAir/internal/adapter/completion"
	"github.com/Osyna/QuestionAir/internal/adapter/embedding"
	"github.com/Osyna/QuestionAir/internal/cache"
	"github.com/Osyna/QuestionAir/internal/config"
	"github.com/Osyna/QuestionAir/internal/database"
	"github.com/Osyna/QuestionAir/internal/domain"
	"github.com/Osyna/QuestionAir/internal/ingest"
	"github.com/Osyna/QuestionAir/internal/logger"
	"github.com/Osyna/QuestionAir/internal/repository"
	"github.com/Osyna/QuestionAir/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type (
	completionFactory func(cfg *config.Config, l *zap.Logger) (domain.CompletionService, error)
	embeddingFactory  func(cfg *config.Config, c domain.Cache, l *zap.Logger) (domain.EmbeddingService, error)
)

type options struct {
	configPath string
	watch      bool
	debounce   time.Duration

	newCompletion completionFactory
	newEmbedding  embeddingFactory
}

func defaultOptions() *options {
	return &options{
		newCompletion: newCompletionService,
		newEmbedding:  newEmbeddingService,
	}
}

func main() {
	if err := newRootCmd(defaultOptions()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <folder>",
		Short: "Generate multiple-choice questions from markdown course notes",
		Long: `Reads every *.md file under <folder>, asks the configured model for five
questions per section, validates them and stores them in the question bank.
The run report is written to stdout as JSON; logs go to stderr.

With --watch the folder is processed once, then every markdown file that is
created or modified is processed again until the command is interrupted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "keep running and re-process changed files")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", ingest.DefaultDebounce, "quiet period before a changed file is processed")
	return cmd
}

func run(parent context.Context, out io.Writer, folder string, opts *options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()
	l := logger.Get()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.RunMigrations(db, cfg.DB.Driver, database.Up, l); err != nil {
		return err
	}

	var cacheAdapter domain.Cache
	if cfg.Redis.Address != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		cacheAdapter = adapter.NewRedisCacheAdapter(redisClient)
		l.Info("Redis cache initialized", zap.String("address", cfg.Redis.Address))
	} else {
		l.Info("Redis cache is not configured, embeddings are cached for the run only")
	}

	embedService, err := opts.newEmbedding(cfg, cacheAdapter, l)
	if err != nil {
		return err
	}
	completionService, err := opts.newCompletion(cfg, l)
	if err != nil {
		return err
	}

	repo := repository.NewQuestionDatabaseAdapter(db, l)
	txManager := repository.NewTransactionManagerAdapter(db, l)
	generator := service.NewGenerationService(repo, txManager, completionService, embedService, cacheAdapter, cfg, l)

	docs, err := ingest.LoadFolder(folder)
	if err != nil {
		return err
	}
	l.Info("Documents loaded", zap.String("folder", folder), zap.Int("documents", len(docs)))

	report, err := generator.Run(ctx, docs)
	if err != nil {
		return err
	}
	if err := writeReport(out, report); err != nil {
		return err
	}

	if !opts.watch || ctx.Err() != nil {
		return nil
	}
	return watch(ctx, out, folder, opts.debounce, generator, l)
}

func watch(ctx context.Context, out io.Writer, folder string, debounce time.Duration, generator *service.GenerationService, l *zap.Logger) error {
	w, err := ingest.NewWatcher(folder, debounce, l)
	if err != nil {
		return err
	}
	l.Info("Watching for changes", zap.String("folder", folder))

	for path := range w.Watch(ctx) {
		doc, err := ingest.LoadDocument(folder, path)
		if err != nil {
			l.Warn("Skipping unreadable document", zap.String("path", path), zap.Error(err))
			continue
		}
		report, err := generator.Run(ctx, []domain.SourceDocument{doc})
		if err != nil {
			return err
		}
		if err := writeReport(out, report); err != nil {
			return err
		}
	}
	l.Info("Watch stopped")
	return nil
}

func writeReport(out io.Writer, report *domain.RunReport) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}

func newEmbeddingService(cfg *config.Config, c domain.Cache, l *zap.Logger) (domain.EmbeddingService, error) {
	switch cfg.Embedding.Source {
	case config.ProviderOpenAI:
		return embedding.NewOpenAIEmbeddingService(cfg.OpenAIAPIKey, cfg.Embedding.Model, c, cfg.Embedding.CacheTTL, l)
	case config.ProviderOllama:
		return embedding.NewOllamaEmbeddingService(cfg.Embedding.ServerURL, cfg.Embedding.Model, c, cfg.Embedding.CacheTTL, l)
	default:
		return nil, domain.NewInvalidConfigError(fmt.Sprintf("unsupported embedding source %q", cfg.Embedding.Source))
	}
}

func newCompletionService(cfg *config.Config, l *zap.Logger) (domain.CompletionService, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return completion.NewOpenAICompletionService(cfg.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.Timeout, l)
	case config.ProviderOllama:
		return completion.NewOllamaCompletionService(cfg.LLM.ServerURL, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.Timeout, l)
	default:
		return nil, domain.NewInvalidConfigError(fmt.Sprintf("unsupported llm provider %q", cfg.LLM.Provider))
	}
}

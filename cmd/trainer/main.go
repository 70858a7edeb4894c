// Command trainer builds a TF-IDF guesser model from a labeled corpus and
// writes the model artifacts to disk. Corpus documents come from a JSON file
// or a PostgreSQL table; finished runs are recorded in the training-run
// registry when PostgreSQL is configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retrieval-systems/tfidf-guesser/internal/corpus"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser"
	"github.com/retrieval-systems/tfidf-guesser/internal/tokenize"
	"github.com/retrieval-systems/tfidf-guesser/pkg/config"
	"github.com/retrieval-systems/tfidf-guesser/pkg/logger"
	"github.com/retrieval-systems/tfidf-guesser/pkg/postgres"
	"github.com/retrieval-systems/tfidf-guesser/pkg/resilience"
	"github.com/retrieval-systems/tfidf-guesser/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusPath := flag.String("corpus", "", "corpus JSON file (overrides config)")
	modelDir := flag.String("model-dir", "", "model output directory (overrides config)")
	source := flag.String("source", "", "corpus source: file or postgres (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusPath != "" {
		cfg.Corpus.Path = *corpusPath
	}
	if *modelDir != "" {
		cfg.Model.Dir = *modelDir
	}
	if *source != "" {
		cfg.Corpus.Source = *source
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting trainer",
		"source", cfg.Corpus.Source,
		"model_dir", cfg.Model.Dir,
		"max_vocab_size", cfg.Model.MaxVocabSize,
		"min_token_count", cfg.Model.MinTokenCount,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pg *postgres.Client
	if cfg.Corpus.Source == "postgres" {
		err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 5}, func() error {
			var connErr error
			pg, connErr = postgres.New(cfg.Postgres)
			return connErr
		})
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
	}

	docs, err := loadCorpus(ctx, cfg, pg)
	if err != nil {
		slog.Error("failed to load corpus", "error", err)
		os.Exit(1)
	}
	slog.Info("corpus loaded", "documents", len(docs))

	normalize := tokenize.Lower
	if cfg.Model.Stemming {
		normalize = tokenize.Stem
	}
	engine := guesser.New(guesser.Params{
		MaxVocabSize:  cfg.Model.MaxVocabSize,
		MinTokenCount: cfg.Model.MinTokenCount,
		Tokenize:      tokenize.Words,
		Normalize:     normalize,
	})

	trainCtx, span := tracing.StartSpan(ctx, "trainer.run", fmt.Sprintf("train-%d", time.Now().Unix()))
	start := time.Now()
	if err := engine.Train(trainCtx, docs); err != nil {
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}
	span.End()
	span.Log()
	duration := time.Since(start)

	if err := engine.Save(cfg.Model.Dir); err != nil {
		slog.Error("failed to save model", "error", err)
		os.Exit(1)
	}

	stats := engine.Stats()
	slog.Info("model saved",
		"model_dir", cfg.Model.Dir,
		"documents", stats.Documents,
		"vocab_size", stats.VocabSize,
		"duration", duration.Round(time.Millisecond),
	)

	if pg != nil {
		registry := corpus.NewRegistry(pg)
		if err := registry.RecordRun(ctx, cfg.Model.Dir, stats.Documents, stats.VocabSize, duration); err != nil {
			slog.Warn("failed to record training run", "error", err)
		}
	}
}

func loadCorpus(ctx context.Context, cfg *config.Config, pg *postgres.Client) ([]corpus.Document, error) {
	switch cfg.Corpus.Source {
	case "postgres":
		return corpus.NewPGSource(pg, cfg.Corpus.Table).Load(ctx)
	case "file", "":
		return corpus.LoadFile(cfg.Corpus.Path)
	default:
		return nil, fmt.Errorf("unknown corpus source %q", cfg.Corpus.Source)
	}
}

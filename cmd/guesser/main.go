// Command guesser serves guess queries over HTTP against a trained model
// directory, with an optional Redis guess cache, Kafka analytics events, and
// a Prometheus metrics listener.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retrieval-systems/tfidf-guesser/internal/analytics"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/cache"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/handler"
	"github.com/retrieval-systems/tfidf-guesser/internal/tokenize"
	"github.com/retrieval-systems/tfidf-guesser/pkg/config"
	"github.com/retrieval-systems/tfidf-guesser/pkg/health"
	"github.com/retrieval-systems/tfidf-guesser/pkg/kafka"
	"github.com/retrieval-systems/tfidf-guesser/pkg/logger"
	"github.com/retrieval-systems/tfidf-guesser/pkg/metrics"
	"github.com/retrieval-systems/tfidf-guesser/pkg/middleware"
	pkgredis "github.com/retrieval-systems/tfidf-guesser/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	modelDir := flag.String("model-dir", "", "model directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *modelDir != "" {
		cfg.Model.Dir = *modelDir
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting guesser service", "port", cfg.Server.Port, "model_dir", cfg.Model.Dir)

	normalize := tokenize.Lower
	if cfg.Model.Stemming {
		normalize = tokenize.Stem
	}
	engine, err := guesser.Load(cfg.Model.Dir, guesser.Params{
		MaxVocabSize:  cfg.Model.MaxVocabSize,
		MinTokenCount: cfg.Model.MinTokenCount,
		Tokenize:      tokenize.Words,
		Normalize:     normalize,
	})
	if err != nil {
		slog.Error("failed to load model", "model_dir", cfg.Model.Dir, "error", err)
		os.Exit(1)
	}
	stats := engine.Stats()
	slog.Info("model loaded", "documents", stats.Documents, "vocab_size", stats.VocabSize)

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.VocabularySize.Set(float64(stats.VocabSize))
		m.TrainedDocuments.Set(float64(stats.Documents))
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	var guessCache *cache.GuessCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, guess caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		guessCache = cache.New(redisClient, cfg.Redis)
		slog.Info("guess cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.GuessEvents)
	defer producer.Close()
	collector := analytics.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.GuessEvents)

	if m != nil && guessCache != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.CircuitBreakerState.WithLabelValues("guess-cache").Set(float64(guessCache.BreakerState()))
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("model", func(ctx context.Context) health.ComponentHealth {
		s := engine.Stats()
		if s.State == "trained" && s.Documents > 0 {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d documents, vocab %d", s.Documents, s.VocabSize),
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "model not trained"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(engine, guessCache, collector, m, cfg.Guess.DefaultTopN, cfg.Guess.MaxTopN)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/guess", h.Guess)
	mux.HandleFunc("GET /api/v1/model/stats", h.ModelStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.APIKey(cfg.Auth.APIKey)(chain)
	if cfg.Server.RateLimitPerMin > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimitPerMin, time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("guesser service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("guesser service stopped")
}

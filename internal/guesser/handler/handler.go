// Package handler exposes the trained guesser engine over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/retrieval-systems/tfidf-guesser/internal/analytics"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/cache"
	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
	"github.com/retrieval-systems/tfidf-guesser/pkg/logger"
	"github.com/retrieval-systems/tfidf-guesser/pkg/metrics"
)

// Handler answers guess queries and serves model/cache admin endpoints.
type Handler struct {
	engine      *guesser.Engine
	cache       *cache.GuessCache
	collector   *analytics.Collector
	metrics     *metrics.Metrics
	defaultTopN int
	maxTopN     int
	logger      *slog.Logger
}

// New creates a Handler. cache, collector, and m may be nil; the
// corresponding features are then disabled.
func New(engine *guesser.Engine, guessCache *cache.GuessCache, collector *analytics.Collector, m *metrics.Metrics, defaultTopN, maxTopN int) *Handler {
	if defaultTopN < 1 {
		defaultTopN = 1
	}
	if maxTopN < defaultTopN {
		maxTopN = defaultTopN
	}
	return &Handler{
		engine:      engine,
		cache:       guessCache,
		collector:   collector,
		metrics:     m,
		defaultTopN: defaultTopN,
		maxTopN:     maxTopN,
		logger:      slog.Default().With("component", "guess-handler"),
	}
}

type guessResponse struct {
	Query   string           `json:"query"`
	Guesses []*guesser.Guess `json:"guesses"`
}

// Guess handles GET /api/v1/guess?q=...&n=...
func (h *Handler) Guess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	n := h.defaultTopN
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		parsed, err := strconv.Atoi(nStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		if parsed > h.maxTopN {
			parsed = h.maxTopN
		}
		n = parsed
	}

	compute := func() ([]*guesser.Guess, error) {
		return h.engine.GuessN(ctx, query, n)
	}

	var guesses []*guesser.Guess
	var err error
	cacheHit := false
	if h.cache != nil {
		guesses, cacheHit, err = h.cache.GetOrCompute(ctx, query, n, compute)
	} else {
		guesses, err = compute()
	}
	if err != nil {
		log.Error("guess failed", "query", query, "error", err)
		h.observeGuess("error", cacheHit, start, 0)
		h.writeError(w, apperrors.HTTPStatusCode(err), userMessage(err))
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	best := guesses[0]
	log.Info("guess completed",
		"query", query,
		"guess", best.Answer,
		"confidence", best.Confidence,
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.observeGuess("answered", cacheHit, start, best.Confidence)

	if h.collector != nil {
		eventType := analytics.EventGuess
		if best.Confidence == 0 {
			eventType = analytics.EventEmptyQuery
		}
		h.collector.Track(analytics.GuessEvent{
			Type:       eventType,
			Query:      query,
			Guess:      best.Answer,
			Confidence: best.Confidence,
			TopN:       n,
			CacheHit:   cacheHit,
			LatencyMs:  latencyMs,
			Timestamp:  time.Now().UTC(),
			RequestID:  logger.RequestIDFromContext(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, guessResponse{Query: query, Guesses: guesses})
}

// ModelStats handles GET /api/v1/model/stats.
func (h *Handler) ModelStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  h.cache.BreakerState().String(),
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observeGuess(outcome string, cacheHit bool, start time.Time, confidence float64) {
	if h.metrics == nil {
		return
	}
	h.metrics.GuessesTotal.WithLabelValues(outcome).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else if h.cache != nil {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.GuessLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if outcome == "answered" {
		h.metrics.GuessConfidence.Observe(confidence)
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidState):
		return "model not trained"
	case errors.Is(err, apperrors.ErrEmptyCorpus):
		return "model has no training documents"
	default:
		return "guess failed"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

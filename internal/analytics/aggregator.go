package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/retrieval-systems/tfidf-guesser/pkg/kafka"
)

// lowConfidenceThreshold marks guesses likely to be wrong; their queries are
// surfaced separately so corpus gaps become visible.
const lowConfidenceThreshold = 0.1

// AggregatedStats is the rolling summary served by the analytics endpoint
// and snapshotted to PostgreSQL.
type AggregatedStats struct {
	TotalGuesses         int64        `json:"total_guesses"`
	EmptyQueries         int64        `json:"empty_queries"`
	CacheHits            int64        `json:"cache_hits"`
	CacheMisses          int64        `json:"cache_misses"`
	LowConfidenceCount   int64        `json:"low_confidence_count"`
	AvgConfidence        float64      `json:"avg_confidence"`
	AvgLatencyMs         float64      `json:"avg_latency_ms"`
	P50LatencyMs         int64        `json:"p50_latency_ms"`
	P95LatencyMs         int64        `json:"p95_latency_ms"`
	P99LatencyMs         int64        `json:"p99_latency_ms"`
	TopQueries           []QueryCount `json:"top_queries"`
	LowConfidenceQueries []QueryCount `json:"low_confidence_queries"`
	GuessesPerMinute     float64      `json:"guesses_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator consumes guess events and maintains in-memory aggregates.
type Aggregator struct {
	totalGuesses  atomic.Int64
	emptyQueries  atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	lowConfidence atomic.Int64

	mu                   sync.RWMutex
	latencies            []int64
	confidenceSum        float64
	queryCounts          map[string]int64
	lowConfidenceQueries map[string]int64
	startTime            time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator fed by the given consumer. The
// consumer must have been built with HandleEvent(aggregator) as its handler.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:            make([]int64, 0, 10000),
		queryCounts:          make(map[string]int64),
		lowConfidenceQueries: make(map[string]int64),
		startTime:            time.Now(),
		consumer:             consumer,
		logger:               slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetConsumer wires the consumer after construction, resolving the handler
// and aggregator's mutual reference.
func (a *Aggregator) SetConsumer(consumer *kafka.Consumer) {
	a.consumer = consumer
}

// Start runs the consume loop until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns the kafka handler that feeds agg. Undecodable events
// are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[GuessEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode guess event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the aggregates.
func (a *Aggregator) Record(event GuessEvent) {
	a.totalGuesses.Add(1)
	if event.Type == EventEmptyQuery {
		a.emptyQueries.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	low := event.Confidence < lowConfidenceThreshold
	if low {
		a.lowConfidence.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.confidenceSum += event.Confidence
	a.queryCounts[event.Query]++
	if low {
		a.lowConfidenceQueries[event.Query]++
	}
	a.mu.Unlock()
}

// Stats returns a consistent snapshot of the aggregates.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalGuesses:       a.totalGuesses.Load(),
		EmptyQueries:       a.emptyQueries.Load(),
		CacheHits:          a.cacheHits.Load(),
		CacheMisses:        a.cacheMisses.Load(),
		LowConfidenceCount: a.lowConfidence.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
		stats.AvgConfidence = a.confidenceSum / float64(len(a.latencies))
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.LowConfidenceQueries = topN(a.lowConfidenceQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.GuessesPerMinute = float64(stats.TotalGuesses) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

package analytics

import (
	"testing"
	"time"
)

func guessEvent(query string, confidence float64, latencyMs int64, cacheHit bool) GuessEvent {
	eventType := EventGuess
	if confidence == 0 {
		eventType = EventEmptyQuery
	}
	return GuessEvent{
		Type:       eventType,
		Query:      query,
		Guess:      "label",
		Confidence: confidence,
		TopN:       1,
		CacheHit:   cacheHit,
		LatencyMs:  latencyMs,
		Timestamp:  time.Now().UTC(),
	}
}

func TestAggregatorCounters(t *testing.T) {
	a := NewAggregator(nil)
	a.Record(guessEvent("reset password", 0.9, 10, false))
	a.Record(guessEvent("reset password", 0.9, 20, true))
	a.Record(guessEvent("gibberish", 0.05, 5, false))
	a.Record(guessEvent("", 0.0, 2, false))

	s := a.Stats()
	if s.TotalGuesses != 4 {
		t.Errorf("TotalGuesses = %d, want 4", s.TotalGuesses)
	}
	if s.EmptyQueries != 1 {
		t.Errorf("EmptyQueries = %d, want 1", s.EmptyQueries)
	}
	if s.CacheHits != 1 || s.CacheMisses != 3 {
		t.Errorf("cache hits/misses = %d/%d, want 1/3", s.CacheHits, s.CacheMisses)
	}
	// Confidence 0.05 and 0.0 are both below the threshold.
	if s.LowConfidenceCount != 2 {
		t.Errorf("LowConfidenceCount = %d, want 2", s.LowConfidenceCount)
	}
}

func TestAggregatorLatencyPercentiles(t *testing.T) {
	a := NewAggregator(nil)
	for ms := int64(1); ms <= 100; ms++ {
		a.Record(guessEvent("q", 0.5, ms, false))
	}
	s := a.Stats()
	if s.P50LatencyMs < 45 || s.P50LatencyMs > 55 {
		t.Errorf("P50 = %d, want around 50", s.P50LatencyMs)
	}
	if s.P95LatencyMs < 90 || s.P95LatencyMs > 100 {
		t.Errorf("P95 = %d, want around 95", s.P95LatencyMs)
	}
	if s.AvgLatencyMs < 50 || s.AvgLatencyMs > 51 {
		t.Errorf("AvgLatencyMs = %v, want 50.5", s.AvgLatencyMs)
	}
	if s.AvgConfidence != 0.5 {
		t.Errorf("AvgConfidence = %v, want 0.5", s.AvgConfidence)
	}
}

func TestAggregatorTopQueries(t *testing.T) {
	a := NewAggregator(nil)
	for i := 0; i < 5; i++ {
		a.Record(guessEvent("popular", 0.8, 1, false))
	}
	for i := 0; i < 2; i++ {
		a.Record(guessEvent("occasional", 0.8, 1, false))
	}
	a.Record(guessEvent("rare", 0.8, 1, false))

	s := a.Stats()
	if len(s.TopQueries) != 3 {
		t.Fatalf("got %d top queries, want 3", len(s.TopQueries))
	}
	if s.TopQueries[0].Query != "popular" || s.TopQueries[0].Count != 5 {
		t.Errorf("top query = %+v", s.TopQueries[0])
	}
	if s.TopQueries[1].Query != "occasional" {
		t.Errorf("second query = %+v", s.TopQueries[1])
	}
}

func TestAggregatorTopQueriesTieOrder(t *testing.T) {
	a := NewAggregator(nil)
	a.Record(guessEvent("banana", 0.8, 1, false))
	a.Record(guessEvent("apple", 0.8, 1, false))

	s := a.Stats()
	if s.TopQueries[0].Query != "apple" {
		t.Errorf("tie order: first = %q, want apple", s.TopQueries[0].Query)
	}
}

func TestAggregatorLowConfidenceQueries(t *testing.T) {
	a := NewAggregator(nil)
	a.Record(guessEvent("well understood", 0.95, 1, false))
	a.Record(guessEvent("corpus gap", 0.02, 1, false))
	a.Record(guessEvent("corpus gap", 0.03, 1, false))

	s := a.Stats()
	if len(s.LowConfidenceQueries) != 1 {
		t.Fatalf("got %d low-confidence queries, want 1", len(s.LowConfidenceQueries))
	}
	if s.LowConfidenceQueries[0].Query != "corpus gap" || s.LowConfidenceQueries[0].Count != 2 {
		t.Errorf("low-confidence query = %+v", s.LowConfidenceQueries[0])
	}
}

func TestAggregatorEmptyStats(t *testing.T) {
	s := NewAggregator(nil).Stats()
	if s.TotalGuesses != 0 || s.AvgLatencyMs != 0 || s.P99LatencyMs != 0 {
		t.Errorf("empty aggregator stats = %+v", s)
	}
	if len(s.TopQueries) != 0 {
		t.Errorf("TopQueries = %v, want empty", s.TopQueries)
	}
}

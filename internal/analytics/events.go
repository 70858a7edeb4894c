// Package analytics tracks guess traffic. The guesser publishes one event
// per answered query to Kafka; a consumer aggregates them into rolling stats
// and periodically snapshots the aggregate to PostgreSQL.
package analytics

import "time"

type EventType string

const (
	EventGuess      EventType = "guess"
	EventEmptyQuery EventType = "empty_query"
)

// GuessEvent describes one answered query.
type GuessEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Guess      string    `json:"guess"`
	Confidence float64   `json:"confidence"`
	TopN       int       `json:"top_n"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/retrieval-systems/tfidf-guesser/pkg/kafka"
)

const (
	defaultBufferSize    = 10000
	defaultFlushSize     = 100
	defaultFlushInterval = time.Second
)

// Collector buffers guess events and publishes them to Kafka in batches,
// flushing on size or interval. Tracking is fire-and-forget: a full buffer
// drops the event rather than slowing down a guess.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan GuessEvent
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a Collector with the given channel buffer size.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan GuessEvent, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop. It batches up to defaultFlushSize events
// or defaultFlushInterval, whichever comes first.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		batch := make([]kafka.Event, 0, defaultFlushSize)
		ticker := time.NewTicker(defaultFlushInterval)
		defer ticker.Stop()

		flush := func(flushCtx context.Context) {
			if len(batch) == 0 {
				return
			}
			if err := c.producer.PublishBatch(flushCtx, batch); err != nil {
				c.logger.Error("failed to publish analytics batch", "count", len(batch), "error", err)
			}
			batch = batch[:0]
		}

		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					flush(context.Background())
					return
				}
				batch = append(batch, kafka.Event{Key: string(event.Type), Value: event})
				if len(batch) >= defaultFlushSize {
					flush(ctx)
				}
			case <-ticker.C:
				flush(ctx)
			case <-ctx.Done():
				c.drainRemaining(&batch)
				flush(context.Background())
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event, dropping it when the buffer is full.
func (c *Collector) Track(event GuessEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events, flushes the remainder, and waits for the
// publish loop to exit.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drainRemaining(batch *[]kafka.Event) {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, kafka.Event{Key: string(event.Type), Value: event})
		default:
			return
		}
	}
}

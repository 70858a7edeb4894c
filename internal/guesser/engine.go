// Package guesser implements the TF-IDF retrieval engine. Training makes
// three sequential passes over the corpus (vocabulary counts, document
// frequencies, matrix construction); each pass depends on the previous
// pass's finalized output. A trained engine answers queries by embedding the
// query text and returning the label of the most cosine-similar training
// document.
package guesser

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/retrieval-systems/tfidf-guesser/internal/corpus"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/docfreq"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/embed"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/similarity"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/vocab"
	"github.com/retrieval-systems/tfidf-guesser/internal/tokenize"
	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
	"github.com/retrieval-systems/tfidf-guesser/pkg/tracing"
)

// Guess is the answer to one query: the best-matching training document, its
// label, and the cosine similarity as confidence. Confidence stays in [0,1]
// because TF-IDF weights are tf*idf products of the same sign per column.
type Guess struct {
	Question   string  `json:"question"`
	Answer     string  `json:"guess"`
	Confidence float64 `json:"confidence"`
}

// Params configures a new engine. Zero values fall back to defaults.
type Params struct {
	MaxVocabSize  int
	MinTokenCount int64
	Tokenize      tokenize.Func
	Normalize     tokenize.Normalizer
}

func (p Params) withDefaults() Params {
	if p.MaxVocabSize <= 0 {
		p.MaxVocabSize = 10000
	}
	if p.MinTokenCount <= 0 {
		p.MinTokenCount = 2
	}
	if p.Tokenize == nil {
		p.Tokenize = tokenize.Words
	}
	if p.Normalize == nil {
		p.Normalize = tokenize.Lower
	}
	return p
}

// Engine owns the trained model state. Train mutates it exactly once; after
// that every exported method is a concurrent-safe read.
type Engine struct {
	params Params
	logger *slog.Logger

	mu          sync.RWMutex
	state       State
	vocabulary  *vocab.Vocabulary
	frequencies *docfreq.Frequencies
	embedder    *embed.Embedder
	matrix      [][]float64
	docs        []corpus.Document
	trainedAt   time.Time
	passMs      [3]int64
}

// New creates an untrained engine.
func New(p Params) *Engine {
	return &Engine{
		params: p.withDefaults(),
		state:  StateEmpty,
		logger: slog.Default().With("component", "guesser-engine"),
	}
}

// tokens tokenizes and normalizes text with the engine's collaborators.
func (e *Engine) tokens(text string) []string {
	raw := e.params.Tokenize(text)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		out = append(out, e.params.Normalize(tok))
	}
	return out
}

// Train runs the three training passes over docs. It is legal exactly once
// per engine. The embedding pass parallelizes across rows: each worker reads
// only the immutable vocabulary and frequency table and writes only its own
// rows of the preallocated matrix.
func (e *Engine) Train(ctx context.Context, docs []corpus.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateEmpty {
		return fmt.Errorf("train called in state %s: %w", e.state, apperrors.ErrInvalidState)
	}
	if len(docs) == 0 {
		return fmt.Errorf("training corpus: %w", apperrors.ErrEmptyCorpus)
	}

	ctx, span := tracing.StartChildSpan(ctx, "engine.train")
	defer func() {
		span.End()
		span.Log()
	}()
	span.SetAttr("documents", len(docs))

	e.state = StateVocabBuilding
	start := time.Now()
	builder := vocab.NewBuilder(e.params.MaxVocabSize)
	for _, doc := range docs {
		for _, token := range e.tokens(doc.Text) {
			if err := builder.Observe(token); err != nil {
				return err
			}
		}
	}
	vocabulary, err := builder.Finalize(e.params.MinTokenCount)
	if err != nil {
		return err
	}
	e.passMs[0] = time.Since(start).Milliseconds()
	e.state = StateVocabFinal
	e.logger.Info("vocabulary finalized",
		"size", vocabulary.Size(),
		"min_token_count", e.params.MinTokenCount,
		"duration_ms", e.passMs[0],
	)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("training aborted: %w", err)
	}

	e.state = StateDocFreqScanning
	start = time.Now()
	tracker := docfreq.NewTracker(vocabulary)
	for _, doc := range docs {
		if err := tracker.Scan(e.tokens(doc.Text)); err != nil {
			return err
		}
	}
	frequencies, err := tracker.Finalize(len(docs))
	if err != nil {
		return err
	}
	e.passMs[1] = time.Since(start).Milliseconds()
	e.logger.Info("document frequencies finalized",
		"total_docs", frequencies.TotalDocs(),
		"duration_ms", e.passMs[1],
	)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("training aborted: %w", err)
	}

	start = time.Now()
	embedder := embed.New(vocabulary, frequencies)
	matrix := make([][]float64, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	workers := runtime.GOMAXPROCS(0)
	if workers > len(docs) {
		workers = len(docs)
	}
	chunk := (len(docs) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(docs) {
			hi = len(docs)
		}
		g.Go(func() error {
			for row := lo; row < hi; row++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				matrix[row] = embedder.Embed(e.tokens(docs[row].Text))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("embedding pass: %w", err)
	}
	e.passMs[2] = time.Since(start).Milliseconds()

	e.vocabulary = vocabulary
	e.frequencies = frequencies
	e.embedder = embedder
	e.matrix = matrix
	e.docs = append([]corpus.Document(nil), docs...)
	e.trainedAt = time.Now().UTC()
	e.state = StateTrained

	span.SetAttr("vocab_size", vocabulary.Size())
	e.logger.Info("training complete",
		"documents", len(docs),
		"vocab_size", vocabulary.Size(),
		"embed_duration_ms", e.passMs[2],
	)
	return nil
}

// Guess embeds the query and returns the label of the most similar training
// document. Only legal on a trained engine.
func (e *Engine) Guess(ctx context.Context, query string) (*Guess, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state != StateTrained {
		return nil, fmt.Errorf("guess called in state %s: %w", e.state, apperrors.ErrInvalidState)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := e.embedder.Embed(e.tokens(query))
	row, score, err := similarity.FindBestMatch(vector, e.matrix)
	if err != nil {
		return nil, err
	}
	return &Guess{
		Question:   e.docs[row].Text,
		Answer:     e.docs[row].Label,
		Confidence: score,
	}, nil
}

// GuessN returns the top n matches ordered by score descending, row index
// ascending.
func (e *Engine) GuessN(ctx context.Context, query string, n int) ([]*Guess, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state != StateTrained {
		return nil, fmt.Errorf("guess called in state %s: %w", e.state, apperrors.ErrInvalidState)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 1
	}

	vector := e.embedder.Embed(e.tokens(query))
	matches, err := similarity.TopMatches(vector, e.matrix, n)
	if err != nil {
		return nil, err
	}
	guesses := make([]*Guess, 0, len(matches))
	for _, m := range matches {
		guesses = append(guesses, &Guess{
			Question:   e.docs[m.Row].Text,
			Answer:     e.docs[m.Row].Label,
			Confidence: m.Score,
		})
	}
	return guesses, nil
}

// Embed exposes the raw TF-IDF vector for a token sequence, for diagnostics.
func (e *Engine) Embed(tokens []string) ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateTrained {
		return nil, fmt.Errorf("embed called in state %s: %w", e.state, apperrors.ErrInvalidState)
	}
	return e.embedder.Embed(tokens), nil
}

// IDF returns the inverse document frequency for a vocabulary id.
func (e *Engine) IDF(id int) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateTrained {
		return 0, fmt.Errorf("idf called in state %s: %w", e.state, apperrors.ErrInvalidState)
	}
	return e.embedder.IDF(id), nil
}

// Lookup maps a token to its vocabulary id.
func (e *Engine) Lookup(token string) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state < StateVocabFinal {
		return 0, fmt.Errorf("lookup called in state %s: %w", e.state, apperrors.ErrInvalidState)
	}
	return e.vocabulary.Lookup(e.params.Normalize(token)), nil
}

// Token reverse-maps a vocabulary id to its token string.
func (e *Engine) Token(id int) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state < StateVocabFinal {
		return "", fmt.Errorf("token called in state %s: %w", e.state, apperrors.ErrInvalidState)
	}
	return e.vocabulary.Token(id), nil
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Stats describes a trained model.
type Stats struct {
	State           string    `json:"state"`
	Documents       int       `json:"documents"`
	VocabSize       int       `json:"vocab_size"`
	MatrixRows      int       `json:"matrix_rows"`
	MatrixCols      int       `json:"matrix_cols"`
	TrainedAt       time.Time `json:"trained_at,omitzero"`
	VocabPassMs     int64     `json:"vocab_pass_ms"`
	DocFreqPassMs   int64     `json:"docfreq_pass_ms"`
	EmbeddingPassMs int64     `json:"embedding_pass_ms"`
}

// Stats returns model statistics for the stats endpoint and trainer logs.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Stats{
		State:           e.state.String(),
		Documents:       len(e.docs),
		MatrixRows:      len(e.matrix),
		TrainedAt:       e.trainedAt,
		VocabPassMs:     e.passMs[0],
		DocFreqPassMs:   e.passMs[1],
		EmbeddingPassMs: e.passMs[2],
	}
	if e.vocabulary != nil {
		s.VocabSize = e.vocabulary.Size()
		s.MatrixCols = e.vocabulary.Size()
	}
	return s
}

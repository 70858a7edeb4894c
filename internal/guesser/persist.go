package guesser

import (
	"fmt"
	"time"

	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/docfreq"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/embed"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/model"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/vocab"
	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
)

// Save writes the trained model into dir as the four model artifacts.
func (e *Engine) Save(dir string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state != StateTrained {
		return fmt.Errorf("save called in state %s: %w", e.state, apperrors.ErrInvalidState)
	}
	return model.Save(dir, &model.Model{
		Tokens:      e.vocabulary.Tokens(),
		TokenCounts: e.vocabulary.Counts(),
		DocFreq:     e.frequencies.Table(),
		TotalDocs:   e.frequencies.TotalDocs(),
		Matrix:      e.matrix,
		Documents:   e.docs,
	})
}

// Load restores a trained engine from a model directory. The tokenizer and
// normalizer in p must match the ones used at training time, or query
// embeddings will disagree with the stored matrix.
func Load(dir string, p Params) (*Engine, error) {
	m, err := model.Load(dir)
	if err != nil {
		return nil, err
	}
	vocabulary, err := vocab.Restore(m.Tokens, m.TokenCounts)
	if err != nil {
		return nil, err
	}
	frequencies := docfreq.Restore(m.DocFreq, m.TotalDocs)

	e := New(p)
	e.vocabulary = vocabulary
	e.frequencies = frequencies
	e.embedder = embed.New(vocabulary, frequencies)
	e.matrix = m.Matrix
	e.docs = m.Documents
	e.trainedAt = time.Now().UTC()
	e.state = StateTrained
	return e, nil
}

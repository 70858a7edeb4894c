// Package embed turns token sequences into dense TF-IDF vectors over a
// frozen vocabulary and document-frequency table.
package embed

import (
	"math"

	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/docfreq"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/vocab"
)

// Embedder computes TF-IDF vectors. It holds only immutable state and is
// safe for concurrent use; the trainer embeds matrix rows in parallel with a
// single instance.
type Embedder struct {
	vocabulary  *vocab.Vocabulary
	frequencies *docfreq.Frequencies
}

// New creates an Embedder over the finalized vocabulary and frequencies.
func New(v *vocab.Vocabulary, f *docfreq.Frequencies) *Embedder {
	return &Embedder{vocabulary: v, frequencies: f}
}

// Embed returns a dense vector of length vocabulary size. Each distinct id
// present in tokens gets weight tf*idf, where tf is the id's occurrence
// count divided by the total token count. Out-of-vocabulary tokens accrue to
// the unknown id. Everything else stays zero, so vectors are sparse in
// practice. An empty token slice yields the zero vector.
func (e *Embedder) Embed(tokens []string) []float64 {
	vector := make([]float64, e.vocabulary.Size())
	if len(tokens) == 0 {
		return vector
	}
	occurrences := make(map[int]int, len(tokens))
	for _, token := range tokens {
		occurrences[e.vocabulary.Lookup(token)]++
	}
	total := float64(len(tokens))
	for id, count := range occurrences {
		tf := float64(count) / total
		vector[id] = tf * e.IDF(id)
	}
	return vector
}

// IDF returns log10(totalDocs / (1 + docFreq)) for the id, or exactly 0.0
// when its document frequency is zero. The +1 in the denominator alone is a
// fixed design choice: the asymmetric smoothing means IDF can go negative
// for ids present in nearly every document, and that must not be clamped.
func (e *Embedder) IDF(id int) float64 {
	df := e.frequencies.DocFreq(id)
	if df == 0 {
		return 0.0
	}
	return math.Log10(float64(e.frequencies.TotalDocs()) / (1.0 + float64(df)))
}

// Package docfreq runs the second training pass: counting, per vocabulary
// id, how many documents contain it at least once. The Tracker is created
// against a frozen vocabulary, so it uses dense arrays from the start
// instead of a growable map.
package docfreq

import (
	"fmt"

	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/vocab"
	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
)

// Tracker accumulates document frequencies over the training corpus.
type Tracker struct {
	vocabulary  *vocab.Vocabulary
	docFreq     []int64
	docsScanned int
	finalized   bool
}

// NewTracker creates a Tracker sized to the finalized vocabulary.
func NewTracker(v *vocab.Vocabulary) *Tracker {
	return &Tracker{
		vocabulary: v,
		docFreq:    make([]int64, v.Size()),
	}
}

// Scan maps every token through the vocabulary (out-of-vocabulary tokens
// collapse to the unknown id) and increments the document frequency of each
// DISTINCT id present by exactly one. Document frequency counts documents,
// not occurrences. An empty token slice still counts as one scanned document.
func (t *Tracker) Scan(tokens []string) error {
	if t.finalized {
		return fmt.Errorf("scan after finalize: %w", apperrors.ErrInvalidState)
	}
	seen := make(map[int]struct{}, len(tokens))
	for _, token := range tokens {
		seen[t.vocabulary.Lookup(token)] = struct{}{}
	}
	for id := range seen {
		t.docFreq[id]++
	}
	t.docsScanned++
	return nil
}

// DocsScanned returns the number of documents scanned so far.
func (t *Tracker) DocsScanned() int {
	return t.docsScanned
}

// Finalize freezes the table. It fails when the scanned count disagrees with
// expectedDocs: that means the two training passes iterated different
// corpora, which would silently corrupt every IDF value.
func (t *Tracker) Finalize(expectedDocs int) (*Frequencies, error) {
	if t.finalized {
		return nil, fmt.Errorf("finalize called twice: %w", apperrors.ErrInvalidState)
	}
	if t.docsScanned != expectedDocs {
		return nil, fmt.Errorf("scanned %d documents, corpus has %d: %w",
			t.docsScanned, expectedDocs, apperrors.ErrDocCountMismatch)
	}
	t.finalized = true
	return &Frequencies{
		docFreq:   t.docFreq,
		totalDocs: t.docsScanned,
	}, nil
}

// Frequencies is the immutable per-id document-frequency table plus the
// total document count. Safe for concurrent reads.
type Frequencies struct {
	docFreq   []int64
	totalDocs int
}

// Restore rebuilds Frequencies from persisted state.
func Restore(docFreq []int64, totalDocs int) *Frequencies {
	return &Frequencies{
		docFreq:   append([]int64(nil), docFreq...),
		totalDocs: totalDocs,
	}
}

// DocFreq returns the number of documents id appeared in, or 0 for ids out
// of range.
func (f *Frequencies) DocFreq(id int) int64 {
	if id < 0 || id >= len(f.docFreq) {
		return 0
	}
	return f.docFreq[id]
}

// TotalDocs returns the number of documents scanned.
func (f *Frequencies) TotalDocs() int {
	return f.totalDocs
}

// Size returns the length of the table (the vocabulary size it was built
// against).
func (f *Frequencies) Size() int {
	return len(f.docFreq)
}

// Table returns a copy of the per-id document frequencies for persistence.
func (f *Frequencies) Table() []int64 {
	return append([]int64(nil), f.docFreq...)
}

// Package vocab builds the size-bounded token vocabulary in two stages: a
// growable Builder accumulates corpus-wide counts, then Finalize freezes the
// survivors into an immutable id-indexed Vocabulary with a reserved
// unknown-token slot.
package vocab

import (
	"fmt"
	"sort"

	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
)

// UnknownToken is the sentinel absorbing every out-of-vocabulary token after
// finalization. It always holds the largest id.
const UnknownToken = "<UNK>"

// Builder accumulates token counts during the first training pass. It also
// records first-seen order so Finalize can break count ties deterministically
// regardless of map iteration order.
type Builder struct {
	maxSize   int
	counts    map[string]int64
	firstSeen map[string]int
	finalized bool
}

// NewBuilder creates a Builder whose finalized vocabulary, unknown token
// included, must stay strictly below maxSize entries.
func NewBuilder(maxSize int) *Builder {
	return &Builder{
		maxSize:   maxSize,
		counts:    make(map[string]int64),
		firstSeen: make(map[string]int),
	}
}

// Observe records one occurrence of token.
func (b *Builder) Observe(token string) error {
	return b.ObserveN(token, 1)
}

// ObserveN records n occurrences of token. Only legal before Finalize.
func (b *Builder) ObserveN(token string, n int64) error {
	if b.finalized {
		return fmt.Errorf("observe %q after finalize: %w", token, apperrors.ErrInvalidState)
	}
	if _, ok := b.counts[token]; !ok {
		b.firstSeen[token] = len(b.firstSeen)
	}
	b.counts[token] += n
	return nil
}

// Observed returns the accumulated count for token so far.
func (b *Builder) Observed(token string) int64 {
	return b.counts[token]
}

// Finalize selects the tokens whose count is at least minCount, ordered by
// count descending with first-seen order breaking ties, keeps at most
// maxSize-1 of them, and assigns dense ids in that order with UnknownToken
// appended last. The builder rejects further Observe and Finalize calls.
func (b *Builder) Finalize(minCount int64) (*Vocabulary, error) {
	if b.finalized {
		return nil, fmt.Errorf("finalize called twice: %w", apperrors.ErrInvalidState)
	}
	// Even an empty vocabulary holds <UNK>, so maxSize 1 can never be met.
	if b.maxSize < 2 {
		return nil, fmt.Errorf("max vocabulary size %d leaves no room for tokens: %w", b.maxSize, apperrors.ErrCapacity)
	}

	selected := make([]string, 0, len(b.counts))
	for token, count := range b.counts {
		if count >= minCount {
			selected = append(selected, token)
		}
	}
	sort.Slice(selected, func(i, j int) bool {
		ci, cj := b.counts[selected[i]], b.counts[selected[j]]
		if ci != cj {
			return ci > cj
		}
		return b.firstSeen[selected[i]] < b.firstSeen[selected[j]]
	})
	if len(selected) > b.maxSize-1 {
		selected = selected[:b.maxSize-1]
	}

	size := len(selected) + 1
	if size >= b.maxSize {
		return nil, fmt.Errorf("finalized size %d with max %d: %w", size, b.maxSize, apperrors.ErrCapacity)
	}

	tokens := make([]string, 0, size)
	counts := make([]int64, 0, size)
	ids := make(map[string]int, size)
	for _, token := range selected {
		ids[token] = len(tokens)
		tokens = append(tokens, token)
		counts = append(counts, b.counts[token])
	}

	// <UNK> takes the last id and inherits the pruned tokens' count mass.
	var prunedMass int64
	for token, count := range b.counts {
		if _, kept := ids[token]; !kept {
			prunedMass += count
		}
	}
	unknownID := len(tokens)
	ids[UnknownToken] = unknownID
	tokens = append(tokens, UnknownToken)
	counts = append(counts, prunedMass)

	b.finalized = true
	return &Vocabulary{
		ids:       ids,
		tokens:    tokens,
		counts:    counts,
		unknownID: unknownID,
	}, nil
}

// Finalized reports whether Finalize has run.
func (b *Builder) Finalized() bool {
	return b.finalized
}

// Vocabulary is the frozen token-to-id mapping. Ids are dense in
// [0, Size()) and the unknown token always occupies the last id. All methods
// are safe for concurrent use.
type Vocabulary struct {
	ids       map[string]int
	tokens    []string
	counts    []int64
	unknownID int
}

// Restore rebuilds a Vocabulary from its persisted id-ordered token list.
// counts may be nil when the global-count diagnostic was not saved.
func Restore(tokens []string, counts []int64) (*Vocabulary, error) {
	if len(tokens) == 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "restoring empty vocabulary")
	}
	if tokens[len(tokens)-1] != UnknownToken {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400,
			"vocabulary does not end with %s", UnknownToken)
	}
	if counts != nil && len(counts) != len(tokens) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400,
			"token counts length %d does not match vocabulary size %d", len(counts), len(tokens))
	}
	ids := make(map[string]int, len(tokens))
	for id, token := range tokens {
		if _, dup := ids[token]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "duplicate token %q", token)
		}
		ids[token] = id
	}
	if counts == nil {
		counts = make([]int64, len(tokens))
	}
	return &Vocabulary{
		ids:       ids,
		tokens:    append([]string(nil), tokens...),
		counts:    append([]int64(nil), counts...),
		unknownID: len(tokens) - 1,
	}, nil
}

// Lookup is total: known tokens map to their id, everything else to the
// unknown id. The result is always in [0, Size()).
func (v *Vocabulary) Lookup(token string) int {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unknownID
}

// Token returns the token string for id. Unmapped ids fall back to the
// unknown token rather than failing; valid ids never hit that path.
func (v *Vocabulary) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return UnknownToken
	}
	return v.tokens[id]
}

// Count returns the corpus-wide occurrence count accumulated for id during
// vocabulary construction. For the unknown id this is the pruned mass. Kept
// as a diagnostic; IDF never reads it.
func (v *Vocabulary) Count(id int) int64 {
	if id < 0 || id >= len(v.counts) {
		return 0
	}
	return v.counts[id]
}

// Size returns the number of ids, unknown token included.
func (v *Vocabulary) Size() int {
	return len(v.tokens)
}

// UnknownID returns the id of the unknown token.
func (v *Vocabulary) UnknownID() int {
	return v.unknownID
}

// Tokens returns a copy of the id-ordered token list for persistence.
func (v *Vocabulary) Tokens() []string {
	return append([]string(nil), v.tokens...)
}

// Counts returns a copy of the id-ordered global counts for persistence.
func (v *Vocabulary) Counts() []int64 {
	return append([]int64(nil), v.counts...)
}

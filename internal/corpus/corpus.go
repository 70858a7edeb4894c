// Package corpus supplies labeled training documents to the trainer and the
// guesser engine. Documents can come from a JSON file or from PostgreSQL.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"

	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
)

// Document is one training example: a text and the label the engine should
// answer with when the text is the best match.
type Document struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// LoadFile reads a JSON array of documents from disk.
func LoadFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file %s: %w", path, err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing corpus file %s: %w", path, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("corpus file %s: %w", path, apperrors.ErrEmptyCorpus)
	}
	for i, doc := range docs {
		if doc.Label == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 400, "document %d has no label", i)
		}
	}
	return docs, nil
}

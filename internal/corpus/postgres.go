package corpus

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
	"github.com/retrieval-systems/tfidf-guesser/pkg/postgres"
)

// PGSource loads training documents from a PostgreSQL table. The table needs
// (text TEXT, label TEXT) columns plus an id to give a stable scan order:
//
//	CREATE TABLE training_documents (
//	    id    BIGSERIAL PRIMARY KEY,
//	    text  TEXT NOT NULL,
//	    label TEXT NOT NULL
//	);
type PGSource struct {
	db    *postgres.Client
	table string
}

// NewPGSource creates a source reading from the given table.
func NewPGSource(db *postgres.Client, table string) *PGSource {
	if table == "" {
		table = "training_documents"
	}
	return &PGSource{db: db, table: table}
}

// Load fetches every document ordered by id. The order is part of the model:
// matrix rows, labels, and tie-breaking all align with it.
func (s *PGSource) Load(ctx context.Context) ([]Document, error) {
	query := fmt.Sprintf(`SELECT text, label FROM %s ORDER BY id`, s.table)
	rows, err := s.db.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying corpus table %s: %w", s.table, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.Text, &doc.Label); err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpus rows: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("table %s: %w", s.table, apperrors.ErrEmptyCorpus)
	}
	return docs, nil
}

// Registry records completed training runs:
//
//	CREATE TABLE training_runs (
//	    id          BIGSERIAL PRIMARY KEY,
//	    model_dir   TEXT NOT NULL,
//	    documents   INT NOT NULL,
//	    vocab_size  INT NOT NULL,
//	    duration_ms BIGINT NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Registry struct {
	db *postgres.Client
}

// NewRegistry creates a training-run registry.
func NewRegistry(db *postgres.Client) *Registry {
	return &Registry{db: db}
}

// RecordRun inserts one row describing a finished training run.
func (r *Registry) RecordRun(ctx context.Context, modelDir string, documents, vocabSize int, duration time.Duration) error {
	_, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO training_runs (model_dir, documents, vocab_size, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		modelDir, documents, vocabSize, duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording training run: %w", err)
	}
	return nil
}

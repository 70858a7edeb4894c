package model

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/retrieval-systems/tfidf-guesser/internal/corpus"
)

// Model is the serializable state of a trained engine. Loading it back
// yields identical vocabulary mapping, matrix, and query results.
type Model struct {
	Tokens      []string
	TokenCounts []int64
	DocFreq     []int64
	TotalDocs   int
	Matrix      [][]float64
	Documents   []corpus.Document
}

// stats is the JSON payload of the statistics artifact. TokenCounts is the
// global occurrence diagnostic from vocabulary construction; it is distinct
// from DocFreq and never feeds IDF.
type stats struct {
	TotalDocs   int     `json:"total_docs"`
	DocFreq     []int64 `json:"doc_freq"`
	TokenCounts []int64 `json:"token_count"`
}

// Save writes all four artifacts into dir.
func Save(dir string, m *Model) error {
	tokensPayload, err := json.Marshal(m.Tokens)
	if err != nil {
		return fmt.Errorf("marshaling vocabulary: %w", err)
	}
	if err := writeArtifact(dir, VocabularyFile, KindVocabulary, tokensPayload); err != nil {
		return err
	}

	statsPayload, err := json.Marshal(stats{
		TotalDocs:   m.TotalDocs,
		DocFreq:     m.DocFreq,
		TokenCounts: m.TokenCounts,
	})
	if err != nil {
		return fmt.Errorf("marshaling statistics: %w", err)
	}
	if err := writeArtifact(dir, StatsFile, KindStats, statsPayload); err != nil {
		return err
	}

	if err := writeArtifact(dir, VectorsFile, KindVectors, encodeMatrix(m.Matrix)); err != nil {
		return err
	}

	docsPayload, err := json.Marshal(m.Documents)
	if err != nil {
		return fmt.Errorf("marshaling documents: %w", err)
	}
	return writeArtifact(dir, DocumentsFile, KindDocuments, docsPayload)
}

// Load reads all four artifacts from dir and cross-validates their shapes.
func Load(dir string) (*Model, error) {
	tokensPayload, err := readArtifact(dir, VocabularyFile, KindVocabulary)
	if err != nil {
		return nil, err
	}
	var tokens []string
	if err := json.Unmarshal(tokensPayload, &tokens); err != nil {
		return nil, fmt.Errorf("parsing vocabulary: %w", err)
	}

	statsPayload, err := readArtifact(dir, StatsFile, KindStats)
	if err != nil {
		return nil, err
	}
	var st stats
	if err := json.Unmarshal(statsPayload, &st); err != nil {
		return nil, fmt.Errorf("parsing statistics: %w", err)
	}

	vectorsPayload, err := readArtifact(dir, VectorsFile, KindVectors)
	if err != nil {
		return nil, err
	}
	matrix, err := decodeMatrix(vectorsPayload)
	if err != nil {
		return nil, err
	}

	docsPayload, err := readArtifact(dir, DocumentsFile, KindDocuments)
	if err != nil {
		return nil, err
	}
	var docs []corpus.Document
	if err := json.Unmarshal(docsPayload, &docs); err != nil {
		return nil, fmt.Errorf("parsing documents: %w", err)
	}

	if len(st.DocFreq) != len(tokens) {
		return nil, fmt.Errorf("doc_freq length %d does not match vocabulary size %d", len(st.DocFreq), len(tokens))
	}
	if len(matrix) != len(docs) {
		return nil, fmt.Errorf("matrix has %d rows, documents file has %d entries", len(matrix), len(docs))
	}
	for row := range matrix {
		if len(matrix[row]) != len(tokens) {
			return nil, fmt.Errorf("matrix row %d has %d columns, vocabulary size is %d", row, len(matrix[row]), len(tokens))
		}
	}

	return &Model{
		Tokens:      tokens,
		TokenCounts: st.TokenCounts,
		DocFreq:     st.DocFreq,
		TotalDocs:   st.TotalDocs,
		Matrix:      matrix,
		Documents:   docs,
	}, nil
}

// encodeMatrix packs a row-major float64 matrix as
// rows uint32 | cols uint32 | rows*cols little-endian float64.
func encodeMatrix(matrix [][]float64) []byte {
	rows := len(matrix)
	cols := 0
	if rows > 0 {
		cols = len(matrix[0])
	}
	buf := make([]byte, 8+rows*cols*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cols))
	off := 8
	for _, row := range matrix {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(v))
			off += 8
		}
	}
	return buf
}

func decodeMatrix(payload []byte) ([][]float64, error) {
	if len(payload) < 8 {
		return nil, fmt.Errorf("vectors payload truncated (%d bytes)", len(payload))
	}
	rows := int(binary.LittleEndian.Uint32(payload[0:4]))
	cols := int(binary.LittleEndian.Uint32(payload[4:8]))
	if len(payload) != 8+rows*cols*8 {
		return nil, fmt.Errorf("vectors payload is %d bytes, expected %d for %dx%d matrix",
			len(payload), 8+rows*cols*8, rows, cols)
	}
	matrix := make([][]float64, rows)
	off := 8
	for r := 0; r < rows; r++ {
		row := make([]float64, cols)
		for c := 0; c < cols; c++ {
			row[c] = math.Float64frombits(binary.LittleEndian.Uint64(payload[off : off+8]))
			off += 8
		}
		matrix[r] = row
	}
	return matrix, nil
}

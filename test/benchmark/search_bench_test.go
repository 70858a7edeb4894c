package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/retrieval-systems/tfidf-guesser/internal/corpus"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser"
	"github.com/retrieval-systems/tfidf-guesser/internal/guesser/similarity"
)

func randomMatrix(rows, cols int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	matrix := make([][]float64, rows)
	for r := range matrix {
		row := make([]float64, cols)
		// Sparse rows mirror real TF-IDF vectors.
		for i := 0; i < cols/10; i++ {
			row[rng.Intn(cols)] = rng.Float64()
		}
		matrix[r] = row
	}
	return matrix
}

func BenchmarkCosine(b *testing.B) {
	for _, cols := range []int{100, 1000, 10000} {
		m := randomMatrix(2, cols, 1)
		b.Run(fmt.Sprintf("dims_%d", cols), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				s := similarity.Cosine(m[0], m[1])
				_ = s
			}
		})
	}
}

func BenchmarkFindBestMatch(b *testing.B) {
	for _, rows := range []int{100, 1000, 10000} {
		matrix := randomMatrix(rows, 1000, 2)
		query := matrix[rows/2]
		b.Run(fmt.Sprintf("rows_%d", rows), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := similarity.FindBestMatch(query, matrix); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkTopMatches(b *testing.B) {
	matrix := randomMatrix(5000, 1000, 3)
	query := matrix[100]
	for _, n := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("top_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := similarity.TopMatches(query, matrix, n); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func benchmarkCorpus(docs int) []corpus.Document {
	words := []string{
		"database", "index", "query", "cache", "shard", "replica",
		"consistency", "latency", "throughput", "partition", "broker",
		"snapshot", "compaction", "vector", "token", "stemming",
	}
	rng := rand.New(rand.NewSource(7))
	out := make([]corpus.Document, docs)
	for d := range out {
		var sb strings.Builder
		for i := 0; i < 12; i++ {
			sb.WriteString(words[rng.Intn(len(words))])
			sb.WriteByte(' ')
		}
		out[d] = corpus.Document{Text: sb.String(), Label: fmt.Sprintf("label-%d", d%20)}
	}
	return out
}

func BenchmarkEngineTrain(b *testing.B) {
	for _, docs := range []int{100, 1000} {
		cps := benchmarkCorpus(docs)
		b.Run(fmt.Sprintf("docs_%d", docs), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				e := guesser.New(guesser.Params{MinTokenCount: 1})
				if err := e.Train(context.Background(), cps); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEngineGuess(b *testing.B) {
	e := guesser.New(guesser.Params{MinTokenCount: 1})
	if err := e.Train(context.Background(), benchmarkCorpus(1000)); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Guess(ctx, "database query latency under heavy cache load"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEngineGuessParallel(b *testing.B) {
	e := guesser.New(guesser.Params{MinTokenCount: 1})
	if err := e.Train(context.Background(), benchmarkCorpus(1000)); err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := e.Guess(ctx, "vector index snapshot compaction"); err != nil {
				b.Fatal(err)
			}
		}
	})
}

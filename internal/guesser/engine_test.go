package guesser

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/retrieval-systems/tfidf-guesser/internal/corpus"
	apperrors "github.com/retrieval-systems/tfidf-guesser/pkg/errors"
)

const epsilon = 1e-9

func toyCorpus() []corpus.Document {
	return []corpus.Document{
		{Text: "the cat sat", Label: "A"},
		{Text: "the dog ran", Label: "B"},
		{Text: "cats and dogs", Label: "C"},
	}
}

func trainedEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Params{MinTokenCount: 1})
	if err := e.Train(context.Background(), toyCorpus()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	return e
}

func TestTrainTransitionsToTrained(t *testing.T) {
	e := New(Params{MinTokenCount: 1})
	if e.State() != StateEmpty {
		t.Fatalf("new engine state = %s, want %s", e.State(), StateEmpty)
	}
	if err := e.Train(context.Background(), toyCorpus()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if e.State() != StateTrained {
		t.Errorf("state after train = %s, want %s", e.State(), StateTrained)
	}

	s := e.Stats()
	if s.Documents != 3 {
		t.Errorf("Stats.Documents = %d, want 3", s.Documents)
	}
	if s.MatrixRows != 3 {
		t.Errorf("Stats.MatrixRows = %d, want 3", s.MatrixRows)
	}
	if s.MatrixCols != s.VocabSize {
		t.Errorf("Stats.MatrixCols = %d, want vocab size %d", s.MatrixCols, s.VocabSize)
	}
	if s.TrainedAt.IsZero() {
		t.Error("Stats.TrainedAt not set")
	}
}

func TestGuessExactMatch(t *testing.T) {
	e := trainedEngine(t)
	g, err := e.Guess(context.Background(), "the cat sat")
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if g.Answer != "A" {
		t.Errorf("Answer = %q, want %q", g.Answer, "A")
	}
	if g.Question != "the cat sat" {
		t.Errorf("Question = %q, want the matched document text", g.Question)
	}
	if math.Abs(g.Confidence-1.0) > epsilon {
		t.Errorf("Confidence = %v, want 1.0 for an exact match", g.Confidence)
	}
}

func TestGuessPartialMatch(t *testing.T) {
	e := trainedEngine(t)
	// "dog" appears only in document B; "dog ran fast" should land there.
	g, err := e.Guess(context.Background(), "dog ran fast")
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if g.Answer != "B" {
		t.Errorf("Answer = %q, want %q", g.Answer, "B")
	}
	if g.Confidence <= 0 || g.Confidence > 1+epsilon {
		t.Errorf("Confidence = %v, want in (0, 1]", g.Confidence)
	}
}

func TestGuessEmptyQueryFallsBackToFirstDocument(t *testing.T) {
	e := trainedEngine(t)
	g, err := e.Guess(context.Background(), "")
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	// The zero vector ties every row at score 0; the first document wins.
	if g.Answer != "A" {
		t.Errorf("Answer = %q, want %q", g.Answer, "A")
	}
	if g.Confidence != 0.0 {
		t.Errorf("Confidence = %v, want exactly 0.0", g.Confidence)
	}
}

func TestGuessOutOfVocabularyQuery(t *testing.T) {
	e := trainedEngine(t)
	g, err := e.Guess(context.Background(), "zebra quantum")
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	// All tokens collapse to the unknown id whose IDF is 0, so the query
	// embeds to the zero vector and the first row wins at confidence 0.
	if g.Answer != "A" || g.Confidence != 0.0 {
		t.Errorf("got %q at %v, want %q at 0.0", g.Answer, g.Confidence, "A")
	}
}

func TestGuessNormalizesCase(t *testing.T) {
	e := trainedEngine(t)
	g, err := e.Guess(context.Background(), "THE CAT SAT")
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if g.Answer != "A" || math.Abs(g.Confidence-1.0) > epsilon {
		t.Errorf("got %q at %v, want %q at 1.0", g.Answer, g.Confidence, "A")
	}
}

func TestGuessN(t *testing.T) {
	e := trainedEngine(t)
	guesses, err := e.GuessN(context.Background(), "the cat sat", 2)
	if err != nil {
		t.Fatalf("GuessN: %v", err)
	}
	if len(guesses) != 2 {
		t.Fatalf("got %d guesses, want 2", len(guesses))
	}
	if guesses[0].Answer != "A" {
		t.Errorf("top answer = %q, want %q", guesses[0].Answer, "A")
	}
	if guesses[0].Confidence < guesses[1].Confidence {
		t.Errorf("scores not descending: %v then %v", guesses[0].Confidence, guesses[1].Confidence)
	}
}

func TestGuessNZeroRequestsOne(t *testing.T) {
	e := trainedEngine(t)
	guesses, err := e.GuessN(context.Background(), "the cat sat", 0)
	if err != nil {
		t.Fatalf("GuessN: %v", err)
	}
	if len(guesses) != 1 {
		t.Errorf("got %d guesses, want 1", len(guesses))
	}
}

func TestSingleDocumentCorpus(t *testing.T) {
	e := New(Params{MinTokenCount: 1})
	docs := []corpus.Document{{Text: "hello world", Label: "greeting"}}
	if err := e.Train(context.Background(), docs); err != nil {
		t.Fatalf("Train: %v", err)
	}
	// With one document every in-vocabulary token has df=1 and
	// idf=log10(1/2)<0, so an exact match still has cosine 1.0.
	g, err := e.Guess(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Guess: %v", err)
	}
	if g.Answer != "greeting" {
		t.Errorf("Answer = %q, want %q", g.Answer, "greeting")
	}
	if math.Abs(g.Confidence-1.0) > epsilon {
		t.Errorf("Confidence = %v, want 1.0", g.Confidence)
	}
}

func TestTrainEmptyCorpus(t *testing.T) {
	e := New(Params{})
	if err := e.Train(context.Background(), nil); !errors.Is(err, apperrors.ErrEmptyCorpus) {
		t.Fatalf("Train err = %v, want ErrEmptyCorpus", err)
	}
	if e.State() != StateEmpty {
		t.Errorf("state after failed train = %s, want %s", e.State(), StateEmpty)
	}
}

func TestTrainTwice(t *testing.T) {
	e := trainedEngine(t)
	if err := e.Train(context.Background(), toyCorpus()); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("second Train err = %v, want ErrInvalidState", err)
	}
}

func TestTrainCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New(Params{MinTokenCount: 1})
	if err := e.Train(ctx, toyCorpus()); err == nil {
		t.Fatal("Train with cancelled context succeeded, want error")
	}
}

func TestGuessBeforeTrain(t *testing.T) {
	e := New(Params{})
	if _, err := e.Guess(context.Background(), "anything"); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Guess err = %v, want ErrInvalidState", err)
	}
	if _, err := e.GuessN(context.Background(), "anything", 3); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("GuessN err = %v, want ErrInvalidState", err)
	}
	if _, err := e.Embed([]string{"anything"}); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Embed err = %v, want ErrInvalidState", err)
	}
	if _, err := e.IDF(0); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("IDF err = %v, want ErrInvalidState", err)
	}
	if _, err := e.Lookup("anything"); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Lookup err = %v, want ErrInvalidState", err)
	}
	if _, err := e.Token(0); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Token err = %v, want ErrInvalidState", err)
	}
}

func TestLookupNormalizesToken(t *testing.T) {
	e := trainedEngine(t)
	lower, err := e.Lookup("cat")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	upper, err := e.Lookup("CAT")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if lower != upper {
		t.Errorf("Lookup(cat) = %d, Lookup(CAT) = %d; want equal ids", lower, upper)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	e := trainedEngine(t)
	id, err := e.Lookup("cat")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	token, err := e.Token(id)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "cat" {
		t.Errorf("Token(%d) = %q, want %q", id, token, "cat")
	}
}

func TestGuessDeterministic(t *testing.T) {
	// Two engines trained on the same corpus must answer identically,
	// including the parallel embedding pass.
	a := trainedEngine(t)
	b := trainedEngine(t)
	queries := []string{"the cat sat", "dogs", "ran", "", "the"}
	for _, q := range queries {
		ga, err := a.Guess(context.Background(), q)
		if err != nil {
			t.Fatalf("Guess(%q): %v", q, err)
		}
		gb, err := b.Guess(context.Background(), q)
		if err != nil {
			t.Fatalf("Guess(%q): %v", q, err)
		}
		if ga.Answer != gb.Answer || ga.Confidence != gb.Confidence {
			t.Errorf("query %q: %q at %v vs %q at %v", q, ga.Answer, ga.Confidence, gb.Answer, gb.Confidence)
		}
	}
}
